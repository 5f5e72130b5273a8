package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDenormalizeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		std    string
		broker string
	}{
		{"btc", "BTC/USDT", "BTC-USDT"},
		{"eth", "ETH/USD", "ETH-USD"},
		{"empty", "", ""},
		{"bare", "BTCUSDT", "BTCUSDT"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.std, Normalize(tt.broker))
			assert.Equal(t, tt.broker, Denormalize(tt.std))
			assert.Equal(t, tt.std, Normalize(Denormalize(tt.std)))
			assert.Equal(t, tt.broker, Denormalize(Normalize(tt.broker)))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "BTC/USDT", Normalize("BTC/USDT"))
	assert.Equal(t, "BTC-USDT", Denormalize("BTC-USDT"))
}

func TestBaseQuote(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "BTC", Base("BTC/USDT"))
	assert.Equal(t, "USDT", Quote("BTC/USDT"))
	assert.Equal(t, "BTC", Base("BTC-USDT"))
	assert.Equal(t, "", Quote("BTCUSDT"))
}

func TestInstrumentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SPOT", InstrumentType(ModeSpot))
	assert.Equal(t, "MARGIN", InstrumentType(ModeMargin))
	assert.Equal(t, "SWAP", InstrumentType(ModeSwap))
	assert.Equal(t, "FUTURES", InstrumentType(ModeFutures))
	assert.Equal(t, "OPTION", InstrumentType(ModeOption))

	// Unset mode defaults to spot.
	assert.Equal(t, "SPOT", InstrumentType(""))
	assert.Equal(t, "SPOT", InstrumentType("perpetual"))
}
