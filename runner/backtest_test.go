package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/bandit/broker/sim"
	"github.com/rustyeddy/bandit/ledger"
	"github.com/rustyeddy/bandit/market"
	"github.com/rustyeddy/bandit/risk"
	"github.com/rustyeddy/bandit/signal"
)

var bt0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func testSignalParams() signal.Params {
	return signal.Params{
		Window:                    8,
		BandK:                     2,
		MomentumShort:             2,
		MomentumLong:              4,
		EntryMinConfidence:        60,
		ExitPriorityMinConfidence: 95,
	}
}

// dipAndRecover alternates tightly around 100 so the bands settle, dips
// hard through the lower band to trigger a buy, then climbs through the
// profit target.
func dipAndRecover() []market.Bar {
	closes := []float64{
		100.5, 99.5, 100.5, 99.5, 100.5, 99.5, 100.5, 99.5, 100.5, 99.5, 100.5, 99.5,
		94,
		95, 96, 97, 98, 99, 100,
	}
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Symbol: "BTC/USDT",
			Time:   bt0.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c * 1.001,
			Low:    c * 0.999,
			Close:  c,
			Volume: 10,
		}
	}
	return bars
}

func newBacktest(bars []market.Bar) *BacktestRunner {
	engine := sim.NewEngine("USDT", 10000, 0)
	params := risk.DefaultParameters()
	pipe := NewPipeline(
		signal.NewGenerator(testSignalParams()),
		risk.NewSizer(params),
		params,
		ledger.NewPortfolio(10000),
		engine,
		nil,
	)
	return &BacktestRunner{
		Engine:   engine,
		Pipeline: pipe,
		Feed:     NewSliceFeed(bars),
		CloseEnd: true,
	}
}

func TestBacktestBuysDipAndTakesProfit(t *testing.T) {
	t.Parallel()

	r := newBacktest(dipAndRecover())
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 19, report.Bars)
	assert.Equal(t, 1, report.Trades)
	assert.Equal(t, 1, report.Wins)
	assert.Equal(t, 0, report.Losses)
	assert.Greater(t, report.RealizedPL, 0.0)
	assert.Greater(t, report.EndEquity, report.StartEquity)
	assert.True(t, report.Start.Equal(bt0))
	assert.True(t, report.End.Equal(bt0.Add(18*time.Hour)))

	// Nothing left open after CloseEnd.
	assert.Empty(t, r.Pipeline.Portfolio().Positions())
}

func TestBacktestIsDeterministic(t *testing.T) {
	t.Parallel()

	bars := dipAndRecover()

	first, err := newBacktest(bars).Run(context.Background())
	require.NoError(t, err)

	second, err := newBacktest(bars).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBacktestCountsOutOfOrderBars(t *testing.T) {
	t.Parallel()

	base := dipAndRecover()
	bars := make([]market.Bar, 0, len(base)+1)
	bars = append(bars, base[:5]...)
	bars = append(bars, base[4]) // duplicate timestamp
	bars = append(bars, base[5:]...)

	report, err := newBacktest(bars).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.BadBars)
	assert.Equal(t, 19, report.Bars) // the duplicate never reached the curve
	assert.Equal(t, 1, report.Trades)
}

func TestBacktestCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newBacktest(dipAndRecover()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBacktestRequiresWiring(t *testing.T) {
	t.Parallel()

	r := &BacktestRunner{}
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}
