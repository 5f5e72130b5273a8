package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/bandit/broker"
	"github.com/rustyeddy/bandit/broker/sim"
	"github.com/rustyeddy/bandit/ledger"
	"github.com/rustyeddy/bandit/market"
	"github.com/rustyeddy/bandit/risk"
	"github.com/rustyeddy/bandit/signal"
)

func newPaperRunner(engine *sim.Engine, data broker.Broker) *PaperRunner {
	params := risk.DefaultParameters()
	pipe := NewPipeline(
		signal.NewGenerator(testSignalParams()),
		risk.NewSizer(params),
		params,
		ledger.NewPortfolio(10000),
		engine,
		nil,
	)
	return &PaperRunner{
		Engine:    engine,
		Data:      data,
		Pipeline:  pipe,
		Symbols:   []string{"BTC/USDT"},
		Timeframe: "1h",
		Interval:  time.Millisecond,
	}
}

func TestPaperTickerTriggersStopAndBooksLoss(t *testing.T) {
	t.Parallel()

	engine := sim.NewEngine("USDT", 10000, 0)
	r := newPaperRunner(engine, engine)

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	engine.UpdatePrice(market.Ticker{Symbol: "BTC/USDT", Time: now, Bid: 100, Ask: 100, Last: 100})

	rec, err := engine.SubmitOrder(context.Background(), broker.Order{
		Symbol: "BTC/USDT", Side: broker.Buy, Quantity: 5,
		Type: broker.Market, StopPrice: 98, TargetPrice: 105, ClientID: "c1",
	})
	require.NoError(t, err)
	r.Pipeline.Absorb(rec)

	// Price falls through the stop; the exit must reach the portfolio.
	r.OnTicker(market.Ticker{Symbol: "BTC/USDT", Time: now.Add(time.Minute), Bid: 97, Ask: 97, Last: 97})

	_, open := r.Pipeline.Portfolio().Position("BTC/USDT")
	assert.False(t, open)
	assert.Less(t, r.Pipeline.Portfolio().RealizedPL(), 0.0)

	trades, wins, losses := r.Pipeline.Closed()
	assert.Equal(t, 1, trades)
	assert.Zero(t, wins)
	assert.Equal(t, 1, losses)
}

func TestPaperPollStepsOnceLastClosedBar(t *testing.T) {
	t.Parallel()

	engine := sim.NewEngine("USDT", 10000, 0)
	bars := dipAndRecover()
	engine.SetBars("BTC/USDT", bars[:2])

	r := newPaperRunner(engine, engine)
	r.lastBar = map[string]time.Time{}

	// Two rows returned: the poll must step on the first (closed) one and
	// skip repeats of the same bar.
	require.NoError(t, r.PollBars(context.Background()))
	require.NoError(t, r.PollBars(context.Background()))

	assert.True(t, r.lastBar["BTC/USDT"].Equal(bars[0].Time))
	assert.InDelta(t, bars[0].Close, r.Pipeline.Prices()["BTC/USDT"], 1e-12)
}

func TestPaperRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	engine := sim.NewEngine("USDT", 10000, 0)
	r := newPaperRunner(engine, engine)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPaperRequiresWiring(t *testing.T) {
	t.Parallel()
	r := &PaperRunner{}
	assert.Error(t, r.Run(context.Background()))
}
