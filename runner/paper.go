package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rustyeddy/bandit/broker"
	"github.com/rustyeddy/bandit/broker/sim"
	"github.com/rustyeddy/bandit/ledger"
	"github.com/rustyeddy/bandit/market"
)

// PaperRunner trades simulated money at real prices: tickers and bars come
// from a live data source, execution goes to the sim engine.
type PaperRunner struct {
	Engine   *sim.Engine   // execution venue; Pipeline must be built on it
	Data     broker.Broker // real market data source
	Pipeline *Pipeline

	Symbols   []string
	Timeframe string
	Interval  time.Duration // bar poll cadence

	// Tickers is an optional push stream (websocket). When nil the runner
	// relies on bar polls alone.
	Tickers <-chan market.Ticker

	lastBar map[string]time.Time
}

// Run pumps tickers into the sim engine and polls for closed bars until the
// context is canceled. Cancellation is the only non-error way out.
func (r *PaperRunner) Run(ctx context.Context) error {
	if r.Engine == nil || r.Data == nil || r.Pipeline == nil {
		return fmt.Errorf("paper: engine, data source and pipeline are required")
	}
	if len(r.Symbols) == 0 {
		return fmt.Errorf("paper: at least one symbol is required")
	}
	if r.Interval <= 0 {
		r.Interval = 15 * time.Second
	}
	r.lastBar = make(map[string]time.Time)

	poll := time.NewTicker(r.Interval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case t, ok := <-r.Tickers:
			if !ok {
				r.Tickers = nil // stream closed, fall back to polling
				continue
			}
			r.OnTicker(t)

		case <-poll.C:
			if err := r.PollBars(ctx); err != nil {
				if broker.IsFatal(err) {
					return err
				}
				log.Printf("paper: poll: %v", err)
			}
		}
	}
}

// OnTicker feeds one live price into the sim engine and absorbs any
// bracket exits it triggers.
func (r *PaperRunner) OnTicker(t market.Ticker) {
	for _, exit := range r.Engine.UpdatePrice(t) {
		log.Printf("paper: %s exit %s at %.4f", exit.Symbol, exit.Reason, exit.Record.Price)
		r.Pipeline.Absorb(exit.Record)
	}
}

// PollBars fetches the latest closed bar per symbol from the data source
// and runs the decision step on each bar not seen before.
func (r *PaperRunner) PollBars(ctx context.Context) error {
	for _, chunk := range chunkSymbols(r.Symbols, scanChunkSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, sym := range chunk {
			bars, err := r.Data.GetBars(ctx, sym, r.Timeframe, 2)
			if err != nil {
				return err
			}
			if len(bars) == 0 {
				continue
			}

			// The newest row may still be forming; step on the last closed one.
			b := bars[len(bars)-1]
			if len(bars) > 1 {
				b = bars[len(bars)-2]
			}
			if !b.Time.After(r.lastBar[sym]) {
				continue
			}
			r.lastBar[sym] = b.Time

			r.Pipeline.Absorb(exitRecords(r.Engine.UpdateBar(b))...)
			if _, err := r.Pipeline.Step(ctx, b); err != nil {
				return err
			}
			r.Pipeline.SnapshotEquity(b.Time)
		}
	}
	return nil
}

func exitRecords(exits []sim.Exit) []ledger.TradeRecord {
	out := make([]ledger.TradeRecord, 0, len(exits))
	for _, e := range exits {
		out = append(out, e.Record)
	}
	return out
}
