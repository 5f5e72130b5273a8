package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rustyeddy/bandit/broker"
	"github.com/rustyeddy/bandit/ledger"
)

// scanChunkSize bounds how many symbols are scanned between context
// checks, so cancellation never waits for a full symbol sweep.
const scanChunkSize = 8

// reconciler is the multi-path trade query the live runner polls. The OKX
// client implements it; the plain Broker interface only exposes the merged
// view.
type reconciler interface {
	FetchTradeBatches(ctx context.Context, symbol string, since time.Time, limit int) ([][]ledger.TradeRecord, error)
}

// LiveRunner drives the pipeline against a real broker. A fatal broker
// error (auth, rejected order) halts new submissions permanently, but
// reconciliation keeps running so the ledger stays truthful about fills
// that happened before the halt.
type LiveRunner struct {
	Broker   broker.Broker
	Pipeline *Pipeline

	Symbols      []string
	Timeframe    string
	PollInterval time.Duration

	halted  bool
	seen    map[string]bool
	lastBar map[string]time.Time
	since   time.Time
}

// Halted reports whether order submission has been stopped.
func (r *LiveRunner) Halted() bool { return r.halted }

// Run polls bars and trades until the context is canceled.
func (r *LiveRunner) Run(ctx context.Context) error {
	if r.Broker == nil || r.Pipeline == nil {
		return fmt.Errorf("live: broker and pipeline are required")
	}
	if len(r.Symbols) == 0 {
		return fmt.Errorf("live: at least one symbol is required")
	}
	if r.PollInterval <= 0 {
		r.PollInterval = 15 * time.Second
	}
	r.ensureInit()

	poll := time.NewTicker(r.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
			r.Scan(ctx)
		}
	}
}

func (r *LiveRunner) ensureInit() {
	if r.seen == nil {
		r.seen = make(map[string]bool)
		r.lastBar = make(map[string]time.Time)
		r.since = time.Now().UTC().Add(-24 * time.Hour)
		r.Pipeline.DeferFills()
	}
}

// Scan runs one full sweep: per symbol chunk, step on new closed bars
// (unless halted) and reconcile broker trades into the portfolio.
func (r *LiveRunner) Scan(ctx context.Context) {
	r.ensureInit()
	for _, chunk := range chunkSymbols(r.Symbols, scanChunkSize) {
		if ctx.Err() != nil {
			return
		}
		for _, sym := range chunk {
			if !r.halted {
				if err := r.stepSymbol(ctx, sym); err != nil {
					if broker.IsFatal(err) {
						log.Printf("live: fatal broker error, halting submissions: %v", err)
						r.halted = true
					} else {
						log.Printf("live: %s: %v", sym, err)
					}
				}
			}
			if err := r.reconcileSymbol(ctx, sym); err != nil {
				log.Printf("live: reconcile %s: %v", sym, err)
			}
		}
	}
}

func (r *LiveRunner) stepSymbol(ctx context.Context, sym string) error {
	bars, err := r.Broker.GetBars(ctx, sym, r.Timeframe, 2)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return nil
	}

	b := bars[len(bars)-1]
	if len(bars) > 1 {
		b = bars[len(bars)-2] // newest row may still be forming
	}
	if !b.Time.After(r.lastBar[sym]) {
		return nil
	}
	r.lastBar[sym] = b.Time

	if _, err := r.Pipeline.Step(ctx, b); err != nil {
		return err
	}
	r.Pipeline.SnapshotEquity(b.Time)
	return nil
}

// reconcileSymbol merges the broker's trade query paths, drops everything
// already seen across polls, and absorbs the rest.
func (r *LiveRunner) reconcileSymbol(ctx context.Context, sym string) error {
	rc, ok := r.Broker.(reconciler)

	var recs []ledger.TradeRecord
	if ok {
		batches, err := rc.FetchTradeBatches(ctx, sym, r.since, 100)
		if err != nil {
			return err
		}
		recs = ledger.MergeSeen(r.seen, batches...).Records
	} else {
		trades, err := r.Broker.FetchTrades(ctx, sym, r.since, 100)
		if err != nil {
			return err
		}
		recs = ledger.MergeSeen(r.seen, trades).Records
	}

	r.Pipeline.Absorb(recs...)
	return nil
}

func chunkSymbols(symbols []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var out [][]string
	for len(symbols) > size {
		out = append(out, symbols[:size])
		symbols = symbols[size:]
	}
	if len(symbols) > 0 {
		out = append(out, symbols)
	}
	return out
}
