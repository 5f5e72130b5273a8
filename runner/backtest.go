package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rustyeddy/bandit/broker"
	"github.com/rustyeddy/bandit/broker/sim"
)

// BacktestRunner replays a bar feed through the pipeline against the
// simulated broker. Given the same feed and parameters it produces the
// same report every run.
type BacktestRunner struct {
	Engine   *sim.Engine
	Pipeline *Pipeline
	Feed     BarFeed

	// CloseEnd liquidates remaining positions at the last seen price when
	// the feed is exhausted, so the report reflects realized results only.
	CloseEnd bool
}

// Run executes the backtest loop: auto-exit brackets against each bar's
// range, then run the decision step, then snapshot equity.
func (r *BacktestRunner) Run(ctx context.Context) (Report, error) {
	if r.Engine == nil || r.Pipeline == nil || r.Feed == nil {
		return Report{}, fmt.Errorf("backtest: engine, pipeline and feed are required")
	}
	defer r.Feed.Close()

	var report Report
	var curve []float64
	lastSeen := make(map[string]time.Time)

	for {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}

		b, ok, err := r.Feed.Next()
		if err != nil {
			return Report{}, err
		}
		if !ok {
			break
		}

		// Per-symbol bars must arrive in ascending time; a stale or
		// duplicate row is a data defect, not a reason to abort.
		if last, ok := lastSeen[b.Symbol]; ok && !b.Time.After(last) {
			report.BadBars++
			log.Printf("backtest: dropping out-of-order bar %s at %s", b.Symbol, b.Time)
			continue
		}
		lastSeen[b.Symbol] = b.Time

		if report.Start.IsZero() || b.Time.Before(report.Start) {
			report.Start = b.Time
		}
		if b.Time.After(report.End) {
			report.End = b.Time
		}

		for _, exit := range r.Engine.UpdateBar(b) {
			r.Pipeline.Absorb(exit.Record)
		}

		if _, err := r.Pipeline.Step(ctx, b); err != nil {
			if broker.IsFatal(err) {
				// A rejected order (e.g. insufficient sim balance) skips
				// this bar; the run itself continues.
				log.Printf("backtest: %v", err)
			} else {
				return Report{}, err
			}
		}

		curve = append(curve, r.Pipeline.SnapshotEquity(b.Time))
	}

	if r.CloseEnd {
		r.closeAll(ctx)
		if len(curve) > 0 {
			curve[len(curve)-1] = r.Pipeline.Equity()
		}
	}

	pf := r.Pipeline.Portfolio()
	report.Trades, report.Wins, report.Losses = r.Pipeline.Closed()
	report.RealizedPL = pf.RealizedPL()
	report.Dropped = pf.Dropped()
	return buildReport(report, curve), nil
}

// closeAll liquidates every open position at the latest price.
func (r *BacktestRunner) closeAll(ctx context.Context) {
	for _, pos := range r.Pipeline.Portfolio().Positions() {
		rec, err := r.Engine.SubmitOrder(ctx, broker.Order{
			Symbol:   pos.Symbol,
			Side:     broker.Sell,
			Quantity: pos.Quantity,
			Type:     broker.Market,
		})
		if err != nil {
			log.Printf("backtest: close %s at end of data: %v", pos.Symbol, err)
			continue
		}
		r.Pipeline.Absorb(rec)
	}
}
