package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/bandit/broker"
	"github.com/rustyeddy/bandit/indicators"
	"github.com/rustyeddy/bandit/ledger"
	"github.com/rustyeddy/bandit/market"
	"github.com/rustyeddy/bandit/risk"
	"github.com/rustyeddy/bandit/signal"
)

// trailingBroker is implemented by brokers that track trailing stops
// server-side (the sim engine does).
type trailingBroker interface {
	SetTrailing(symbol string, stop float64)
}

// StepResult reports what one bar produced.
type StepResult struct {
	Signal    signal.Signal
	Submitted bool
	Record    ledger.TradeRecord
}

// Pipeline is the per-bar decision step shared by all three run modes:
// update the window, generate a signal, size it, enforce the exposure cap,
// submit, and fold the resulting fill into the portfolio and store.
//
// A Pipeline is single-writer: each instance is driven by exactly one
// goroutine. Cross-symbol aggregation happens inside Portfolio.
type Pipeline struct {
	gen       *signal.Generator
	sizer     *risk.Sizer
	params    risk.Parameters
	portfolio *ledger.Portfolio
	broker    broker.Broker
	store     ledger.Store // nil disables persistence

	windowCap int
	windows   map[string][]market.Bar
	vol       map[string]*indicators.ATR
	prices    map[string]float64

	// deferFills stops Step from applying submit acks directly. Live runs
	// set it: a real order fills asynchronously, and applying both the ack
	// and the reconciled fill (distinct UIDs for the same trade) would
	// double-count. Reconciliation becomes the only writer; pending holds
	// the stop/target of submitted buys until their fill is reconciled.
	deferFills bool
	pending    map[string]bracket

	closed int
	wins   int
	losses int
}

func NewPipeline(gen *signal.Generator, sizer *risk.Sizer, params risk.Parameters,
	pf *ledger.Portfolio, b broker.Broker, store ledger.Store) *Pipeline {

	sp := gen.Params()
	winCap := sp.Window + sp.MomentumLong + 1

	return &Pipeline{
		gen:       gen,
		sizer:     sizer,
		params:    params,
		portfolio: pf,
		broker:    b,
		store:     store,
		windowCap: winCap,
		windows:   make(map[string][]market.Bar),
		vol:       make(map[string]*indicators.ATR),
		prices:    make(map[string]float64),
		pending:   make(map[string]bracket),
	}
}

// bracket is the protection attached to a buy once its fill is known.
type bracket struct {
	stop   float64
	target float64
}

// Step processes one closed bar for its symbol.
func (p *Pipeline) Step(ctx context.Context, b market.Bar) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}

	win := append(p.windows[b.Symbol], b)
	if len(win) > p.windowCap {
		win = win[len(win)-p.windowCap:]
	}
	p.windows[b.Symbol] = win
	p.prices[b.Symbol] = b.Close

	atr, ok := p.vol[b.Symbol]
	if !ok {
		atr = indicators.NewATR(p.gen.Params().Window)
		p.vol[b.Symbol] = atr
	}
	atr.Update(b)
	volEstimate := 0.0
	if atr.Ready() {
		volEstimate = atr.Value()
	}

	p.tightenTrailing(b)

	res := StepResult{Signal: p.gen.Generate(win)}
	sig := res.Signal
	if sig.Action == signal.Hold {
		return res, nil
	}

	equity := p.portfolio.Equity(p.prices)
	order := p.sizer.Size(sig, equity, volEstimate)
	if order == nil {
		return res, nil
	}

	switch order.Side {
	case broker.Sell:
		// Spot only: a sell closes an existing holding or does nothing.
		// High-urgency signals liquidate the whole position regardless of
		// the sized quantity.
		pos, held := p.portfolio.Position(b.Symbol)
		if !held {
			return res, nil
		}
		if order.Quantity > pos.Quantity || p.gen.ExitPriority(sig) {
			order.Quantity = pos.Quantity
		}

	case broker.Buy:
		// Portfolio-level exposure cap on top of the per-position clamp:
		// an order that would breach it shrinks to the remaining headroom,
		// so an existing holding never starves new entries. Only a full
		// book skips the trade.
		limit := equity * p.params.MaxPositionFraction
		headroom := limit - p.portfolio.Notional()
		if headroom <= limit*1e-9 {
			return res, nil
		}
		// Fills slip against us, so budget the headroom at the slipped price.
		px := sig.ReferencePrice * (1 + p.params.SlippagePct)
		if order.Quantity*px > headroom {
			order.Quantity = headroom / px
		}
	}

	rec, err := p.broker.SubmitOrder(ctx, *order)
	if err != nil {
		return res, fmt.Errorf("submit %s %s: %w", order.Side, order.Symbol, err)
	}

	if !p.deferFills {
		p.absorb(rec)
		if order.Side == broker.Buy {
			p.portfolio.SetBracket(b.Symbol, order.StopPrice, order.TargetPrice)
		}
	} else if order.Side == broker.Buy {
		// The fill lands later via reconciliation; remember the protection
		// levels so absorb can arm them on the real position.
		p.pending[b.Symbol] = bracket{stop: order.StopPrice, target: order.TargetPrice}
	}

	res.Submitted = true
	res.Record = rec
	return res, nil
}

// Absorb folds externally produced fills (auto-exits, reconciled polls)
// into the portfolio, the Kelly stats, and the store. Duplicates are
// rejected by the portfolio's seen-UID set, so feeding the same record
// twice is harmless.
func (p *Pipeline) Absorb(recs ...ledger.TradeRecord) {
	for _, r := range recs {
		p.absorb(r)
	}
}

func (p *Pipeline) absorb(r ledger.TradeRecord) {
	before := p.portfolio.RealizedPL()
	if !p.portfolio.Apply(r) {
		return
	}
	if r.Side == "buy" {
		if br, ok := p.pending[r.Symbol]; ok {
			p.portfolio.SetBracket(r.Symbol, br.stop, br.target)
			delete(p.pending, r.Symbol)
		}
	}
	if r.Side == "sell" {
		delta := p.portfolio.RealizedPL() - before
		p.sizer.RecordResult(delta)
		p.closed++
		if delta > 0 {
			p.wins++
		} else if delta < 0 {
			p.losses++
		}
	}
	if p.store != nil {
		if err := p.store.RecordTrade(r); err != nil {
			fmt.Printf("ledger: record trade %s: %v\n", r.Key(), err)
		}
	}
}

// tightenTrailing ratchets the protective stop behind a rising price.
func (p *Pipeline) tightenTrailing(b market.Bar) {
	pos, held := p.portfolio.Position(b.Symbol)
	if !held || b.Close <= pos.AvgCost {
		return
	}
	stop := p.sizer.TrailingStop(pos.AvgCost, b.Close, pos.TrailingStop)
	if stop <= pos.TrailingStop {
		return
	}
	p.portfolio.TightenTrailing(b.Symbol, stop)
	if tb, ok := p.broker.(trailingBroker); ok {
		tb.SetTrailing(b.Symbol, stop)
	}
}

// Equity marks the portfolio to the latest seen prices.
func (p *Pipeline) Equity() float64 {
	return p.portfolio.Equity(p.prices)
}

// SnapshotEquity records an equity snapshot (when a store is attached) and
// returns the marked equity.
func (p *Pipeline) SnapshotEquity(ts time.Time) float64 {
	eq := p.portfolio.Equity(p.prices)
	if p.store != nil {
		if err := p.store.RecordEquity(ledger.EquitySnapshot{
			Time:       ts,
			Cash:       p.portfolio.Cash(),
			Equity:     eq,
			RealizedPL: p.portfolio.RealizedPL(),
		}); err != nil {
			fmt.Printf("ledger: record equity: %v\n", err)
		}
	}
	return eq
}

// DeferFills switches the pipeline to reconciliation-driven accounting:
// submit acks are not applied, only absorbed records move the portfolio.
func (p *Pipeline) DeferFills() { p.deferFills = true }

// Portfolio exposes the shared holdings state.
func (p *Pipeline) Portfolio() *ledger.Portfolio { return p.portfolio }

// Closed reports closed-trade counts since construction.
func (p *Pipeline) Closed() (trades, wins, losses int) {
	return p.closed, p.wins, p.losses
}

// Prices returns the latest close per symbol.
func (p *Pipeline) Prices() map[string]float64 {
	out := make(map[string]float64, len(p.prices))
	for k, v := range p.prices {
		out[k] = v
	}
	return out
}
