// Package sim provides the simulated broker used by backtests and paper
// trading. It fills orders at the latest known price (plus slippage),
// tracks simulated balances, and auto-exits bracketed positions on
// stop/target/trailing triggers as prices update.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/bandit/broker"
	"github.com/rustyeddy/bandit/ledger"
	"github.com/rustyeddy/bandit/market"
	"github.com/rustyeddy/bandit/pkg/id"
)

// Exit reports a position the engine closed on its own.
type Exit struct {
	Symbol string
	Reason string // "StopLoss", "TakeProfit", "TrailingStop"
	Record ledger.TradeRecord
}

type position struct {
	qty      float64
	entry    float64
	stop     float64
	target   float64
	trailing float64
}

// Engine is an in-memory broker. One instance backs exactly one run; the
// mutex serializes order flow against price updates.
type Engine struct {
	mu          sync.Mutex
	slippagePct float64
	quote       string // account quote asset, e.g. "USDT"

	tickers   *market.TickerStore
	balances  map[string]float64
	positions map[string]*position
	fills     []ledger.TradeRecord
	bars      map[string][]market.Bar
}

func NewEngine(quote string, cash, slippagePct float64) *Engine {
	return &Engine{
		slippagePct: slippagePct,
		quote:       quote,
		tickers:     market.NewTickerStore(),
		balances:    map[string]float64{quote: cash},
		positions:   make(map[string]*position),
		bars:        make(map[string][]market.Bar),
	}
}

// SetBars preloads historical bars served by GetBars.
func (e *Engine) SetBars(symbol string, bars []market.Bar) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bars[symbol] = bars
}

// UpdatePrice records the latest ticker and fires any stop/target/trailing
// exits it triggers. Exits are returned so the driver can feed them through
// reconciliation like any other fill.
func (e *Engine) UpdatePrice(t market.Ticker) []Exit {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickers.Set(t)

	pos, ok := e.positions[t.Symbol]
	if !ok || pos.qty <= 0 {
		return nil
	}

	price := t.Last
	reason := ""
	switch {
	case pos.trailing > 0 && price <= pos.trailing && pos.trailing > pos.stop:
		reason = "TrailingStop"
	case pos.stop > 0 && price <= pos.stop:
		reason = "StopLoss"
	case pos.target > 0 && price >= pos.target:
		reason = "TakeProfit"
	default:
		return nil
	}

	rec := e.fillLocked(broker.Order{
		Symbol:   t.Symbol,
		Side:     broker.Sell,
		Quantity: pos.qty,
		Type:     broker.Market,
		ClientID: id.New(),
	}, price, t.Time)

	return []Exit{{Symbol: t.Symbol, Reason: reason, Record: rec}}
}

// UpdateBar folds a closed bar into the engine: bracket triggers are
// evaluated conservatively against the bar's range (stop before target when
// both are inside the bar), then the close becomes the latest price.
func (e *Engine) UpdateBar(b market.Bar) []Exit {
	e.mu.Lock()
	pos, ok := e.positions[b.Symbol]

	if ok && pos.qty > 0 {
		reason := ""
		price := 0.0
		switch {
		case pos.trailing > 0 && b.Low <= pos.trailing && pos.trailing > pos.stop:
			reason, price = "TrailingStop", pos.trailing
		case pos.stop > 0 && b.Low <= pos.stop:
			// Worst case for the trader: stop fires first.
			reason, price = "StopLoss", pos.stop
		case pos.target > 0 && b.High >= pos.target:
			reason, price = "TakeProfit", pos.target
		}

		if reason != "" {
			rec := e.fillLocked(broker.Order{
				Symbol:   b.Symbol,
				Side:     broker.Sell,
				Quantity: pos.qty,
				Type:     broker.Market,
				ClientID: id.New(),
			}, price, b.Time)
			e.tickers.Set(tickerFromBar(b))
			e.mu.Unlock()
			return []Exit{{Symbol: b.Symbol, Reason: reason, Record: rec}}
		}
	}

	e.tickers.Set(tickerFromBar(b))
	e.mu.Unlock()
	return nil
}

// SetTrailing tightens the trailing stop for an open position. Looser
// values are ignored.
func (e *Engine) SetTrailing(symbol string, stop float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pos, ok := e.positions[symbol]; ok && stop > pos.trailing {
		pos.trailing = stop
	}
}

// SubmitOrder fills immediately at the latest price plus slippage.
func (e *Engine) SubmitOrder(ctx context.Context, o broker.Order) (ledger.TradeRecord, error) {
	if err := ctx.Err(); err != nil {
		return ledger.TradeRecord{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tickers.Get(o.Symbol)
	if err != nil {
		return ledger.TradeRecord{}, fmt.Errorf("sim: no price for %q: %w", o.Symbol, err)
	}

	price := t.Last
	if o.Type == broker.Limit && o.LimitPrice > 0 {
		price = o.LimitPrice
	} else if o.Side == broker.Buy {
		price = t.Last * (1 + e.slippagePct)
	} else {
		price = t.Last * (1 - e.slippagePct)
	}

	if o.Side == broker.Buy {
		cost := price * o.Quantity
		if cost > e.balances[e.quote] {
			return ledger.TradeRecord{}, broker.Fatal("submit order", "insufficient",
				fmt.Errorf("cost %.2f exceeds balance %.2f", cost, e.balances[e.quote]))
		}
	}

	rec := e.fillLocked(o, price, t.Time)

	if o.Side == broker.Buy {
		pos := e.positions[o.Symbol]
		pos.stop = o.StopPrice
		pos.target = o.TargetPrice
	}

	return rec, nil
}

// fillLocked books the fill into balances, positions, and the fill log.
func (e *Engine) fillLocked(o broker.Order, price float64, ts time.Time) ledger.TradeRecord {
	base := market.Base(o.Symbol)

	pos, ok := e.positions[o.Symbol]
	if !ok {
		pos = &position{}
		e.positions[o.Symbol] = pos
	}

	if o.Side == broker.Buy {
		e.balances[e.quote] -= price * o.Quantity
		e.balances[base] += o.Quantity
		total := pos.entry*pos.qty + price*o.Quantity
		pos.qty += o.Quantity
		pos.entry = total / pos.qty
	} else {
		qty := o.Quantity
		if qty > pos.qty {
			qty = pos.qty
		}
		e.balances[e.quote] += price * qty
		e.balances[base] -= qty
		pos.qty -= qty
		if pos.qty <= 1e-12 {
			delete(e.positions, o.Symbol)
		}
	}

	rec := ledger.TradeRecord{
		Source:   ledger.SourceFills,
		ID:       id.New(),
		OrderID:  o.ClientID,
		Symbol:   o.Symbol,
		Side:     string(o.Side),
		Price:    price,
		Quantity: o.Quantity,
		Time:     ts,
		Notional: price * o.Quantity,
	}
	e.fills = append(e.fills, rec)
	return rec
}

// FetchTrades returns recorded fills, newest last, filtered by symbol and
// since. limit <= 0 returns everything.
func (e *Engine) FetchTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]ledger.TradeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]ledger.TradeRecord, 0, len(e.fills))
	for _, r := range e.fills {
		if symbol != "" && r.Symbol != symbol {
			continue
		}
		if !since.IsZero() && r.Time.Before(since) {
			continue
		}
		out = append(out, r)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (e *Engine) FetchBalances(ctx context.Context) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]float64, len(e.balances))
	for k, v := range e.balances {
		out[k] = v
	}
	return out, nil
}

func (e *Engine) GetTicker(ctx context.Context, symbol string) (market.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return market.Ticker{}, err
	}
	return e.tickers.Get(symbol)
}

func (e *Engine) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	bars := e.bars[symbol]
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return append([]market.Bar(nil), bars...), nil
}

// Position reports the open quantity and entry price for a symbol.
func (e *Engine) Position(symbol string) (qty, entry float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pos, ok := e.positions[symbol]; ok {
		return pos.qty, pos.entry
	}
	return 0, 0
}

func tickerFromBar(b market.Bar) market.Ticker {
	return market.Ticker{
		Symbol: b.Symbol,
		Time:   b.Time,
		Bid:    b.Close,
		Ask:    b.Close,
		Last:   b.Close,
	}
}
