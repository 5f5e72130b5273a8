package ledger

import (
	"sort"
	"sync"
	"time"
)

// Position is the live holding for one symbol. Quantity is never negative;
// a position is removed once its quantity reaches zero.
type Position struct {
	Symbol       string
	Quantity     float64
	AvgCost      float64
	StopPrice    float64
	TargetPrice  float64
	TrailingStop float64
	OpenedAt     time.Time
}

// Portfolio is the authoritative in-memory record of holdings and P&L.
// Per-symbol pipelines run independently; every mutation funnels through
// one mutex so concurrent symbol runs serialize on aggregation.
type Portfolio struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]*Position
	realized  float64
	seen      map[string]bool
	dropped   int
}

func NewPortfolio(cash float64) *Portfolio {
	return &Portfolio{
		cash:      cash,
		positions: make(map[string]*Position),
		seen:      make(map[string]bool),
	}
}

// Apply folds one reconciled trade record into holdings. Records already
// applied (by composite UID) and malformed records are ignored and counted.
// It reports whether the record was accepted.
func (p *Portfolio) Apply(r TradeRecord) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r.Malformed() || r.Quantity <= 0 || r.Price <= 0 {
		p.dropped++
		return false
	}
	uid := r.Key()
	if p.seen[uid] {
		p.dropped++
		return false
	}
	p.seen[uid] = true

	pos := p.positions[r.Symbol]

	switch r.Side {
	case "buy":
		if pos == nil {
			pos = &Position{Symbol: r.Symbol, OpenedAt: r.Time}
			p.positions[r.Symbol] = pos
		}
		total := pos.AvgCost*pos.Quantity + r.Price*r.Quantity
		pos.Quantity += r.Quantity
		pos.AvgCost = total / pos.Quantity
		p.cash -= r.Price * r.Quantity

	case "sell":
		if pos == nil {
			// Sell with no known holding: nothing to realize against.
			p.dropped++
			return false
		}
		qty := r.Quantity
		if qty > pos.Quantity {
			qty = pos.Quantity // quantity never goes negative
		}
		p.realized += (r.Price - pos.AvgCost) * qty
		p.cash += r.Price * qty
		pos.Quantity -= qty
		if pos.Quantity <= 1e-12 {
			delete(p.positions, r.Symbol)
		}

	default:
		p.dropped++
		return false
	}

	return true
}

// ApplyAll applies a reconciled batch in chronological order and returns
// how many records were accepted.
func (p *Portfolio) ApplyAll(recs []TradeRecord) int {
	ordered := append([]TradeRecord(nil), recs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Time.Before(ordered[j].Time) })

	accepted := 0
	for _, r := range ordered {
		if p.Apply(r) {
			accepted++
		}
	}
	return accepted
}

// SetBracket attaches stop/target protection to an open position.
func (p *Portfolio) SetBracket(symbol string, stop, target float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos := p.positions[symbol]; pos != nil {
		pos.StopPrice = stop
		pos.TargetPrice = target
	}
}

// TightenTrailing raises the trailing stop for a symbol. A stop below the
// current trailing stop is ignored: protection only ever tightens.
func (p *Portfolio) TightenTrailing(symbol string, stop float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos := p.positions[symbol]; pos != nil && stop > pos.TrailingStop {
		pos.TrailingStop = stop
	}
}

// Position returns a copy of the holding for symbol.
func (p *Portfolio) Position(symbol string) (Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open holdings, sorted by symbol. This is
// the position snapshot handed to the dashboard layer.
func (p *Portfolio) Positions() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (p *Portfolio) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

func (p *Portfolio) RealizedPL() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realized
}

// Dropped returns how many records were rejected (duplicate, malformed, or
// unmatched sells) since construction.
func (p *Portfolio) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// UnrealizedPL marks open positions to the given prices. Symbols without a
// price contribute zero.
func (p *Portfolio) UnrealizedPL(prices map[string]float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0.0
	for sym, pos := range p.positions {
		if px, ok := prices[sym]; ok {
			total += (px - pos.AvgCost) * pos.Quantity
		}
	}
	return total
}

// Equity is cash plus open positions marked to the given prices. Symbols
// without a price are valued at cost.
func (p *Portfolio) Equity(prices map[string]float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	eq := p.cash
	for sym, pos := range p.positions {
		px, ok := prices[sym]
		if !ok {
			px = pos.AvgCost
		}
		eq += px * pos.Quantity
	}
	return eq
}

// Notional sums position cost across all holdings; drivers check it against
// equity * max_position_fraction before submitting new orders.
func (p *Portfolio) Notional() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0.0
	for _, pos := range p.positions {
		total += pos.AvgCost * pos.Quantity
	}
	return total
}
