package risk

import (
	"math"

	"github.com/rustyeddy/bandit/broker"
	"github.com/rustyeddy/bandit/pkg/id"
	"github.com/rustyeddy/bandit/signal"
)

// epsilon keeps risk-per-unit strictly positive so quantity math can never
// divide by zero.
const epsilon = 1e-9

// Sizer turns signals into orders. It carries the trailing win/loss stats
// for Kelly scaling and the trailing volatility window for regime-based
// stop adjustment; both are owned by the single pipeline writer.
type Sizer struct {
	params Parameters
	stats  TrailingStats
	regime *VolRegime
}

func NewSizer(params Parameters) *Sizer {
	return &Sizer{
		params: params,
		regime: NewVolRegime(),
	}
}

// RecordResult feeds a closed trade's realized P&L into the Kelly estimate.
func (s *Sizer) RecordResult(realizedPL float64) {
	s.stats.Record(realizedPL)
}

// Size converts a signal into a concrete market order, or nil for HOLD and
// for any signal that fails the final sanity check. It never returns an
// order whose computed risk exceeds RiskFraction * equity, and never
// propagates NaN/Inf downstream.
func (s *Sizer) Size(sig signal.Signal, equity, volEstimate float64) *broker.Order {
	if sig.Action == signal.Hold {
		return nil
	}
	if equity <= 0 || sig.ReferencePrice <= 0 {
		return nil
	}

	s.regime.Observe(volEstimate)
	stopScale := s.regime.StopScale(volEstimate)
	stopPct := s.params.StopLossPct * stopScale

	riskPerUnit := math.Max(epsilon, sig.ReferencePrice*stopPct)

	dollarsAtRisk := equity * s.params.RiskFraction * s.stats.Multiplier(s.params.KellyCap)

	quantity := dollarsAtRisk / riskPerUnit

	// Exposure clamp: quantity * price may not exceed the portfolio slice
	// allowed for a single position.
	maxQty := equity * s.params.MaxPositionFraction / sig.ReferencePrice
	if quantity > maxQty {
		quantity = maxQty
	}

	if !isFinitePositive(quantity) || !isFinitePositive(dollarsAtRisk) {
		return nil
	}

	// Fills are assumed to slip against us.
	var side broker.Side
	var entry, stop, target float64

	switch sig.Action {
	case signal.Buy:
		side = broker.Buy
		entry = sig.ReferencePrice * (1 + s.params.SlippagePct)
		stop = entry * (1 - stopPct)
		target = entry * (1 + s.params.TakeProfitPct)
	case signal.Sell:
		side = broker.Sell
		entry = sig.ReferencePrice * (1 - s.params.SlippagePct)
		stop = entry * (1 + stopPct)
		target = entry * (1 - s.params.TakeProfitPct)
	default:
		return nil
	}

	if !isFinitePositive(entry) || !isFinitePositive(stop) || !isFinitePositive(target) {
		return nil
	}

	return &broker.Order{
		Symbol:      sig.Symbol,
		Side:        side,
		Quantity:    quantity,
		Type:        broker.Market,
		StopPrice:   stop,
		TargetPrice: target,
		ClientID:    id.New(),
	}
}

// TrailingStop recomputes the protective stop for a long position in
// profit. The returned stop only ever tightens toward the current price:
// it is monotonically non-decreasing across calls.
func (s *Sizer) TrailingStop(avgCost, currentPrice, prevStop float64) float64 {
	if currentPrice <= avgCost {
		return prevStop
	}
	candidate := currentPrice * (1 - s.params.StopLossPct)
	if candidate > prevStop {
		return candidate
	}
	return prevStop
}

func isFinitePositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}
