// Package indicators provides streaming technical indicators for the signal
// pipeline. Each indicator consumes closed bars one at a time and is
// deterministic: the same bar sequence always produces the same values, so
// the same code runs in backtests, paper, and live trading.
package indicators

import "github.com/rustyeddy/bandit/market"

// Indicator computes a single streaming value from bars.
type Indicator interface {
	// Name returns a stable identifier like "BOLL(20,2)" or "ROC(10)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed bar.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current indicator value; callers must check Ready().
	Value() float64
}
