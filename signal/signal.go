// Package signal turns a window of closed bars into a trade signal.
package signal

import (
	"fmt"
	"time"
)

type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// Snapshot captures the indicator state a signal was derived from. It rides
// along for journaling and debugging; the sizer only reads ReferencePrice.
type Snapshot struct {
	Mean          float64
	Upper         float64
	Lower         float64
	StdDev        float64
	MomentumShort float64
	MomentumLong  float64
}

// Signal is produced once per bar and consumed once by the risk sizer.
// It is never persisted.
type Signal struct {
	Symbol         string
	Action         Action
	Confidence     float64 // 0..100
	ReferencePrice float64
	Time           time.Time
	Snapshot       Snapshot
}

// Actionable reports whether the signal clears the entry threshold.
func (s Signal) Actionable(minConfidence float64) bool {
	return s.Action != Hold && s.Confidence >= minConfidence
}

// Params configures the generator. Entry and exit-priority thresholds are
// independent knobs: the entry threshold gates new positions, the higher
// exit-priority threshold marks signals urgent enough to jump the exit queue.
type Params struct {
	Window        int     `json:"window" yaml:"window"`                 // 20
	BandK         float64 `json:"band_k" yaml:"band_k"`                 // 2.0
	MomentumShort int     `json:"momentum_short" yaml:"momentum_short"` // 5
	MomentumLong  int     `json:"momentum_long" yaml:"momentum_long"`   // 10

	EntryMinConfidence        float64 `json:"entry_min_confidence" yaml:"entry_min_confidence"`                 // 60
	ExitPriorityMinConfidence float64 `json:"exit_priority_min_confidence" yaml:"exit_priority_min_confidence"` // 95
}

func DefaultParams() Params {
	return Params{
		Window:                    20,
		BandK:                     2.0,
		MomentumShort:             5,
		MomentumLong:              10,
		EntryMinConfidence:        60,
		ExitPriorityMinConfidence: 95,
	}
}

func (p Params) Validate() error {
	if p.Window < 2 {
		return fmt.Errorf("signal window must be >= 2, got %d", p.Window)
	}
	if p.BandK <= 0 {
		return fmt.Errorf("band_k must be positive, got %g", p.BandK)
	}
	if p.MomentumShort <= 0 || p.MomentumLong <= 0 {
		return fmt.Errorf("momentum windows must be positive, got %d/%d",
			p.MomentumShort, p.MomentumLong)
	}
	if p.MomentumShort >= p.MomentumLong {
		return fmt.Errorf("momentum_short (%d) must be below momentum_long (%d)",
			p.MomentumShort, p.MomentumLong)
	}
	if p.EntryMinConfidence < 0 || p.EntryMinConfidence > 100 {
		return fmt.Errorf("entry_min_confidence must be in [0,100], got %g", p.EntryMinConfidence)
	}
	if p.ExitPriorityMinConfidence < 0 || p.ExitPriorityMinConfidence > 100 {
		return fmt.Errorf("exit_priority_min_confidence must be in [0,100], got %g", p.ExitPriorityMinConfidence)
	}
	return nil
}
