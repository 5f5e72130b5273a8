package indicators

import (
	"fmt"

	"github.com/rustyeddy/bandit/market"
)

// ROC is a streaming rate-of-change momentum indicator: the fractional
// change of close over the last `period` bars.
type ROC struct {
	period int
	closes []float64
}

func NewROC(period int) *ROC {
	return &ROC{
		period: period,
		closes: make([]float64, 0, period+1),
	}
}

func (r *ROC) Name() string {
	return fmt.Sprintf("ROC(%d)", r.period)
}

func (r *ROC) Warmup() int {
	// Needs period+1 closes to compare against the oldest.
	return r.period + 1
}

func (r *ROC) Reset() {
	r.closes = r.closes[:0]
}

func (r *ROC) Update(b market.Bar) {
	r.closes = append(r.closes, b.Close)
	if len(r.closes) > r.period+1 {
		r.closes = r.closes[1:]
	}
}

func (r *ROC) Ready() bool {
	return len(r.closes) >= r.period+1
}

func (r *ROC) Value() float64 {
	if !r.Ready() {
		return 0
	}
	oldest := r.closes[0]
	if oldest == 0 {
		return 0
	}
	return (r.closes[len(r.closes)-1] - oldest) / oldest
}
