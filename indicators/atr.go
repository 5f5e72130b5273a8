package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/bandit/market"
)

// ATR is a streaming Average True Range indicator using Wilder's smoothing.
// The risk sizer uses it as its volatility estimate.
type ATR struct {
	period    int
	atr       float64
	count     int
	warmupSum float64
	prevBar   market.Bar
	hasPrev   bool
}

func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR(%d)", a.period)
}

func (a *ATR) Warmup() int {
	// Need period+1 bars because TR requires a previous close.
	return a.period + 1
}

func (a *ATR) Reset() {
	a.atr = 0
	a.count = 0
	a.warmupSum = 0
	a.hasPrev = false
}

func (a *ATR) Update(b market.Bar) {
	if !a.hasPrev {
		a.prevBar = b
		a.hasPrev = true
		return
	}

	tr := trueRange(b, a.prevBar)

	if a.count < a.period {
		a.warmupSum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmupSum / float64(a.period)
		}
	} else {
		// Wilder's smoothing
		a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
	}

	a.prevBar = b
}

func (a *ATR) Ready() bool {
	return a.count >= a.period
}

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}

func trueRange(current, previous market.Bar) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}
