package signal

import (
	"github.com/rustyeddy/bandit/indicators"
	"github.com/rustyeddy/bandit/market"
)

// Confidence blend weights. A bare band touch with no momentum agreement
// scores below the default entry threshold; the score climbs with distance
// past the band and with momentum confirmation.
const (
	baseConfidence = 55.0
	distanceWeight = 35.0
	momentumWeight = 10.0
)

// Generator proposes BUY at or below the lower Bollinger band and SELL at or
// above the upper band, with a momentum confirmation filter.
//
// Generate is a pure function of the bar window and params: indicators are
// rebuilt from the window on every call, so the same bars always yield the
// same signal regardless of what was generated before. Backtest determinism
// depends on this.
type Generator struct {
	params Params
}

func NewGenerator(params Params) *Generator {
	return &Generator{params: params}
}

func (g *Generator) Params() Params { return g.params }

// Generate evaluates the most recent bar against the window behind it.
// With fewer bars than warmup it returns HOLD with zero confidence.
func (g *Generator) Generate(bars []market.Bar) Signal {
	if len(bars) == 0 {
		return Signal{Action: Hold}
	}

	last := bars[len(bars)-1]
	sig := Signal{
		Symbol:         last.Symbol,
		Action:         Hold,
		ReferencePrice: last.Close,
		Time:           last.Time,
	}

	boll := indicators.NewBollinger(g.params.Window, g.params.BandK)
	rocShort := indicators.NewROC(g.params.MomentumShort)
	rocLong := indicators.NewROC(g.params.MomentumLong)

	for _, b := range bars {
		boll.Update(b)
		rocShort.Update(b)
		rocLong.Update(b)
	}

	if !boll.Ready() || !rocShort.Ready() || !rocLong.Ready() {
		return sig
	}

	sig.Snapshot = Snapshot{
		Mean:          boll.Value(),
		Upper:         boll.Upper(),
		Lower:         boll.Lower(),
		StdDev:        boll.StdDev(),
		MomentumShort: rocShort.Value(),
		MomentumLong:  rocLong.Value(),
	}

	width := boll.Width()
	if width <= 0 {
		// Flat window, no statistical edge to act on.
		return sig
	}

	momAgrees := sameSign(rocShort.Value(), rocLong.Value())

	switch {
	case last.Close <= boll.Lower():
		sig.Action = Buy
		sig.Confidence = confidence((boll.Lower()-last.Close)/width, momAgrees)

	case last.Close >= boll.Upper():
		sig.Action = Sell
		sig.Confidence = confidence((last.Close-boll.Upper())/width, momAgrees)
	}

	// Below the entry threshold the signal degrades to HOLD.
	if sig.Action != Hold && sig.Confidence < g.params.EntryMinConfidence {
		sig.Action = Hold
	}

	return sig
}

// ExitPriority reports whether the signal is urgent enough to prioritize
// exits ahead of the normal queue.
func (g *Generator) ExitPriority(s Signal) bool {
	return s.Action != Hold && s.Confidence >= g.params.ExitPriorityMinConfidence
}

func confidence(distFrac float64, momAgrees bool) float64 {
	if distFrac < 0 {
		distFrac = 0
	}
	if distFrac > 1 {
		distFrac = 1
	}
	c := baseConfidence + distanceWeight*distFrac
	if momAgrees {
		c += momentumWeight
	}
	if c > 100 {
		c = 100
	}
	return c
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
