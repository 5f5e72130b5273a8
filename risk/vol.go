package risk

import "sort"

// Default regime bounds: above the high percentile of its own trailing
// distribution the market is "hot" and stops widen; below the low
// percentile stops tighten.
const (
	volHighPercentile = 0.75
	volLowPercentile  = 0.25
	volWindowSize     = 100
	volMinSamples     = 10

	maxStopScale = 2.0
	minStopScale = 0.5
)

// VolRegime tracks a trailing window of volatility estimates (typically
// ATR) and scales the stop distance by the current regime.
type VolRegime struct {
	window []float64
}

func NewVolRegime() *VolRegime {
	return &VolRegime{window: make([]float64, 0, volWindowSize)}
}

// Observe appends a volatility estimate to the trailing window.
func (v *VolRegime) Observe(vol float64) {
	if vol <= 0 {
		return
	}
	v.window = append(v.window, vol)
	if len(v.window) > volWindowSize {
		v.window = v.window[1:]
	}
}

// StopScale returns the multiplier applied to the stop distance for the
// given current volatility. In a high-volatility regime the stop widens
// proportionally (up to maxStopScale) to avoid premature exits; in a calm
// regime it tightens (down to minStopScale). With too few samples the
// scale is neutral.
func (v *VolRegime) StopScale(current float64) float64 {
	if len(v.window) < volMinSamples || current <= 0 {
		return 1
	}

	sorted := append([]float64(nil), v.window...)
	sort.Float64s(sorted)

	median := percentile(sorted, 0.5)
	if median <= 0 {
		return 1
	}

	switch {
	case current >= percentile(sorted, volHighPercentile):
		return clamp(current/median, 1, maxStopScale)
	case current <= percentile(sorted, volLowPercentile):
		return clamp(current/median, minStopScale, 1)
	default:
		return 1
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
