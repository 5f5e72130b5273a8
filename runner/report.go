package runner

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Report summarizes a completed run. Ratio fields can be meaningless on
// degenerate runs (no trades, flat equity); they are computed guarded and
// any non-finite value is omitted from the JSON form rather than emitted
// as NaN.
type Report struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Bars  int       `json:"bars"`

	Trades int `json:"trades"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`

	StartEquity float64 `json:"start_equity"`
	EndEquity   float64 `json:"end_equity"`
	RealizedPL  float64 `json:"realized_pl"`
	Dropped     int     `json:"dropped"`
	BadBars     int     `json:"bad_bars"`

	WinRate        float64 `json:"win_rate"`
	ReturnPct      float64 `json:"return_pct"`
	Sharpe         float64 `json:"sharpe"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
}

// buildReport fills the derived ratio fields from an equity curve sampled
// once per bar.
func buildReport(r Report, curve []float64) Report {
	r.Bars = len(curve)

	if len(curve) > 0 {
		r.StartEquity = curve[0]
		r.EndEquity = curve[len(curve)-1]
	}

	if r.Trades > 0 {
		r.WinRate = float64(r.Wins) / float64(r.Trades)
	} else {
		r.WinRate = math.NaN()
	}

	if r.StartEquity > 0 {
		r.ReturnPct = (r.EndEquity - r.StartEquity) / r.StartEquity * 100
	} else {
		r.ReturnPct = math.NaN()
	}

	r.Sharpe = sharpe(curve)
	r.MaxDrawdownPct = maxDrawdown(curve)
	return r
}

// sharpe is the mean/stddev ratio of per-bar returns, unannualized. NaN
// when there are too few samples or the curve is flat.
func sharpe(curve []float64) float64 {
	if len(curve) < 3 {
		return math.NaN()
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] <= 0 {
			return math.NaN()
		}
		returns = append(returns, curve[i]/curve[i-1]-1)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))

	if variance <= 0 {
		return math.NaN()
	}
	return mean / math.Sqrt(variance)
}

// maxDrawdown is the largest peak-to-trough equity decline, in percent.
func maxDrawdown(curve []float64) float64 {
	if len(curve) == 0 {
		return math.NaN()
	}

	peak := curve[0]
	worst := 0.0
	for _, eq := range curve {
		if eq > peak {
			peak = eq
		}
		if peak > 0 {
			dd := (peak - eq) / peak * 100
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// MarshalJSON emits the report with non-finite ratios omitted.
func (r Report) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"start":        r.Start,
		"end":          r.End,
		"bars":         r.Bars,
		"trades":       r.Trades,
		"wins":         r.Wins,
		"losses":       r.Losses,
		"start_equity": r.StartEquity,
		"end_equity":   r.EndEquity,
		"realized_pl":  r.RealizedPL,
		"dropped":      r.Dropped,
		"bad_bars":     r.BadBars,
	}
	putFinite(m, "win_rate", r.WinRate)
	putFinite(m, "return_pct", r.ReturnPct)
	putFinite(m, "sharpe", r.Sharpe)
	putFinite(m, "max_drawdown_pct", r.MaxDrawdownPct)
	return json.Marshal(m)
}

func putFinite(m map[string]any, key string, v float64) {
	if !math.IsNaN(v) && !math.IsInf(v, 0) {
		m[key] = v
	}
}

// String renders a one-screen summary for the CLI.
func (r Report) String() string {
	return fmt.Sprintf(
		"bars=%d trades=%d wins=%d losses=%d equity %.2f -> %.2f (%.2f%%) maxDD %.2f%% dropped=%d",
		r.Bars, r.Trades, r.Wins, r.Losses,
		r.StartEquity, r.EndEquity, safePct(r.ReturnPct), safePct(r.MaxDrawdownPct), r.Dropped)
}

func safePct(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
