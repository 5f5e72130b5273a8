// Package risk converts signals into concretely sized orders under a fixed
// fractional risk budget.
package risk

import "fmt"

// Parameters is the risk budget for a run. It is loaded once at startup and
// read-only afterwards; no component mutates it.
type Parameters struct {
	RiskFraction        float64 `json:"risk_fraction" yaml:"risk_fraction"`                 // fraction of equity at risk per trade, e.g. 0.01
	StopLossPct         float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`                 // 0.01
	TakeProfitPct       float64 `json:"take_profit_pct" yaml:"take_profit_pct"`             // 0.02
	SlippagePct         float64 `json:"slippage_pct" yaml:"slippage_pct"`                   // 0.001
	MaxPositionFraction float64 `json:"max_position_fraction" yaml:"max_position_fraction"` // 0.25
	KellyCap            float64 `json:"kelly_cap" yaml:"kelly_cap"`                         // 1.5
}

func DefaultParameters() Parameters {
	return Parameters{
		RiskFraction:        0.01,
		StopLossPct:         0.01,
		TakeProfitPct:       0.02,
		SlippagePct:         0.001,
		MaxPositionFraction: 0.25,
		KellyCap:            1.5,
	}
}

func (p Parameters) Validate() error {
	if p.RiskFraction <= 0 || p.RiskFraction > 0.1 {
		return fmt.Errorf("risk_fraction must be in (0, 0.1], got %g", p.RiskFraction)
	}
	if p.StopLossPct <= 0 || p.StopLossPct >= 1 {
		return fmt.Errorf("stop_loss_pct must be in (0, 1), got %g", p.StopLossPct)
	}
	if p.TakeProfitPct <= 0 || p.TakeProfitPct >= 1 {
		return fmt.Errorf("take_profit_pct must be in (0, 1), got %g", p.TakeProfitPct)
	}
	if p.SlippagePct < 0 || p.SlippagePct >= 0.1 {
		return fmt.Errorf("slippage_pct must be in [0, 0.1), got %g", p.SlippagePct)
	}
	if p.MaxPositionFraction <= 0 || p.MaxPositionFraction > 1 {
		return fmt.Errorf("max_position_fraction must be in (0, 1], got %g", p.MaxPositionFraction)
	}
	if p.KellyCap < 1 {
		return fmt.Errorf("kelly_cap must be >= 1, got %g", p.KellyCap)
	}
	return nil
}
