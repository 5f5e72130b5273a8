// Package config loads and validates the engine configuration. Files are
// YAML first with a JSON fallback; validation fails fast at load so a bad
// value never reaches a running pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/bandit/market"
	"github.com/rustyeddy/bandit/risk"
	"github.com/rustyeddy/bandit/signal"
)

// Config is the complete engine configuration for one run.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Broker   BrokerConfig   `json:"broker" yaml:"broker"`
	Ledger   LedgerConfig   `json:"ledger" yaml:"ledger"`
}

// AccountConfig sets the starting account state.
type AccountConfig struct {
	Currency string  `json:"currency" yaml:"currency"` // quote asset, e.g. "USDT"
	Balance  float64 `json:"balance" yaml:"balance"`
}

// StrategyConfig holds the signal generator parameters plus the symbols and
// timeframe the runners scan.
type StrategyConfig struct {
	Symbols                   []string `json:"symbols" yaml:"symbols"`
	Timeframe                 string   `json:"timeframe" yaml:"timeframe"`
	Window                    int      `json:"window" yaml:"window"`
	BandK                     float64  `json:"band_k" yaml:"band_k"`
	MomentumShort             int      `json:"momentum_short" yaml:"momentum_short"`
	MomentumLong              int      `json:"momentum_long" yaml:"momentum_long"`
	EntryMinConfidence        float64  `json:"entry_min_confidence" yaml:"entry_min_confidence"`
	ExitPriorityMinConfidence float64  `json:"exit_priority_min_confidence" yaml:"exit_priority_min_confidence"`
}

// RiskConfig holds the position sizing parameters.
type RiskConfig struct {
	RiskFraction        float64 `json:"risk_fraction" yaml:"risk_fraction"`
	StopLossPct         float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct       float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
	SlippagePct         float64 `json:"slippage_pct" yaml:"slippage_pct"`
	MaxPositionFraction float64 `json:"max_position_fraction" yaml:"max_position_fraction"`
	KellyCap            float64 `json:"kelly_cap" yaml:"kelly_cap"`
}

// BrokerConfig selects and points at the execution venue. API credentials
// are never stored here; they come from the environment.
type BrokerConfig struct {
	Name         string        `json:"name" yaml:"name"` // "sim" or "okx"
	BaseURL      string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	WSURL        string        `json:"ws_url,omitempty" yaml:"ws_url,omitempty"`
	Mode         string        `json:"mode,omitempty" yaml:"mode,omitempty"` // spot, margin, swap, futures, option
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	PollInterval time.Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
}

// LedgerConfig points at the persistence targets.
type LedgerConfig struct {
	DBPath  string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	CSVPath string `json:"csv_path,omitempty" yaml:"csv_path,omitempty"`
}

// LoadFromFile reads a config file, YAML or JSON by content.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the config, format chosen by extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}

	if len(c.Strategy.Symbols) == 0 {
		return fmt.Errorf("strategy.symbols is required")
	}
	for _, sym := range c.Strategy.Symbols {
		if market.Base(sym) == "" || market.Quote(sym) == "" {
			return fmt.Errorf("strategy.symbols: %q is not BASE/QUOTE form", sym)
		}
	}
	if c.Strategy.Timeframe == "" {
		return fmt.Errorf("strategy.timeframe is required")
	}
	if err := c.SignalParams().Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	if err := c.RiskParameters().Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}

	switch c.Broker.Name {
	case "sim", "okx":
	default:
		return fmt.Errorf("broker.name must be 'sim' or 'okx'")
	}
	switch market.TradingMode(c.Broker.Mode) {
	case "", market.ModeSpot, market.ModeMargin, market.ModeSwap, market.ModeFutures, market.ModeOption:
	default:
		return fmt.Errorf("broker.mode: unknown trading mode %q", c.Broker.Mode)
	}

	return nil
}

// SignalParams maps the strategy section onto the generator parameters.
func (c *Config) SignalParams() signal.Params {
	return signal.Params{
		Window:                    c.Strategy.Window,
		BandK:                     c.Strategy.BandK,
		MomentumShort:             c.Strategy.MomentumShort,
		MomentumLong:              c.Strategy.MomentumLong,
		EntryMinConfidence:        c.Strategy.EntryMinConfidence,
		ExitPriorityMinConfidence: c.Strategy.ExitPriorityMinConfidence,
	}
}

// RiskParameters maps the risk section onto the sizer parameters.
func (c *Config) RiskParameters() risk.Parameters {
	return risk.Parameters{
		RiskFraction:        c.Risk.RiskFraction,
		StopLossPct:         c.Risk.StopLossPct,
		TakeProfitPct:       c.Risk.TakeProfitPct,
		SlippagePct:         c.Risk.SlippagePct,
		MaxPositionFraction: c.Risk.MaxPositionFraction,
		KellyCap:            c.Risk.KellyCap,
	}
}

// Default returns a runnable configuration: sim broker, one symbol, the
// default strategy and risk parameters.
func Default() *Config {
	sp := signal.DefaultParams()
	rp := risk.DefaultParameters()

	return &Config{
		Account: AccountConfig{
			Currency: "USDT",
			Balance:  100000,
		},
		Strategy: StrategyConfig{
			Symbols:                   []string{"BTC/USDT"},
			Timeframe:                 "1h",
			Window:                    sp.Window,
			BandK:                     sp.BandK,
			MomentumShort:             sp.MomentumShort,
			MomentumLong:              sp.MomentumLong,
			EntryMinConfidence:        sp.EntryMinConfidence,
			ExitPriorityMinConfidence: sp.ExitPriorityMinConfidence,
		},
		Risk: RiskConfig{
			RiskFraction:        rp.RiskFraction,
			StopLossPct:         rp.StopLossPct,
			TakeProfitPct:       rp.TakeProfitPct,
			SlippagePct:         rp.SlippagePct,
			MaxPositionFraction: rp.MaxPositionFraction,
			KellyCap:            rp.KellyCap,
		},
		Broker: BrokerConfig{
			Name:         "sim",
			Mode:         string(market.ModeSpot),
			Timeout:      30 * time.Second,
			PollInterval: 15 * time.Second,
		},
		Ledger: LedgerConfig{
			DBPath: "./bandit.db",
		},
	}
}
