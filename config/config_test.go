package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Default().Validate())
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bandit.yaml")
	doc := `
account:
  currency: USDT
  balance: 25000
strategy:
  symbols: ["ETH/USDT", "BTC/USDT"]
  timeframe: 15m
  window: 30
  band_k: 2.5
  momentum_short: 5
  momentum_long: 10
  entry_min_confidence: 65
  exit_priority_min_confidence: 95
risk:
  risk_fraction: 0.02
  stop_loss_pct: 0.015
  take_profit_pct: 0.03
  slippage_pct: 0.001
  max_position_fraction: 0.3
  kelly_cap: 1.5
broker:
  name: okx
  mode: spot
ledger:
  db_path: /tmp/bandit.db
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 25000.0, cfg.Account.Balance)
	assert.Equal(t, []string{"ETH/USDT", "BTC/USDT"}, cfg.Strategy.Symbols)
	assert.Equal(t, "15m", cfg.Strategy.Timeframe)
	assert.Equal(t, 30, cfg.SignalParams().Window)
	assert.Equal(t, 2.5, cfg.SignalParams().BandK)
	assert.Equal(t, 0.02, cfg.RiskParameters().RiskFraction)
	assert.Equal(t, "okx", cfg.Broker.Name)
}

func TestLoadJSONFallback(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Account.Balance = 5000

	path := filepath.Join(t.TempDir(), "bandit.json")
	require.NoError(t, cfg.SaveToFile(path))

	got, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, got.Account.Balance)
}

func TestValidateFailsFast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing currency", func(c *Config) { c.Account.Currency = "" }},
		{"zero balance", func(c *Config) { c.Account.Balance = 0 }},
		{"no symbols", func(c *Config) { c.Strategy.Symbols = nil }},
		{"bad symbol form", func(c *Config) { c.Strategy.Symbols = []string{"BTCUSDT"} }},
		{"missing timeframe", func(c *Config) { c.Strategy.Timeframe = "" }},
		{"short window", func(c *Config) { c.Strategy.Window = 1 }},
		{"momentum inverted", func(c *Config) { c.Strategy.MomentumShort = 20; c.Strategy.MomentumLong = 5 }},
		{"risk fraction over 1", func(c *Config) { c.Risk.RiskFraction = 1.5 }},
		{"negative slippage", func(c *Config) { c.Risk.SlippagePct = -0.01 }},
		{"unknown broker", func(c *Config) { c.Broker.Name = "alpaca" }},
		{"unknown mode", func(c *Config) { c.Broker.Mode = "perpetual" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
