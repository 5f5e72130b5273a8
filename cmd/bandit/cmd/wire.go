package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rustyeddy/bandit/broker"
	"github.com/rustyeddy/bandit/broker/okx"
	"github.com/rustyeddy/bandit/config"
	"github.com/rustyeddy/bandit/ledger"
	"github.com/rustyeddy/bandit/market"
	"github.com/rustyeddy/bandit/risk"
	"github.com/rustyeddy/bandit/runner"
	"github.com/rustyeddy/bandit/signal"
)

// openStore opens the SQLite ledger when a path is configured. The caller
// gets a plain nil interface when persistence is off.
func openStore(cfg *config.Config) (ledger.Store, func(), error) {
	if cfg.Ledger.DBPath == "" {
		return nil, func() {}, nil
	}
	s, err := ledger.NewSQLite(cfg.Ledger.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger db: %w", err)
	}
	return s, func() { s.Close() }, nil
}

// buildPipeline wires the generator, sizer, and portfolio onto a broker.
func buildPipeline(cfg *config.Config, b broker.Broker, store ledger.Store) *runner.Pipeline {
	return runner.NewPipeline(
		signal.NewGenerator(cfg.SignalParams()),
		risk.NewSizer(cfg.RiskParameters()),
		cfg.RiskParameters(),
		ledger.NewPortfolio(cfg.Account.Balance),
		b,
		store,
	)
}

// okxClient builds the real broker client. Credentials come only from the
// environment (or a .env file), never from the config file.
func okxClient(cfg *config.Config) (*okx.Client, error) {
	c := okx.Config{
		BaseURL:    cfg.Broker.BaseURL,
		WSURL:      cfg.Broker.WSURL,
		APIKey:     os.Getenv("OKX_API_KEY"),
		SecretKey:  os.Getenv("OKX_SECRET_KEY"),
		Passphrase: os.Getenv("OKX_PASSPHRASE"),
		Mode:       market.TradingMode(cfg.Broker.Mode),
		Timeout:    cfg.Broker.Timeout,
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://www.okx.com"
	}
	return okx.New(c, broker.DefaultRetryPolicy())
}

func pollInterval(cfg *config.Config) time.Duration {
	if cfg.Broker.PollInterval > 0 {
		return cfg.Broker.PollInterval
	}
	return 15 * time.Second
}
