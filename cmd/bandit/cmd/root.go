package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/bandit/config"
)

var rootCmd = &cobra.Command{
	Use:   "bandit",
	Short: "Band-and-momentum trading engine for crypto markets",
	Long: `Bandit turns bar streams into Bollinger-band signals, sizes them under a
fixed-fractional risk budget, and reconciles executed trades from multiple
broker endpoints into a single deduplicated ledger.

Modes:
  backtest  replay historical bars through the simulated broker
  paper     trade simulated money at live prices
  live      trade a real account
  ledger    inspect and export the recorded trade ledger`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Optional .env with broker credentials; absence is fine.
		_ = godotenv.Load()
	},
}

var cfgPath string

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (YAML or JSON)")
}

// loadConfig returns the file config when --config is set, the defaults
// otherwise.
func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
