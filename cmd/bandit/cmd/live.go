package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/bandit/runner"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Trade a real account",
	Long: `Live drives the pipeline against the real broker API. Orders are sized
from configured risk parameters and submitted with retry/backoff; executed
trades are polled from every query path the broker offers and reconciled
into the ledger.

A fatal broker error halts new submissions; reconciliation keeps running
until interrupted. Requires OKX_API_KEY, OKX_SECRET_KEY and OKX_PASSPHRASE
in the environment or a .env file.`,
	RunE: runLive,
}

var liveYes bool

func init() {
	rootCmd.AddCommand(liveCmd)
	liveCmd.Flags().BoolVar(&liveYes, "yes", false, "confirm trading with real money")
}

func runLive(cmd *cobra.Command, args []string) error {
	if !liveYes {
		return fmt.Errorf("live mode places real orders; re-run with --yes to confirm")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := okxClient(cfg)
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	lr := &runner.LiveRunner{
		Broker:       client,
		Pipeline:     buildPipeline(cfg, client, store),
		Symbols:      cfg.Strategy.Symbols,
		Timeframe:    cfg.Strategy.Timeframe,
		PollInterval: pollInterval(cfg),
	}

	fmt.Printf("live trading %v on %s bars\n", cfg.Strategy.Symbols, cfg.Strategy.Timeframe)

	err = lr.Run(ctx)
	if ctx.Err() != nil {
		fmt.Printf("stopped. halted=%v realized P&L %.2f\n",
			lr.Halted(), lr.Pipeline.Portfolio().RealizedPL())
		return nil
	}
	return err
}
