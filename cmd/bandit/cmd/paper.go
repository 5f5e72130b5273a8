package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/bandit/broker/okx"
	"github.com/rustyeddy/bandit/broker/sim"
	"github.com/rustyeddy/bandit/runner"
)

var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Trade simulated money at live prices",
	Long: `Paper runs the decision pipeline at real market prices while executing
against the in-memory simulated broker. Market data comes from the broker's
REST API and websocket ticker stream; no real orders are placed.

Stop with Ctrl-C.`,
	RunE: runPaper,
}

func init() {
	rootCmd.AddCommand(paperCmd)
}

func runPaper(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := okxClient(cfg)
	if err != nil {
		return err
	}
	if err := data.Connect(ctx); err != nil {
		return fmt.Errorf("connect market data: %w", err)
	}

	stream := okx.NewStream(cfg.Broker.WSURL)
	if err := stream.Connect(ctx, cfg.Strategy.Symbols); err != nil {
		return err
	}
	defer stream.Close()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := sim.NewEngine(cfg.Account.Currency, cfg.Account.Balance, cfg.Risk.SlippagePct)
	pr := &runner.PaperRunner{
		Engine:    engine,
		Data:      data,
		Pipeline:  buildPipeline(cfg, engine, store),
		Symbols:   cfg.Strategy.Symbols,
		Timeframe: cfg.Strategy.Timeframe,
		Interval:  pollInterval(cfg),
		Tickers:   stream.Tickers,
	}

	fmt.Printf("paper trading %v on %s bars, %s cash %.2f\n",
		cfg.Strategy.Symbols, cfg.Strategy.Timeframe, cfg.Account.Currency, cfg.Account.Balance)

	err = pr.Run(ctx)
	if ctx.Err() != nil {
		fmt.Printf("stopped. equity %.2f, realized P&L %.2f\n",
			pr.Pipeline.Equity(), pr.Pipeline.Portfolio().RealizedPL())
		return nil
	}
	return err
}
