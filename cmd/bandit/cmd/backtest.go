package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/bandit/broker/sim"
	"github.com/rustyeddy/bandit/runner"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical bars through the simulated broker",
	Long: `Backtest replays a CSV bar file (time,open,high,low,close,volume) through
the full signal -> risk -> execution pipeline against the simulated broker
and prints a run report.

Example:
  bandit backtest --bars data/btc-usdt-1h.csv --symbol BTC/USDT`,
	RunE: runBacktest,
}

var (
	btBarsPath string
	btSymbol   string
	btCloseEnd bool
	btJSON     bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btBarsPath, "bars", "b", "", "path to bar CSV (required)")
	backtestCmd.Flags().StringVarP(&btSymbol, "symbol", "s", "", "symbol for the bar file (defaults to the first configured symbol)")
	backtestCmd.Flags().BoolVar(&btCloseEnd, "close-end", true, "liquidate open positions at end of data")
	backtestCmd.Flags().BoolVar(&btJSON, "json", false, "emit the report as JSON")

	backtestCmd.MarkFlagRequired("bars")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	symbol := btSymbol
	if symbol == "" {
		symbol = cfg.Strategy.Symbols[0]
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	feed, err := runner.OpenCSVFeed(symbol, btBarsPath)
	if err != nil {
		return err
	}

	engine := sim.NewEngine(cfg.Account.Currency, cfg.Account.Balance, cfg.Risk.SlippagePct)
	bt := &runner.BacktestRunner{
		Engine:   engine,
		Pipeline: buildPipeline(cfg, engine, store),
		Feed:     feed,
		CloseEnd: btCloseEnd,
	}

	report, err := bt.Run(context.Background())
	if err != nil {
		return err
	}

	if btJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(report)
	return nil
}
