package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/bandit/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and export the recorded trade ledger",
	Long: `Ledger lists reconciled trades from the SQLite store, newest first, and
can export them to CSV.

Example:
  bandit ledger --db bandit.db --symbol BTC/USDT --limit 50 --csv trades.csv`,
	RunE: runLedger,
}

var (
	ldDBPath  string
	ldSymbol  string
	ldLimit   int
	ldCSVPath string
)

func init() {
	rootCmd.AddCommand(ledgerCmd)

	ledgerCmd.Flags().StringVarP(&ldDBPath, "db", "d", "", "ledger database path (defaults to the configured one)")
	ledgerCmd.Flags().StringVarP(&ldSymbol, "symbol", "s", "", "filter by symbol")
	ledgerCmd.Flags().IntVarP(&ldLimit, "limit", "n", 50, "max rows (0 = all)")
	ledgerCmd.Flags().StringVar(&ldCSVPath, "csv", "", "also export the listed rows to this CSV file")
}

func runLedger(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := ldDBPath
	if path == "" {
		path = cfg.Ledger.DBPath
	}
	if path == "" {
		return fmt.Errorf("no ledger database: pass --db or set ledger.db_path")
	}

	store, err := ledger.NewSQLite(path)
	if err != nil {
		return fmt.Errorf("open ledger db: %w", err)
	}
	defer store.Close()

	recs, err := store.ListTrades(ldSymbol, ldLimit)
	if err != nil {
		return err
	}

	fmt.Printf("%-24s %-14s %-10s %-5s %14s %14s %14s\n",
		"time", "source", "symbol", "side", "price", "quantity", "notional")
	for _, r := range recs {
		fmt.Printf("%-24s %-14s %-10s %-5s %14.6f %14.6f %14.2f\n",
			r.Time.UTC().Format("2006-01-02T15:04:05Z"),
			r.Source, r.Symbol, r.Side, r.Price, r.Quantity, r.Notional)
	}
	fmt.Printf("%d trades\n", len(recs))

	if ldCSVPath != "" {
		if err := ledger.ExportCSV(ldCSVPath, recs); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
		fmt.Printf("exported %d trades to %s\n", len(recs), ldCSVPath)
	}
	return nil
}
