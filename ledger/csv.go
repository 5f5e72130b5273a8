package ledger

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"
)

var csvHeader = []string{
	"uid", "source", "trade_id", "order_id", "symbol", "side",
	"price", "quantity", "timestamp", "notional",
}

// WriteCSV streams records to w with a header row.
func WriteCSV(w io.Writer, recs []TradeRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.Key(),
			string(r.Source),
			r.ID,
			r.OrderID,
			r.Symbol,
			r.Side,
			strconv.FormatFloat(r.Price, 'f', -1, 64),
			strconv.FormatFloat(r.Quantity, 'f', -1, 64),
			r.Time.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(r.Notional, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportCSV writes records to a file at path.
func ExportCSV(path string, recs []TradeRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteCSV(f, recs); err != nil {
		return err
	}
	return f.Sync()
}
