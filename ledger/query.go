package ledger

import (
	"time"
)

// ListTrades returns persisted records for a symbol, newest first. An empty
// symbol lists all symbols; limit <= 0 means no limit.
func (s *SQLiteStore) ListTrades(symbol string, limit int) ([]TradeRecord, error) {
	q := `
		SELECT uid, source, trade_id, order_id, symbol, side, price, quantity, ts, notional
		FROM trades`
	args := []any{}
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY ts DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	return s.queryTrades(q, args...)
}

// ListTradesBetween returns records with ts in [start, end), newest first.
func (s *SQLiteStore) ListTradesBetween(start, end time.Time) ([]TradeRecord, error) {
	return s.queryTrades(`
		SELECT uid, source, trade_id, order_id, symbol, side, price, quantity, ts, notional
		FROM trades
		WHERE ts >= ? AND ts < ?
		ORDER BY ts DESC`, start, end)
}

func (s *SQLiteStore) queryTrades(q string, args ...any) ([]TradeRecord, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var (
			rec TradeRecord
			uid string
			src string
		)
		if err := rows.Scan(
			&uid,
			&src,
			&rec.ID,
			&rec.OrderID,
			&rec.Symbol,
			&rec.Side,
			&rec.Price,
			&rec.Quantity,
			&rec.Time,
			&rec.Notional,
		); err != nil {
			return nil, err
		}
		rec.Source = Source(src)
		out = append(out, rec)
	}
	return out, rows.Err()
}
