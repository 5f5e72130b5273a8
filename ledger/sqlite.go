package ledger

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// EquitySnapshot is one row of the equity curve.
type EquitySnapshot struct {
	Time       time.Time
	Cash       float64
	Equity     float64
	RealizedPL float64
}

// Store persists the accepted ledger. The SQLite implementation is the
// default; tests may substitute a no-op.
type Store interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// RecordTrade inserts one reconciled record. Inserts are idempotent on the
// composite UID, so re-recording a poll overlap is harmless.
func (s *SQLiteStore) RecordTrade(r TradeRecord) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO trades
		(uid, source, trade_id, order_id, symbol, side, price, quantity, ts, notional)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Key(), string(r.Source), r.ID, r.OrderID, r.Symbol, r.Side,
		r.Price, r.Quantity, r.Time, r.Notional,
	)
	return err
}

func (s *SQLiteStore) RecordEquity(e EquitySnapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO equity (time, cash, equity, realized_pl)
		VALUES (?, ?, ?, ?)`,
		e.Time, e.Cash, e.Equity, e.RealizedPL,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
