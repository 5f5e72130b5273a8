// Package ledger owns the authoritative trade ledger: reconciliation of
// trade records from multiple broker query paths, portfolio state, and
// persistence.
package ledger

import (
	"strconv"
	"strings"
	"time"
)

// Source identifies which broker query path produced a record. When two
// sources report literally identical content, precedence is
// fills > order history > fallback.
type Source string

const (
	SourceFills        Source = "fills"
	SourceOrderHistory Source = "orders_history"
	SourceFallback     Source = "ccxt_fallback"
)

// priority returns the tie-break rank of a source, lower is stronger.
func (s Source) priority() int {
	switch s {
	case SourceFills:
		return 0
	case SourceOrderHistory:
		return 1
	case SourceFallback:
		return 2
	default:
		return 3
	}
}

// TradeRecord is one executed fill as reported by a broker endpoint.
// Records are immutable; the reconciler is the only consumer that inspects
// them in bulk.
type TradeRecord struct {
	Source   Source
	ID       string
	OrderID  string
	Symbol   string
	Side     string // "buy" or "sell"
	Price    float64
	Quantity float64
	Time     time.Time
	Notional float64 // Price * Quantity at record time
}

const keyDelimiter = "|"

// Key returns the composite dedup UID:
//
//	source | id_or_order_id | order_id | symbol | timestamp | price | quantity
//
// Missing optional fields serialize to empty segments rather than failing.
// Partial fills of one order stay distinct because price/quantity differ;
// the same execution reported twice collides and is dropped by Merge.
func (r TradeRecord) Key() string {
	idOrOrder := r.ID
	if idOrOrder == "" {
		idOrOrder = r.OrderID
	}

	ts := ""
	if !r.Time.IsZero() {
		ts = strconv.FormatInt(r.Time.UnixMilli(), 10)
	}

	return strings.Join([]string{
		string(r.Source),
		idOrOrder,
		r.OrderID,
		r.Symbol,
		ts,
		formatFloat(r.Price),
		formatFloat(r.Quantity),
	}, keyDelimiter)
}

// Malformed reports whether the record is unusable for reconciliation.
// Such records are dropped and counted, never merged into the ledger.
func (r TradeRecord) Malformed() bool {
	return r.Symbol == "" || r.Time.IsZero()
}

func formatFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
