// Package broker defines the execution boundary: the Broker interface every
// driver trades through, the order model, the broker error taxonomy, and the
// retry policy wrapped around real network calls.
package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/bandit/ledger"
	"github.com/rustyeddy/bandit/market"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

// Order is a fully sized order. Quantity, stop, and target are derived by
// the risk sizer, never user-supplied.
type Order struct {
	Symbol   string
	Side     Side
	Quantity float64
	Type     OrderType

	LimitPrice  float64 // limit orders only
	StopPrice   float64
	TargetPrice float64

	ClientID string // idempotency key, ULID
}

// Broker is implemented by the real exchange client and by the simulator.
// All methods honor context cancellation; network-facing implementations
// wrap calls in a RetryPolicy.
type Broker interface {
	// SubmitOrder places the order and returns the resulting fill.
	SubmitOrder(ctx context.Context, o Order) (ledger.TradeRecord, error)

	// FetchTrades returns trade records for a symbol since the given time.
	// symbol may be empty (all symbols); a zero since means no lower bound.
	FetchTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]ledger.TradeRecord, error)

	// FetchBalances returns asset -> free quantity.
	FetchBalances(ctx context.Context) (map[string]float64, error)

	GetTicker(ctx context.Context, symbol string) (market.Ticker, error)

	// GetBars returns up to limit closed OHLCV bars, ascending in time.
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]market.Bar, error)
}
