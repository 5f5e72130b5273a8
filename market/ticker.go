package market

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Ticker is a point-in-time quote for one symbol.
type Ticker struct {
	Symbol string
	Time   time.Time

	Bid  float64
	Ask  float64
	Last float64
}

func (t Ticker) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

func (t Ticker) Spread() float64 {
	return t.Ask - t.Bid
}

type TickerSource interface {
	GetTicker(ctx context.Context, symbol string) (Ticker, error)
}

var ErrNoTicker = errors.New("ticker not found")

// TickerStore is a thread-safe cache of the latest ticker per symbol.
type TickerStore struct {
	mu      sync.RWMutex
	tickers map[string]Ticker
}

func NewTickerStore() *TickerStore {
	return &TickerStore{tickers: make(map[string]Ticker)}
}

func (s *TickerStore) Set(t Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers[t.Symbol] = t
}

func (s *TickerStore) Get(symbol string) (Ticker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickers[symbol]
	if !ok {
		return Ticker{}, ErrNoTicker
	}
	return t, nil
}
