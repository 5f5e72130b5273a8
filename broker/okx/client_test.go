package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/bandit/broker"
	"github.com/rustyeddy/bandit/ledger"
	"github.com/rustyeddy/bandit/market"
)

var _ broker.Broker = (*Client)(nil)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		APIKey:     "key",
		SecretKey:  "secret",
		Passphrase: "phrase",
		Mode:       market.ModeSpot,
		Timeout:    5 * time.Second,
	}
}

func testRetry() broker.RetryPolicy {
	return broker.RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}
}

// newTestClient spins up an httptest server answering /api/v5/public/time
// for Connect plus whatever the handler provides, and returns a connected
// client pointed at it.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v5/public/time" {
			fmt.Fprint(w, `{"code":"0","msg":"","data":[{"ts":"1748779200000"}]}`)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(testConfig(srv.URL), testRetry())
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))
	return c
}

func TestConnectReadsServerTime(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v5/public/time", r.URL.Path)
		fmt.Fprint(w, `{"code":"0","msg":"","data":[{"ts":"1748779200000"}]}`)
	}))
	t.Cleanup(srv.Close)

	c, err := New(testConfig(srv.URL), testRetry())
	require.NoError(t, err)
	require.False(t, c.Connected())

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.Connected())
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BaseURL: "https://example.com"}, testRetry())
	assert.Error(t, err)
}

func TestDisconnectedClientReturnsEmpty(t *testing.T) {
	t.Parallel()

	c, err := New(testConfig("https://unreachable.invalid"), testRetry())
	require.NoError(t, err)
	require.False(t, c.Connected())

	ctx := context.Background()

	trades, err := c.FetchTrades(ctx, "BTC/USDT", time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, trades)

	bals, err := c.FetchBalances(ctx)
	require.NoError(t, err)
	assert.Empty(t, bals)

	tick, err := c.GetTicker(ctx, "BTC/USDT")
	require.NoError(t, err)
	assert.Zero(t, tick.Last)

	bars, err := c.GetBars(ctx, "BTC/USDT", "1h", 10)
	require.NoError(t, err)
	assert.Empty(t, bars)

	_, err = c.SubmitOrder(ctx, broker.Order{Symbol: "BTC/USDT", Side: broker.Buy, Quantity: 1, Type: broker.Market})
	require.Error(t, err)
	assert.True(t, broker.IsFatal(err))
	assert.ErrorIs(t, err, broker.ErrNotConnected)
}

func TestFetchFillsParsingAndQuery(t *testing.T) {
	t.Parallel()

	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v5/trade/fills":
			q := r.URL.Query()
			assert.Equal(t, "BTC-USDT", q.Get("instId"))
			assert.Equal(t, "SPOT", q.Get("instType"))
			assert.Equal(t, "1748736000000", q.Get("begin"))
			assert.Equal(t, "50", q.Get("limit"))
			assert.Equal(t, "key", r.Header.Get("OK-ACCESS-KEY"))
			assert.NotEmpty(t, r.Header.Get("OK-ACCESS-SIGN"))
			fmt.Fprint(w, `{"code":"0","msg":"","data":[
				{"instId":"BTC-USDT","tradeId":"f1","ordId":"o1","side":"buy","fillPx":"50000","fillSz":"0.1","ts":"1748779200000"}
			]}`)
		case "/api/v5/trade/orders-history":
			fmt.Fprint(w, `{"code":"0","msg":"","data":[]}`)
		case "/api/v5/trade/fills-history":
			fmt.Fprint(w, `{"code":"0","msg":"","data":[]}`)
		default:
			http.NotFound(w, r)
		}
	})

	recs, err := c.FetchTrades(context.Background(), "BTC/USDT", since, 50)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, ledger.SourceFills, rec.Source)
	assert.Equal(t, "f1", rec.ID)
	assert.Equal(t, "o1", rec.OrderID)
	assert.Equal(t, "BTC/USDT", rec.Symbol)
	assert.Equal(t, "buy", rec.Side)
	assert.InDelta(t, 50000.0, rec.Price, 1e-9)
	assert.InDelta(t, 0.1, rec.Quantity, 1e-12)
	assert.InDelta(t, 5000.0, rec.Notional, 1e-9)
	assert.True(t, rec.Time.Equal(time.UnixMilli(1748779200000).UTC()))
}

func TestFetchTradesCollapsesAcrossSources(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v5/trade/fills":
			fmt.Fprint(w, `{"code":"0","msg":"","data":[
				{"instId":"BTC-USDT","tradeId":"f1","ordId":"o1","side":"buy","fillPx":"50000","fillSz":"0.1","ts":"1748779200000"}
			]}`)
		case "/api/v5/trade/orders-history":
			fmt.Fprint(w, `{"code":"0","msg":"","data":[
				{"instId":"BTC-USDT","ordId":"o1","side":"buy","avgPx":"50000","accFillSz":"0.1","state":"filled","uTime":"1748779200000"}
			]}`)
		default:
			http.NotFound(w, r)
		}
	})

	recs, err := c.FetchTrades(context.Background(), "BTC/USDT", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ledger.SourceFills, recs[0].Source)
}

func TestFallbackOnlyWhenPrimariesEmpty(t *testing.T) {
	t.Parallel()

	var fallbackCalls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v5/trade/fills", "/api/v5/trade/orders-history":
			fmt.Fprint(w, `{"code":"0","msg":"","data":[]}`)
		case "/api/v5/trade/fills-history":
			fallbackCalls.Add(1)
			fmt.Fprint(w, `{"code":"0","msg":"","data":[
				{"instId":"ETH-USDT","tradeId":"t9","ordId":"o9","side":"sell","fillPx":"3000","fillSz":"2","ts":"1748779200000"}
			]}`)
		default:
			http.NotFound(w, r)
		}
	})

	recs, err := c.FetchTrades(context.Background(), "ETH/USDT", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ledger.SourceFallback, recs[0].Source)
	assert.Equal(t, int32(1), fallbackCalls.Load())
}

func TestRetryOn429ThenSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v5/market/ticker" {
			http.NotFound(w, r)
			return
		}
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"code":"0","msg":"","data":[
			{"instId":"BTC-USDT","last":"50000","bidPx":"49999","askPx":"50001","ts":"1748779200000"}
		]}`)
	})

	tick, err := c.GetTicker(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "BTC/USDT", tick.Symbol)
	assert.InDelta(t, 50000.0, tick.Last, 1e-9)
	assert.InDelta(t, 49999.0, tick.Bid, 1e-9)
}

func TestAuthFailureIsFatalAndNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.FetchBalances(context.Background())
	require.Error(t, err)
	assert.True(t, broker.IsFatal(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestBusinessCodeClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		code      string
		retryable bool
	}{
		{"rate limit code", "50011", true},
		{"system busy", "50013", true},
		{"temporary outage", "50026", true},
		{"invalid parameter", "51000", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := classify("op", tt.code, fmt.Errorf("boom"))
			assert.Equal(t, tt.retryable, broker.IsRetryable(err))
		})
	}
}

func TestSubmitOrderRejectedSCode(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v5/trade/order" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"code":"0","msg":"","data":[{"ordId":"","sCode":"51008","sMsg":"insufficient balance"}]}`)
	})

	_, err := c.SubmitOrder(context.Background(), broker.Order{
		Symbol: "BTC/USDT", Side: broker.Buy, Quantity: 1, Type: broker.Market,
	})
	require.Error(t, err)
	assert.True(t, broker.IsFatal(err))
}

func TestSubmitOrderAttachesBracket(t *testing.T) {
	t.Parallel()

	type algoOrd struct {
		SLTriggerPx string `json:"slTriggerPx"`
		SLOrdPx     string `json:"slOrdPx"`
		TPTriggerPx string `json:"tpTriggerPx"`
		TPOrdPx     string `json:"tpOrdPx"`
	}
	var got struct {
		InstID         string    `json:"instId"`
		SZ             string    `json:"sz"`
		AttachAlgoOrds []algoOrd `json:"attachAlgoOrds"`
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v5/trade/order":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			fmt.Fprint(w, `{"code":"0","msg":"","data":[{"ordId":"o77","sCode":"0","sMsg":""}]}`)
		case "/api/v5/market/ticker":
			fmt.Fprint(w, `{"code":"0","msg":"","data":[
				{"instId":"BTC-USDT","last":"100","bidPx":"99","askPx":"101","ts":"1748779200000"}
			]}`)
		default:
			http.NotFound(w, r)
		}
	})

	rec, err := c.SubmitOrder(context.Background(), broker.Order{
		Symbol: "BTC/USDT", Side: broker.Buy, Quantity: 1, Type: broker.Market,
		StopPrice: 95, TargetPrice: 105,
	})
	require.NoError(t, err)
	assert.Equal(t, "o77", rec.OrderID)

	assert.Equal(t, "BTC-USDT", got.InstID)
	assert.Equal(t, "1", got.SZ)
	require.Len(t, got.AttachAlgoOrds, 1)
	assert.Equal(t, "95", got.AttachAlgoOrds[0].SLTriggerPx)
	assert.Equal(t, "-1", got.AttachAlgoOrds[0].SLOrdPx)
	assert.Equal(t, "105", got.AttachAlgoOrds[0].TPTriggerPx)
	assert.Equal(t, "-1", got.AttachAlgoOrds[0].TPOrdPx)
}

func TestGetBarsAscending(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v5/market/candles" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "BTC-USDT", r.URL.Query().Get("instId"))
		assert.Equal(t, "1h", r.URL.Query().Get("bar"))
		// Newest first, as OKX sends them.
		fmt.Fprint(w, `{"code":"0","msg":"","data":[
			["1748786400000","102","104","101","103","7","0","0","1"],
			["1748782800000","100","103","99","102","5","0","0","1"]
		]}`)
	})

	bars, err := c.GetBars(context.Background(), "BTC/USDT", "1h", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Time.Before(bars[1].Time))
	assert.Equal(t, 102.0, bars[0].Close)
	assert.Equal(t, 103.0, bars[1].Close)
	assert.Equal(t, "BTC/USDT", bars[0].Symbol)
}

func TestGetBarsCountsDiscardedRows(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v5/market/candles" {
			http.NotFound(w, r)
			return
		}
		// Newest first; the middle row is zero-filled.
		fmt.Fprint(w, `{"code":"0","msg":"","data":[
			["1748786400000","102","104","101","103","7","0","0","1"],
			["1748782800000","0","0","0","0","0","0","0","1"],
			["1748779200000","100","103","99","102","5","0","0","1"]
		]}`)
	})

	bars, err := c.GetBars(context.Background(), "BTC/USDT", "1h", 3)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 102.0, bars[0].Close)
	assert.Equal(t, 103.0, bars[1].Close)
	assert.Equal(t, 1, c.BadBars())
}

func TestTransientFillFailureYieldsEmptyBatch(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v5/trade/fills", "/api/v5/trade/fills-history":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/api/v5/trade/orders-history":
			fmt.Fprint(w, `{"code":"0","msg":"","data":[
				{"instId":"BTC-USDT","ordId":"o2","side":"sell","avgPx":"51000","accFillSz":"0.2","state":"filled","uTime":"1748779200000"}
			]}`)
		default:
			http.NotFound(w, r)
		}
	})

	recs, err := c.FetchTrades(context.Background(), "BTC/USDT", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ledger.SourceOrderHistory, recs[0].Source)
}
