// Package okx is the OKX REST/websocket execution adapter. It is the sole
// translation boundary between broker-specific JSON and the engine's
// TradeRecord/Order types.
package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rustyeddy/bandit/broker"
	"github.com/rustyeddy/bandit/ledger"
	"github.com/rustyeddy/bandit/market"
	"github.com/rustyeddy/bandit/pkg/id"
)

const defaultBaseURL = "https://www.okx.com"

// Client implements broker.Broker against the OKX v5 REST API. Every call
// runs through the retry policy; rate limits back off, auth and validation
// errors surface immediately.
type Client struct {
	cfg       Config
	http      *resty.Client
	retry     broker.RetryPolicy
	connected bool
	badBars   int
}

func New(cfg Config, retry broker.RetryPolicy) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &Client{cfg: cfg, http: http, retry: retry}, nil
}

// Connect verifies the API is reachable and arms the connection guard.
// Until Connect succeeds, every read method returns an empty result so
// downstream reconciliation never has to special-case "not connected".
func (c *Client) Connect(ctx context.Context) error {
	var rows []timeRow
	err := c.retry.Do(ctx, "connect", func() error {
		return c.get(ctx, "/api/v5/public/time", nil, &rows)
	})
	if err != nil {
		return err
	}
	c.connected = true
	return nil
}

func (c *Client) Connected() bool { return c.connected }

// SubmitOrder places a market or limit order and reports the resulting
// fill as an order-history record (fill details arrive asynchronously on
// the fills endpoint and are reconciled later).
func (c *Client) SubmitOrder(ctx context.Context, o broker.Order) (ledger.TradeRecord, error) {
	if !c.connected {
		return ledger.TradeRecord{}, broker.Fatal("submit order", "", broker.ErrNotConnected)
	}

	clientID := o.ClientID
	if clientID == "" {
		clientID = id.New()
	}

	body := map[string]any{
		"instId":  market.Denormalize(o.Symbol),
		"tdMode":  "cash",
		"side":    string(o.Side),
		"ordType": string(o.Type),
		"sz":      strconv.FormatFloat(o.Quantity, 'f', -1, 64),
		"clOrdId": clientID,
	}
	if o.Type == broker.Limit {
		body["px"] = strconv.FormatFloat(o.LimitPrice, 'f', -1, 64)
	}
	if algo := attachAlgo(o); len(algo) > 0 {
		body["attachAlgoOrds"] = []map[string]string{algo}
	}

	var acks []orderAck
	err := c.retry.Do(ctx, "submit order", func() error {
		return c.post(ctx, "/api/v5/trade/order", body, &acks)
	})
	if err != nil {
		return ledger.TradeRecord{}, err
	}
	if len(acks) == 0 {
		return ledger.TradeRecord{}, broker.Fatal("submit order", "", fmt.Errorf("empty order response"))
	}
	if acks[0].SCode != "" && acks[0].SCode != "0" {
		return ledger.TradeRecord{}, classify("submit order", acks[0].SCode, fmt.Errorf("%s", acks[0].SMsg))
	}

	price := o.LimitPrice
	if o.Type == broker.Market {
		if t, terr := c.GetTicker(ctx, o.Symbol); terr == nil {
			price = t.Last
		}
	}

	return ledger.TradeRecord{
		Source:   ledger.SourceOrderHistory,
		ID:       acks[0].OrdID,
		OrderID:  acks[0].OrdID,
		Symbol:   market.Normalize(o.Symbol),
		Side:     string(o.Side),
		Price:    price,
		Quantity: o.Quantity,
		Time:     time.Now().UTC(),
		Notional: price * o.Quantity,
	}, nil
}

// FetchTradeBatches queries the three trade paths — fills, order history,
// and the ticker-derived fallback — and returns one batch per path for the
// reconciler. A path failing transiently yields an empty batch rather than
// failing the poll.
func (c *Client) FetchTradeBatches(ctx context.Context, symbol string, since time.Time, limit int) ([][]ledger.TradeRecord, error) {
	if !c.connected {
		return nil, nil
	}

	fills, err := c.fetchFills(ctx, symbol, since, limit)
	if err != nil && broker.IsFatal(err) {
		return nil, err
	}

	orders, err := c.fetchOrderHistory(ctx, symbol, since, limit)
	if err != nil && broker.IsFatal(err) {
		return nil, err
	}

	var fallback []ledger.TradeRecord
	if len(fills) == 0 && len(orders) == 0 {
		fallback, err = c.fetchFallback(ctx, symbol, since, limit)
		if err != nil && broker.IsFatal(err) {
			return nil, err
		}
	}

	return [][]ledger.TradeRecord{fills, orders, fallback}, nil
}

// FetchTrades merges the three query paths into one deduplicated batch.
func (c *Client) FetchTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]ledger.TradeRecord, error) {
	batches, err := c.FetchTradeBatches(ctx, symbol, since, limit)
	if err != nil {
		return nil, err
	}
	return ledger.Merge(batches...).Records, nil
}

func (c *Client) fetchFills(ctx context.Context, symbol string, since time.Time, limit int) ([]ledger.TradeRecord, error) {
	params := c.tradeQuery(symbol, since, limit)

	var rows []fillRow
	err := c.retry.Do(ctx, "fetch fills", func() error {
		return c.get(ctx, "/api/v5/trade/fills", params, &rows)
	})
	if err != nil {
		return nil, err
	}

	out := make([]ledger.TradeRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, ledger.TradeRecord{
			Source:   ledger.SourceFills,
			ID:       r.TradeID,
			OrderID:  r.OrdID,
			Symbol:   market.Normalize(r.InstID),
			Side:     r.Side,
			Price:    parseDec(r.FillPx),
			Quantity: parseDec(r.FillSz),
			Time:     parseMillis(r.TS),
			Notional: mulDec(r.FillPx, r.FillSz),
		})
	}
	return out, nil
}

func (c *Client) fetchOrderHistory(ctx context.Context, symbol string, since time.Time, limit int) ([]ledger.TradeRecord, error) {
	params := c.tradeQuery(symbol, since, limit)
	params["state"] = "filled"

	var rows []orderRow
	err := c.retry.Do(ctx, "fetch order history", func() error {
		return c.get(ctx, "/api/v5/trade/orders-history", params, &rows)
	})
	if err != nil {
		return nil, err
	}

	out := make([]ledger.TradeRecord, 0, len(rows))
	for _, r := range rows {
		if r.State != "filled" {
			continue
		}
		out = append(out, ledger.TradeRecord{
			Source:   ledger.SourceOrderHistory,
			ID:       r.OrdID,
			OrderID:  r.OrdID,
			Symbol:   market.Normalize(r.InstID),
			Side:     r.Side,
			Price:    parseDec(r.AvgPx),
			Quantity: parseDec(r.AccFillSz),
			Time:     parseMillis(r.UTime),
			Notional: mulDec(r.AvgPx, r.AccFillSz),
		})
	}
	return out, nil
}

// fetchFallback is the last-resort query path, used when both primary
// endpoints return nothing (some accounts only expose the generic trades
// surface). Records carry SourceFallback so reconciliation can rank them.
func (c *Client) fetchFallback(ctx context.Context, symbol string, since time.Time, limit int) ([]ledger.TradeRecord, error) {
	params := c.tradeQuery(symbol, since, limit)

	var rows []fillRow
	err := c.retry.Do(ctx, "fetch trades fallback", func() error {
		return c.get(ctx, "/api/v5/trade/fills-history", params, &rows)
	})
	if err != nil {
		return nil, err
	}

	out := make([]ledger.TradeRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, ledger.TradeRecord{
			Source:   ledger.SourceFallback,
			ID:       r.TradeID,
			OrderID:  r.OrdID,
			Symbol:   market.Normalize(r.InstID),
			Side:     r.Side,
			Price:    parseDec(r.FillPx),
			Quantity: parseDec(r.FillSz),
			Time:     parseMillis(r.TS),
			Notional: mulDec(r.FillPx, r.FillSz),
		})
	}
	return out, nil
}

func (c *Client) tradeQuery(symbol string, since time.Time, limit int) map[string]string {
	params := map[string]string{
		"instType": market.InstrumentType(c.cfg.Mode),
	}
	if symbol != "" {
		params["instId"] = market.Denormalize(symbol)
	}
	if !since.IsZero() {
		params["begin"] = strconv.FormatInt(since.UnixMilli(), 10)
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	return params
}

func (c *Client) FetchBalances(ctx context.Context) (map[string]float64, error) {
	if !c.connected {
		return map[string]float64{}, nil
	}

	var rows []balanceRow
	err := c.retry.Do(ctx, "fetch balance", func() error {
		return c.get(ctx, "/api/v5/account/balance", nil, &rows)
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, row := range rows {
		for _, d := range row.Details {
			out[d.Ccy] = parseDec(d.AvailBal)
		}
	}
	return out, nil
}

func (c *Client) GetTicker(ctx context.Context, symbol string) (market.Ticker, error) {
	if !c.connected {
		return market.Ticker{}, nil
	}

	params := map[string]string{"instId": market.Denormalize(symbol)}

	var rows []tickerRow
	err := c.retry.Do(ctx, "fetch ticker", func() error {
		return c.get(ctx, "/api/v5/market/ticker", params, &rows)
	})
	if err != nil {
		return market.Ticker{}, err
	}
	if len(rows) == 0 {
		return market.Ticker{}, fmt.Errorf("okx: no ticker for %q", symbol)
	}

	r := rows[0]
	return market.Ticker{
		Symbol: market.Normalize(r.InstID),
		Time:   parseMillis(r.TS),
		Bid:    parseDec(r.BidPx),
		Ask:    parseDec(r.AskPx),
		Last:   parseDec(r.Last),
	}, nil
}

// GetBars fetches up to limit closed candles, returned ascending in time.
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]market.Bar, error) {
	if !c.connected {
		return nil, nil
	}

	params := map[string]string{
		"instId": market.Denormalize(symbol),
		"bar":    timeframe,
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	var rows [][]string
	err := c.retry.Do(ctx, "fetch candles", func() error {
		return c.get(ctx, "/api/v5/market/candles", params, &rows)
	})
	if err != nil {
		return nil, err
	}

	std := market.Normalize(symbol)
	bars := make([]market.Bar, 0, len(rows))
	// OKX returns newest first; reverse into ascending order.
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		if len(r) < 6 {
			continue
		}
		bars = append(bars, market.Bar{
			Symbol: std,
			Time:   parseMillis(r[0]),
			Open:   parseDec(r[1]),
			High:   parseDec(r[2]),
			Low:    parseDec(r[3]),
			Close:  parseDec(r[4]),
			Volume: parseDec(r[5]),
		})
	}

	// Brokers occasionally emit zero-filled or out-of-order rows; drop them
	// rather than feeding them to the indicators.
	cleaned, dropped := market.CleanSeries(bars)
	c.badBars += dropped
	return cleaned, nil
}

// BadBars reports how many candle rows the client has discarded as
// malformed or out of order since construction.
func (c *Client) BadBars() int { return c.badBars }

// attachAlgo translates the sized stop/target into OKX's attached algo
// order on the entry. An order price of -1 executes at market once the
// trigger price prints.
func attachAlgo(o broker.Order) map[string]string {
	algo := make(map[string]string)
	if o.StopPrice > 0 {
		algo["slTriggerPx"] = strconv.FormatFloat(o.StopPrice, 'f', -1, 64)
		algo["slOrdPx"] = "-1"
	}
	if o.TargetPrice > 0 {
		algo["tpTriggerPx"] = strconv.FormatFloat(o.TargetPrice, 'f', -1, 64)
		algo["tpOrdPx"] = "-1"
	}
	return algo
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	req := c.http.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParams(params)
	}

	query := req.QueryParam.Encode()
	signPath := path
	if query != "" {
		signPath += "?" + query
	}
	c.sign(req, "GET", signPath, "")

	resp, err := req.Get(path)
	return c.decode("GET "+path, resp, err, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return broker.Fatal("encode request", "", err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload)
	c.sign(req, "POST", path, string(payload))

	resp, err := req.Post(path)
	return c.decode("POST "+path, resp, err, out)
}

// sign attaches the OKX HMAC headers: base64(hmac-sha256(ts+method+path+body)).
func (c *Client) sign(req *resty.Request, method, path, body string) {
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(ts + method + path + body))

	req.SetHeaders(map[string]string{
		"OK-ACCESS-KEY":        c.cfg.APIKey,
		"OK-ACCESS-SIGN":       base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		"OK-ACCESS-TIMESTAMP":  ts,
		"OK-ACCESS-PASSPHRASE": c.cfg.Passphrase,
	})
}

func (c *Client) decode(op string, resp *resty.Response, err error, out any) error {
	if err != nil {
		// Transport-level failure: timeout, connection reset.
		return broker.RateLimited(op, "", err)
	}

	switch resp.StatusCode() {
	case 200:
	case 429:
		return broker.RateLimited(op, "429", fmt.Errorf("rate limit exceeded"))
	case 401, 403:
		return broker.Fatal(op, strconv.Itoa(resp.StatusCode()), fmt.Errorf("unauthorized"))
	default:
		if resp.StatusCode() >= 500 {
			return broker.RateLimited(op, strconv.Itoa(resp.StatusCode()), fmt.Errorf("server error"))
		}
		return broker.Fatal(op, strconv.Itoa(resp.StatusCode()), fmt.Errorf("http %d", resp.StatusCode()))
	}

	var env apiResponse
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return broker.RateLimited(op, "", fmt.Errorf("decode response: %w", err))
	}
	if env.Code != "0" && env.Code != "" {
		return classify(op, env.Code, fmt.Errorf("%s", env.Msg))
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return broker.Fatal(op, "", fmt.Errorf("decode data: %w", err))
	}
	return nil
}

// classify buckets OKX business codes into retryable vs fatal.
func classify(op, code string, err error) error {
	switch code {
	case "50011", "50013", "50026": // rate limit, busy, temporary outage
		return broker.RateLimited(op, code, err)
	default:
		return broker.Fatal(op, code, err)
	}
}
