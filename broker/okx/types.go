package okx

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/bandit/market"
)

// Config is the explicit, immutable client configuration. There is no
// shared global client state; each run constructs its own Client from a
// validated Config.
type Config struct {
	BaseURL    string             `json:"base_url" yaml:"base_url"`
	WSURL      string             `json:"ws_url" yaml:"ws_url"`
	APIKey     string             `json:"api_key" yaml:"api_key"`
	SecretKey  string             `json:"secret_key" yaml:"secret_key"`
	Passphrase string             `json:"passphrase" yaml:"passphrase"`
	Mode       market.TradingMode `json:"mode" yaml:"mode"`
	Timeout    time.Duration      `json:"timeout" yaml:"timeout"`
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("okx: base_url is required")
	}
	if c.APIKey == "" || c.SecretKey == "" || c.Passphrase == "" {
		return fmt.Errorf("okx: api_key, secret_key and passphrase are required")
	}
	return nil
}

// apiResponse is the common OKX envelope. Code "0" means success.
type apiResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// timeRow is one row from GET /api/v5/public/time.
type timeRow struct {
	TS string `json:"ts"`
}

// fillRow is one row from GET /api/v5/trade/fills.
type fillRow struct {
	InstID  string `json:"instId"`
	TradeID string `json:"tradeId"`
	OrdID   string `json:"ordId"`
	Side    string `json:"side"`
	FillPx  string `json:"fillPx"`
	FillSz  string `json:"fillSz"`
	TS      string `json:"ts"`
}

// orderRow is one row from GET /api/v5/trade/orders-history.
type orderRow struct {
	InstID    string `json:"instId"`
	OrdID     string `json:"ordId"`
	Side      string `json:"side"`
	AvgPx     string `json:"avgPx"`
	AccFillSz string `json:"accFillSz"`
	State     string `json:"state"`
	UTime     string `json:"uTime"`
}

type balanceDetail struct {
	Ccy      string `json:"ccy"`
	AvailBal string `json:"availBal"`
}

type balanceRow struct {
	Details []balanceDetail `json:"details"`
}

type tickerRow struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	BidPx  string `json:"bidPx"`
	AskPx  string `json:"askPx"`
	TS     string `json:"ts"`
}

type orderAck struct {
	OrdID string `json:"ordId"`
	SCode string `json:"sCode"`
	SMsg  string `json:"sMsg"`
}

// parseDec parses a broker decimal string. OKX quotes every number as a
// string; empty strings mean "not present" and parse to zero.
func parseDec(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// mulDec computes price*quantity without the float drift of naive
// multiplication; notional values land in the ledger and must be stable.
func mulDec(price, qty string) float64 {
	p, err1 := decimal.NewFromString(price)
	q, err2 := decimal.NewFromString(qty)
	if err1 != nil || err2 != nil {
		return 0
	}
	f, _ := p.Mul(q).Float64()
	return f
}

// parseMillis parses an epoch-milliseconds string.
func parseMillis(s string) time.Time {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(d.IntPart()).UTC()
}
