package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustyeddy/bandit/market"
)

const defaultWSURL = "wss://ws.okx.com:8443/ws/v5/public"

// Stream pushes live tickers over the OKX public websocket. Live and paper
// runners consume the Tickers channel; read errors land on Errs and close
// the stream, the caller decides whether to redial.
type Stream struct {
	url  string
	conn *websocket.Conn

	Tickers chan market.Ticker
	Errs    chan error

	done chan struct{}
}

func NewStream(url string) *Stream {
	if url == "" {
		url = defaultWSURL
	}
	return &Stream{
		url:     url,
		Tickers: make(chan market.Ticker, 256),
		Errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
}

type wsRequest struct {
	Op   string      `json:"op"`
	Args []wsChannel `json:"args"`
}

type wsChannel struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type wsPush struct {
	Arg  wsChannel   `json:"arg"`
	Data []tickerRow `json:"data"`
}

// Connect dials the websocket and subscribes to tickers for the given
// standard-form symbols, then starts the read pump.
func (s *Stream) Connect(ctx context.Context, symbols []string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("okx stream dial: %w", err)
	}
	s.conn = conn

	args := make([]wsChannel, 0, len(symbols))
	for _, sym := range symbols {
		args = append(args, wsChannel{Channel: "tickers", InstID: market.Denormalize(sym)})
	}
	if err := conn.WriteJSON(wsRequest{Op: "subscribe", Args: args}); err != nil {
		conn.Close()
		return fmt.Errorf("okx stream subscribe: %w", err)
	}

	go s.readPump()
	return nil
}

func (s *Stream) readPump() {
	defer close(s.Tickers)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case s.Errs <- err:
			default:
			}
			return
		}

		var push wsPush
		if err := json.Unmarshal(msg, &push); err != nil || len(push.Data) == 0 {
			continue // subscription acks and pongs
		}

		for _, r := range push.Data {
			t := market.Ticker{
				Symbol: market.Normalize(r.InstID),
				Time:   parseMillis(r.TS),
				Bid:    parseDec(r.BidPx),
				Ask:    parseDec(r.AskPx),
				Last:   parseDec(r.Last),
			}
			select {
			case s.Tickers <- t:
			case <-s.done:
				return
			}
		}
	}
}

// Close stops the pump and closes the connection.
func (s *Stream) Close() error {
	close(s.done)
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
