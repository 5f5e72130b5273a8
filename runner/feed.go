// Package runner drives the bar → signal → order → reconciliation pipeline
// in three modes: backtest over historical bars, paper trading at live
// prices against the simulated broker, and live trading against a real
// broker.
package runner

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rustyeddy/bandit/market"
)

// BarFeed yields closed bars one at a time. Implementations must be
// deterministic and return ok=false with a nil error at end of data.
type BarFeed interface {
	Next() (b market.Bar, ok bool, err error)
	Close() error
}

// SliceFeed serves an in-memory bar series. Used by backtests that already
// hold their data and by tests.
type SliceFeed struct {
	bars []market.Bar
	pos  int
}

func NewSliceFeed(bars []market.Bar) *SliceFeed {
	return &SliceFeed{bars: bars}
}

func (f *SliceFeed) Next() (market.Bar, bool, error) {
	if f.pos >= len(f.bars) {
		return market.Bar{}, false, nil
	}
	b := f.bars[f.pos]
	f.pos++
	return b, true, nil
}

func (f *SliceFeed) Close() error { return nil }

// CSVFeed streams bars from a CSV file with columns
// time,open,high,low,close,volume. Timestamps are RFC3339 or epoch millis;
// a header row is skipped automatically.
type CSVFeed struct {
	symbol string
	file   *os.File
	reader *csv.Reader
	line   int
}

func OpenCSVFeed(symbol, path string) (*CSVFeed, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bar file: %w", err)
	}

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	return &CSVFeed{symbol: symbol, file: file, reader: r}, nil
}

func (f *CSVFeed) Next() (market.Bar, bool, error) {
	for {
		row, err := f.reader.Read()
		if err == io.EOF {
			return market.Bar{}, false, nil
		}
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("read bar row: %w", err)
		}
		f.line++

		if len(row) < 5 {
			return market.Bar{}, false, fmt.Errorf("bar row %d: want at least 5 fields, got %d", f.line, len(row))
		}

		ts, err := parseBarTime(row[0])
		if err != nil {
			if f.line == 1 {
				continue // header
			}
			return market.Bar{}, false, fmt.Errorf("bar row %d: %w", f.line, err)
		}

		b := market.Bar{Symbol: f.symbol, Time: ts}
		fields := []*float64{&b.Open, &b.High, &b.Low, &b.Close}
		for i, dst := range fields {
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return market.Bar{}, false, fmt.Errorf("bar row %d field %d: %w", f.line, i+1, err)
			}
			*dst = v
		}
		if len(row) > 5 {
			b.Volume, _ = strconv.ParseFloat(row[5], 64)
		}
		return b, true, nil
	}
}

func (f *CSVFeed) Close() error { return f.file.Close() }

func parseBarTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
