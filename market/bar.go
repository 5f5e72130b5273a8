package market

import (
	"fmt"
	"time"
)

// Bar is one OHLCV candle. Bars are immutable once produced; a series for a
// symbol is ordered by ascending timestamp with no duplicate timestamps.
type Bar struct {
	Symbol string
	Time   time.Time

	Open  float64
	High  float64
	Low   float64
	Close float64

	Volume float64
}

// ValidateSeries checks that bars are strictly ascending in time with no
// duplicates. Drivers call this once per symbol before feeding the pipeline.
func ValidateSeries(bars []Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return fmt.Errorf("bar series out of order at index %d: %s !> %s",
				i, bars[i].Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// CleanSeries returns bars with malformed entries (zero timestamp, empty
// symbol, non-positive close) removed, plus a count of dropped bars.
// Backtests skip bad bars and continue rather than aborting the run.
func CleanSeries(bars []Bar) ([]Bar, int) {
	out := make([]Bar, 0, len(bars))
	dropped := 0
	var last time.Time

	for _, b := range bars {
		if b.Time.IsZero() || b.Symbol == "" || b.Close <= 0 {
			dropped++
			continue
		}
		if !last.IsZero() && !b.Time.After(last) {
			dropped++
			continue
		}
		last = b.Time
		out = append(out, b)
	}
	return out, dropped
}
