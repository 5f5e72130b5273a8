package risk

// minKellySamples is how many closed trades we need before trusting the
// trailing edge estimate at all.
const minKellySamples = 10

// kellyFloor bounds how far a losing streak can shrink the risk budget.
const kellyFloor = 0.5

// TrailingStats accumulates realized results of closed trades and derives a
// Kelly-style multiplier on the base risk budget.
type TrailingStats struct {
	Wins    int
	Losses  int
	WinSum  float64 // sum of winning P&L, positive
	LossSum float64 // sum of losing P&L magnitudes, positive
}

// Record adds one closed trade's realized P&L.
func (s *TrailingStats) Record(realizedPL float64) {
	switch {
	case realizedPL > 0:
		s.Wins++
		s.WinSum += realizedPL
	case realizedPL < 0:
		s.Losses++
		s.LossSum += -realizedPL
	}
}

func (s *TrailingStats) Trades() int { return s.Wins + s.Losses }

// Multiplier scales the per-trade risk budget by the estimated edge:
//
//	f = W - (1-W)/R   (Kelly fraction; W win rate, R avg win / avg loss)
//	multiplier = clamp(1 + f, kellyFloor, cap)
//
// With fewer than minKellySamples closed trades it returns 1 (no scaling).
// A positive edge grows the budget toward cap, a negative edge shrinks it
// toward the floor.
func (s *TrailingStats) Multiplier(cap float64) float64 {
	if s.Trades() < minKellySamples {
		return 1
	}
	if s.Losses == 0 || s.LossSum == 0 {
		// Perfect trailing record; cap bounds the aggressiveness.
		return cap
	}

	w := float64(s.Wins) / float64(s.Trades())
	avgWin := s.WinSum / float64(maxInt(s.Wins, 1))
	avgLoss := s.LossSum / float64(s.Losses)
	if avgLoss == 0 {
		return cap
	}

	r := avgWin / avgLoss
	if r == 0 {
		return kellyFloor
	}

	f := w - (1-w)/r

	m := 1 + f
	if m < kellyFloor {
		m = kellyFloor
	}
	if m > cap {
		m = cap
	}
	return m
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
