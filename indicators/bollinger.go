package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/bandit/market"
)

// Bollinger maintains a rolling mean and standard deviation of bar closes
// and exposes the upper/lower bands (mean ± K·σ).
type Bollinger struct {
	period int
	k      float64
	closes []float64
}

func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{
		period: period,
		k:      k,
		closes: make([]float64, 0, period),
	}
}

func (b *Bollinger) Name() string {
	return fmt.Sprintf("BOLL(%d,%g)", b.period, b.k)
}

func (b *Bollinger) Warmup() int {
	return b.period
}

func (b *Bollinger) Reset() {
	b.closes = b.closes[:0]
}

func (b *Bollinger) Update(bar market.Bar) {
	b.closes = append(b.closes, bar.Close)
	if len(b.closes) > b.period {
		b.closes = b.closes[1:]
	}
}

func (b *Bollinger) Ready() bool {
	return len(b.closes) >= b.period
}

// Value returns the rolling mean (the middle band).
func (b *Bollinger) Value() float64 {
	mean, _ := b.meanStdDev()
	return mean
}

// StdDev returns the population standard deviation over the window.
func (b *Bollinger) StdDev() float64 {
	_, sd := b.meanStdDev()
	return sd
}

// Upper returns mean + K·σ.
func (b *Bollinger) Upper() float64 {
	mean, sd := b.meanStdDev()
	return mean + b.k*sd
}

// Lower returns mean - K·σ.
func (b *Bollinger) Lower() float64 {
	mean, sd := b.meanStdDev()
	return mean - b.k*sd
}

// Width returns Upper - Lower.
func (b *Bollinger) Width() float64 {
	_, sd := b.meanStdDev()
	return 2 * b.k * sd
}

func (b *Bollinger) meanStdDev() (mean, sd float64) {
	if !b.Ready() {
		return 0, 0
	}

	sum := 0.0
	for _, c := range b.closes {
		sum += c
	}
	mean = sum / float64(len(b.closes))

	variance := 0.0
	for _, c := range b.closes {
		d := c - mean
		variance += d * d
	}
	variance /= float64(len(b.closes))

	return mean, math.Sqrt(variance)
}
