package market

import "strings"

// Symbol conversion between the slash-delimited standard form ("BTC/USDT")
// and the broker's dash form ("BTC-USDT") lives here and only here. Every
// other package calls Normalize/Denormalize rather than rewriting strings
// at the call site.
//
// Both functions are total: empty input returns empty, input already in the
// target form is returned unchanged, so Denormalize(Normalize(s)) == s and
// Normalize(Denormalize(s)) == s for any well-formed pair.

// Normalize converts a broker pair ("BTC-USDT") to standard form ("BTC/USDT").
func Normalize(symbol string) string {
	if symbol == "" {
		return ""
	}
	return strings.ReplaceAll(symbol, "-", "/")
}

// Denormalize converts a standard pair ("BTC/USDT") to broker form ("BTC-USDT").
func Denormalize(symbol string) string {
	if symbol == "" {
		return ""
	}
	return strings.ReplaceAll(symbol, "/", "-")
}

// Base returns the base asset of a standard pair ("BTC/USDT" -> "BTC").
func Base(symbol string) string {
	base, _, _ := strings.Cut(Normalize(symbol), "/")
	return base
}

// Quote returns the quote asset of a standard pair ("BTC/USDT" -> "USDT").
func Quote(symbol string) string {
	_, quote, _ := strings.Cut(Normalize(symbol), "/")
	return quote
}

// TradingMode is the configured product class for a run.
type TradingMode string

const (
	ModeSpot    TradingMode = "spot"
	ModeMargin  TradingMode = "margin"
	ModeSwap    TradingMode = "swap"
	ModeFutures TradingMode = "futures"
	ModeOption  TradingMode = "option"
)

// InstrumentType maps a trading mode to the broker's instrument-type
// enumeration. Unset or unknown modes default to spot.
func InstrumentType(mode TradingMode) string {
	switch mode {
	case ModeMargin:
		return "MARGIN"
	case ModeSwap:
		return "SWAP"
	case ModeFutures:
		return "FUTURES"
	case ModeOption:
		return "OPTION"
	default:
		return "SPOT"
	}
}
