// Package util provides common utility functions for price calculations.
package util

import (
	"math"

	"github.com/shopspring/decimal"
)

// CentTick is the minimum option price increment used for marks.
const CentTick = 0.01

// toTick converts x and tick into decimals. ok is false when rounding should
// be skipped and x returned unchanged.
func toTick(x, tick float64) (dx, dt decimal.Decimal, ok bool) {
	if tick == 0 || math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(tick) || math.IsInf(tick, 0) {
		return decimal.Zero, decimal.Zero, false
	}
	return decimal.NewFromFloat(x), decimal.NewFromFloat(math.Abs(tick)), true
}

// RoundToTick rounds x to the nearest tick increment, ties away from zero.
// A zero tick or a non-finite x returns x unchanged; a negative tick uses its absolute value.
func RoundToTick(x, tick float64) float64 {
	dx, dt, ok := toTick(x, tick)
	if !ok {
		return x
	}
	return dx.Div(dt).Round(0).Mul(dt).InexactFloat64()
}

// FloorToTick rounds x down to a tick multiple.
func FloorToTick(x, tick float64) float64 {
	dx, dt, ok := toTick(x, tick)
	if !ok {
		return x
	}
	return dx.Div(dt).Floor().Mul(dt).InexactFloat64()
}

// CeilToTick rounds x up to a tick multiple.
func CeilToTick(x, tick float64) float64 {
	dx, dt, ok := toTick(x, tick)
	if !ok {
		return x
	}
	return dx.Div(dt).Ceil().Mul(dt).InexactFloat64()
}

// Mid returns the bid/ask midpoint rounded to the cent. A one-sided quote
// returns the side that is present; no quote returns ok=false.
func Mid(bid, ask float64) (float64, bool) {
	switch {
	case bid > 0 && ask > 0:
		return RoundToTick((bid+ask)/2, CentTick), true
	case ask > 0:
		return RoundToTick(ask, CentTick), true
	case bid > 0:
		return RoundToTick(bid, CentTick), true
	default:
		return 0, false
	}
}
