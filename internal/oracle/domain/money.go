package domain

import "github.com/shopspring/decimal"

var half = decimal.NewFromFloat(0.5)

// RoundCents applies the single shared rounding policy for the engine:
// round-half-up to the nearest cent. Every place money is rounded must go
// through here so the conservation invariant holds bit-for-bit against
// production, which uses the identical policy.
func RoundCents(d decimal.Decimal) int64 {
	return d.Add(half).Floor().IntPart()
}
