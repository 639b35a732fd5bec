// Package money implements the core's integer minor-unit currency type.
//
// All simulation arithmetic (amortization, ceilings on ask prices,
// negotiation math) happens on Amount, a plain int64 of minor units
// (cents). shopspring/decimal is used only at the edges — wire encoding,
// logging, and CLI display — the same split the teacher keeps between
// its int64-backed domain math and decimal.Decimal on the wire.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is an exact integer count of minor currency units.
type Amount int64

// Zero is the additive identity.
const Zero Amount = 0

// FromMajor builds an Amount from a whole-currency decimal string,
// e.g. FromMajor("129999.50") for the wire/CLI boundary.
func FromMajor(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// FromDecimal converts a decimal.Decimal (major units) to minor-unit Amount.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount(d.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}

// Decimal renders the Amount as a major-unit decimal.Decimal for
// display/wire use.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String renders e.g. "$129,999.50"-free plain decimal form "1299.50".
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

// Mul scales an Amount by a float factor (interest rates, multipliers),
// rounding to the nearest minor unit.
func (a Amount) Mul(factor float64) Amount {
	return Amount(int64(float64(a)*factor + sign(float64(a)*factor)*0.5))
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

// Clamp bounds a within [lo, hi].
func Clamp(a, lo, hi Amount) Amount {
	if a < lo {
		return lo
	}
	if a > hi {
		return hi
	}
	return a
}
