// Package money converts between major currency units (rupees, as entered
// at checkout) and the minor units (paise) the payment gateway expects.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNonPositive = errors.New("amount must be positive")

// ToMinor converts a major-unit amount to minor units, rounding half away
// from zero at the paise boundary.
func ToMinor(major float64) (int64, error) {
	d := decimal.NewFromFloat(major)
	if !d.IsPositive() {
		return 0, ErrNonPositive
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// Cents returns major rounded to two decimal places, expressed in minor units.
// Unlike ToMinor it accepts zero and negative values.
func Cents(major float64) int64 {
	return decimal.NewFromFloat(major).Shift(2).Round(0).IntPart()
}

// FromMinor converts minor units back to major units.
func FromMinor(minor int64) float64 {
	f, _ := decimal.New(minor, -2).Float64()
	return f
}
