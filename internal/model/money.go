package model

import (
	"fmt"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (cents). Ledger and billing arithmetic is
// integer-only so repeated increments reconcile exactly.
type Money int64

const (
	// MaxAmount bounds any single amount entering the system: one billion
	// in cents.
	MaxAmount Money = 1_000_000_000_00
	// MaxTotal bounds a running session total. Four of them still sum
	// without overflowing int64.
	MaxTotal Money = 1_000_000 * MaxAmount
)

// Cents is a convenience constructor.
func Cents(c int64) Money { return Money(c) }

var maxAmountDecimal = decimal.NewFromInt(int64(MaxAmount))

// MoneyFromDecimal converts a decimal amount such as 10.50 into minor units.
// Amounts with more than two fractional digits are rejected rather than
// rounded, and so is anything whose magnitude exceeds MaxAmount.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	scaled := d.Shift(2)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: amount %s has more than 2 decimal places", apierror.ErrInvalidAmount, d.String())
	}
	if scaled.Abs().GreaterThan(maxAmountDecimal) {
		return 0, fmt.Errorf("%w: amount %s exceeds the limit of %s", apierror.ErrInvalidAmount, d.String(), MaxAmount)
	}
	return Money(scaled.IntPart()), nil
}

// Decimal returns m as a decimal with two fractional digits.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String renders m as "12.34".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Max returns the larger of m and o.
func (m Money) Max(o Money) Money {
	if m > o {
		return m
	}
	return o
}
