// Package billing computes time-based parking fees from a billing rule.
//
// The tolerance window is consumed before base-time units start: a stay of
// tolerance+1 minutes bills one unit for the single remaining minute.
package billing

import (
	"fmt"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
)

// Quote is the breakdown of a computed fee.
type Quote struct {
	ElapsedMinutes  int
	BillableMinutes int
	Units           int
	Fee             model.Money
}

// ElapsedMinutes rounds the interval up to whole minutes. Any remainder
// counts, down to the nanosecond.
func ElapsedMinutes(entry, exit time.Time) (int, error) {
	if exit.Before(entry) {
		return 0, fmt.Errorf("%w: exit %s is before entry %s", apierror.ErrInvalidInterval,
			exit.Format(time.RFC3339), entry.Format(time.RFC3339))
	}
	d := exit.Sub(entry)
	minutes := int(d / time.Minute)
	if d%time.Minute != 0 {
		minutes++
	}
	return minutes, nil
}

// ComputeFee returns the base fee for a stay. It never returns a negative fee.
func ComputeFee(entry, exit time.Time, rule model.BillingRule) (model.Money, error) {
	q, err := Compute(entry, exit, rule)
	if err != nil {
		return 0, err
	}
	return q.Fee, nil
}

// Compute is ComputeFee with the intermediate figures.
func Compute(entry, exit time.Time, rule model.BillingRule) (Quote, error) {
	if err := ValidateRule(rule); err != nil {
		return Quote{}, err
	}
	elapsed, err := ElapsedMinutes(entry, exit)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{ElapsedMinutes: elapsed}
	if elapsed <= rule.ToleranceMinutes {
		return q, nil
	}
	q.BillableMinutes = elapsed - rule.ToleranceMinutes
	q.Units = ceilDiv(q.BillableMinutes, rule.BaseTimeMinutes)
	q.Fee = rule.BasePrice * model.Money(q.Units)
	return q, nil
}

// ApplyDiscount subtracts discount from fee with a floor at zero. A negative
// discount is ignored.
func ApplyDiscount(fee, discount model.Money) model.Money {
	if discount <= 0 {
		return fee
	}
	return (fee - discount).Max(0)
}

// ValidateRule checks the numeric fields of a rule.
func ValidateRule(rule model.BillingRule) error {
	switch {
	case rule.BasePrice < 0:
		return fmt.Errorf("%w: base price must not be negative", apierror.ErrInvalidAmount)
	case rule.BaseTimeMinutes <= 0:
		return fmt.Errorf("%w: base time must be at least one minute", apierror.ErrInvalidInput)
	case rule.ToleranceMinutes < 0:
		return fmt.Errorf("%w: tolerance must not be negative", apierror.ErrInvalidInput)
	}
	return nil
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
