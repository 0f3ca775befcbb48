// Package cash implements the cash-session state machine and its ledger
// arithmetic over model.CashSession:
//
//	NOT_CREATED --open--> OPEN --close--> CLOSED --reopen--> OPEN ...
//
// The functions here validate one session in isolation. The rule that at most
// one session is OPEN system-wide belongs to the registry in package service.
package cash

import (
	"fmt"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/google/uuid"
)

// Open creates a new OPEN session with zero totals.
func Open(operatorID string, initial model.Money, now time.Time) (*model.CashSession, error) {
	if operatorID == "" {
		return nil, fmt.Errorf("%w: operator id is required", apierror.ErrInvalidInput)
	}
	if initial < 0 || initial > model.MaxAmount {
		return nil, fmt.Errorf("%w: initial value %s is outside 0..%s", apierror.ErrInvalidAmount, initial, model.MaxAmount)
	}
	return &model.CashSession{
		ID:           uuid.New(),
		Status:       model.SessionOpen,
		OperatorID:   operatorID,
		InitialValue: initial,
		OpenedAt:     now,
		Version:      1,
	}, nil
}

// Close freezes the final value and stamps closedAt. Totals are kept.
func Close(s *model.CashSession, now time.Time) (model.Money, error) {
	if err := requireStatus(s, model.SessionOpen, "close"); err != nil {
		return 0, err
	}
	final := FinalValue(s)
	s.FinalValue = &final
	s.ClosedAt = &now
	s.Status = model.SessionClosed
	s.Version++
	return final, nil
}

// Reopen moves a CLOSED session back to OPEN, keeping its totals and initial
// value. Only privileged roles may reopen.
func Reopen(s *model.CashSession, role string) error {
	if !model.IsPrivileged(role) {
		return fmt.Errorf("%w: role %q cannot reopen a session", apierror.ErrPermissionDenied, role)
	}
	if err := requireStatus(s, model.SessionClosed, "reopen"); err != nil {
		return err
	}
	s.Status = model.SessionOpen
	s.ClosedAt = nil
	s.FinalValue = nil
	s.Version++
	return nil
}

// Apply folds an accepted transaction into the session totals.
func Apply(s *model.CashSession, tx *model.Transaction) error {
	if err := requireStatus(s, model.SessionOpen, "record a transaction on"); err != nil {
		return err
	}
	category, err := ValidateTransaction(tx)
	if err != nil {
		return err
	}
	if current := total(s, category); tx.Amount > model.MaxTotal-current {
		return fmt.Errorf("%w: %s total %s cannot take %s more", apierror.ErrInvalidAmount, category, current, tx.Amount)
	}
	add(s, category, tx.Amount)
	s.Version++
	return nil
}

// Revert removes the contribution of original from the totals. It is the
// ledger side of a reversal; the compensating row itself is appended by the caller.
func Revert(s *model.CashSession, original *model.Transaction) error {
	if err := requireStatus(s, model.SessionOpen, "reverse a transaction on"); err != nil {
		return err
	}
	if original.IsReversal() {
		return fmt.Errorf("%w: transaction %s is itself a reversal", apierror.ErrInvalidState, original.ID)
	}
	category, err := ValidateTransaction(original)
	if err != nil {
		return err
	}
	add(s, category, -original.Amount)
	s.Version++
	return nil
}

// CorrectInitialValue is the only way to change the opening amount.
func CorrectInitialValue(s *model.CashSession, value model.Money, role string) error {
	if !model.IsPrivileged(role) {
		return fmt.Errorf("%w: role %q cannot correct the initial value", apierror.ErrPermissionDenied, role)
	}
	if err := requireStatus(s, model.SessionOpen, "correct"); err != nil {
		return err
	}
	if value < 0 || value > model.MaxAmount {
		return fmt.Errorf("%w: initial value %s is outside 0..%s", apierror.ErrInvalidAmount, value, model.MaxAmount)
	}
	s.InitialValue = value
	s.Version++
	return nil
}

// FinalValue is initial + vehicle entries + product sales - outgoing expenses.
func FinalValue(s *model.CashSession) model.Money {
	return s.InitialValue + s.TotalVehicleEntry + s.TotalProductSale - s.TotalOutgoingExpense
}

// ValidateTransaction checks type and amount and returns the ledger bucket.
func ValidateTransaction(tx *model.Transaction) (model.TotalsCategory, error) {
	category, ok := tx.Type.Category()
	if !ok {
		return "", fmt.Errorf("%w: unknown transaction type %q", apierror.ErrInvalidInput, tx.Type)
	}
	if tx.Amount <= 0 {
		return "", fmt.Errorf("%w: %s amount must be greater than zero, got %s", apierror.ErrInvalidAmount, tx.Type, tx.Amount)
	}
	if tx.Amount > model.MaxAmount {
		return "", fmt.Errorf("%w: %s amount %s exceeds the limit of %s", apierror.ErrInvalidAmount, tx.Type, tx.Amount, model.MaxAmount)
	}
	return category, nil
}

// Status returns the status of s, treating nil as NOT_CREATED.
func Status(s *model.CashSession) model.SessionStatus {
	if s == nil {
		return model.SessionNotCreated
	}
	return s.Status
}

func requireStatus(s *model.CashSession, want model.SessionStatus, op string) error {
	if got := Status(s); got != want {
		return fmt.Errorf("%w: cannot %s a session in status %s", apierror.ErrInvalidState, op, got)
	}
	return nil
}

func total(s *model.CashSession, c model.TotalsCategory) model.Money {
	switch c {
	case model.CategoryVehicleEntry:
		return s.TotalVehicleEntry
	case model.CategoryProductSale:
		return s.TotalProductSale
	case model.CategoryOutgoingExpense:
		return s.TotalOutgoingExpense
	}
	return 0
}

func add(s *model.CashSession, c model.TotalsCategory, amount model.Money) {
	switch c {
	case model.CategoryVehicleEntry:
		s.TotalVehicleEntry += amount
	case model.CategoryProductSale:
		s.TotalProductSale += amount
	case model.CategoryOutgoingExpense:
		s.TotalOutgoingExpense += amount
	}
}
