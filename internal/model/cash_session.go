package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a cash session.
type SessionStatus string

const (
	SessionNotCreated SessionStatus = "NOT_CREATED"
	SessionOpen       SessionStatus = "OPEN"
	SessionClosed     SessionStatus = "CLOSED"
)

// TotalsCategory groups transaction types into the three ledger buckets.
type TotalsCategory string

const (
	CategoryVehicleEntry    TotalsCategory = "vehicleEntry"
	CategoryProductSale     TotalsCategory = "productSale"
	CategoryOutgoingExpense TotalsCategory = "outgoingExpense"
)

// CashSession is a cash-register operating period and the aggregate root of
// the ledger. Sessions are never deleted; closed ones remain as history.
type CashSession struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Status       SessionStatus `gorm:"type:varchar(16);not null;index"`
	OperatorID   string        `gorm:"type:varchar(64);not null"`
	InitialValue Money         `gorm:"type:bigint;not null"`
	// FinalValue is the snapshot frozen by close; nil while OPEN.
	FinalValue           *Money `gorm:"type:bigint"`
	TotalVehicleEntry    Money  `gorm:"type:bigint;not null;default:0"`
	TotalProductSale     Money  `gorm:"type:bigint;not null;default:0"`
	TotalOutgoingExpense Money  `gorm:"type:bigint;not null;default:0"`
	OpenedAt             time.Time
	ClosedAt             *time.Time
	// Version is bumped on every mutation for optimistic checks in the store.
	Version   int64 `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (CashSession) TableName() string { return "cash_sessions" }

// Totals returns the accumulated amount per category.
func (s *CashSession) Totals() map[TotalsCategory]Money {
	return map[TotalsCategory]Money{
		CategoryVehicleEntry:    s.TotalVehicleEntry,
		CategoryProductSale:     s.TotalProductSale,
		CategoryOutgoingExpense: s.TotalOutgoingExpense,
	}
}

// Clone returns a deep copy, so callers outside the registry never share
// pointers with the stored aggregate.
func (s *CashSession) Clone() *CashSession {
	c := *s
	if s.FinalValue != nil {
		v := *s.FinalValue
		c.FinalValue = &v
	}
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}
