package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TransactionType is the kind of monetized operation folded into a session.
type TransactionType string

const (
	TxVehicleEntry       TransactionType = "VEHICLE_ENTRY"
	TxVehicleExitPayment TransactionType = "VEHICLE_EXIT_PAYMENT"
	TxProductSale        TransactionType = "PRODUCT_SALE"
	TxOutgoingExpense    TransactionType = "OUTGOING_EXPENSE"
)

// Category returns the ledger bucket for t and false for unknown types.
func (t TransactionType) Category() (TotalsCategory, bool) {
	switch t {
	case TxVehicleEntry, TxVehicleExitPayment:
		return CategoryVehicleEntry, true
	case TxProductSale:
		return CategoryProductSale, true
	case TxOutgoingExpense:
		return CategoryOutgoingExpense, true
	default:
		return "", false
	}
}

// PaymentMethod: cash | debit | credit | pix | transfer
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentDebit    PaymentMethod = "debit"
	PaymentCredit   PaymentMethod = "credit"
	PaymentPix      PaymentMethod = "pix"
	PaymentTransfer PaymentMethod = "transfer"
)

// Transaction is an immutable ledger record. Amount is always positive; its
// sign comes from the type. Reversals are new rows with ReversalOf set and
// are never produced by editing the original.
type Transaction struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SessionID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Type          TransactionType `gorm:"type:varchar(32);not null"`
	Amount        Money           `gorm:"type:bigint;not null"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(16);not null;default:'cash'"`
	Description   string          `gorm:"not null;default:''"`
	// ReferenceID links to the originating vehicle entry, if any.
	ReferenceID *uuid.UUID `gorm:"type:uuid;index"`
	// ReversalOf is set on the compensating row of a reversed transaction.
	ReversalOf *uuid.UUID        `gorm:"type:uuid;uniqueIndex"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedBy  string            `gorm:"type:varchar(64);not null;default:''"`
	CreatedAt  time.Time
}

func (Transaction) TableName() string { return "cash_transactions" }

// IsReversal reports whether t compensates an earlier transaction.
func (t *Transaction) IsReversal() bool { return t.ReversalOf != nil }

// SignedAmount is the contribution of t to the session balance.
func (t *Transaction) SignedAmount() Money {
	amount := t.Amount
	if t.Type == TxOutgoingExpense {
		amount = -amount
	}
	if t.IsReversal() {
		amount = -amount
	}
	return amount
}
