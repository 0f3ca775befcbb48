package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenSessionRequest struct {
	InitialValue decimal.Decimal `json:"initial_value" validate:"min=0"`
}

type CorrectInitialValueRequest struct {
	InitialValue decimal.Decimal `json:"initial_value" validate:"min=0"`
}

type RecordTransactionRequest struct {
	Type          string          `json:"type"           validate:"required,oneof=VEHICLE_ENTRY VEHICLE_EXIT_PAYMENT PRODUCT_SALE OUTGOING_EXPENSE"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,oneof=cash debit credit pix transfer"`
	Description   string          `json:"description"    validate:"max=255"`
	ReferenceID   string          `json:"reference_id"   validate:"omitempty,uuid"`
	Metadata      map[string]any  `json:"metadata"`
}

type ReverseTransactionRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=255"`
}

// RecordTransaction is the service-level input built by the handler.
type RecordTransaction struct {
	Type          string
	Amount        decimal.Decimal
	PaymentMethod string
	Description   string
	ReferenceID   string
	Metadata      map[string]any
	Actor         string
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type Totals struct {
	VehicleEntry    decimal.Decimal `json:"vehicleEntry"`
	ProductSale     decimal.Decimal `json:"productSale"`
	OutgoingExpense decimal.Decimal `json:"outgoingExpense"`
}

type SessionResponse struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	OperatorID   string          `json:"operator_id"`
	InitialValue decimal.Decimal `json:"initial_value"`
	// Balance is the live final value while OPEN and the frozen one once CLOSED.
	Balance  decimal.Decimal  `json:"balance"`
	Final    *decimal.Decimal `json:"final_value"`
	Totals   Totals           `json:"totals"`
	OpenedAt time.Time        `json:"opened_at"`
	ClosedAt *time.Time       `json:"closed_at"`
}

// FinalSnapshot is returned by close.
type FinalSnapshot struct {
	SessionID    string          `json:"session_id"`
	InitialValue decimal.Decimal `json:"initial_value"`
	Totals       Totals          `json:"totals"`
	FinalValue   decimal.Decimal `json:"final_value"`
	ClosedAt     time.Time       `json:"closed_at"`
}

type TransactionResponse struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Description   string          `json:"description"`
	ReferenceID   *string         `json:"reference_id"`
	ReversalOf    *string         `json:"reversal_of"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

type TotalsResponse struct {
	SessionID  string          `json:"session_id"`
	Status     string          `json:"status"`
	Totals     Totals          `json:"totals"`
	FinalValue decimal.Decimal `json:"final_value"`
}

// Breakdown sums the transaction log by payment method and by type. Values are
// signed balance contributions, so reversals and expenses subtract.
type Breakdown struct {
	SessionID string                     `json:"session_id"`
	ByMethod  map[string]decimal.Decimal `json:"by_method"`
	ByType    map[string]decimal.Decimal `json:"by_type"`
	Count     int                        `json:"count"`
}

type SessionListResponse struct {
	Data       []SessionResponse `json:"data"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

type AuditEntryResponse struct {
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	Accepted   bool      `json:"accepted"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
