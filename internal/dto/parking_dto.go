package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Vehicles ────────────────────────────────────────────────────────────────

type RegisterEntryRequest struct {
	Plate         string          `json:"plate"          validate:"required,min=5,max=10"`
	Category      string          `json:"category"       validate:"required,oneof=CAR MOTORCYCLE car motorcycle"`
	Prepaid       decimal.Decimal `json:"prepaid"        validate:"min=0"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,oneof=cash debit credit pix transfer"`
	Observation   string          `json:"observation"    validate:"max=255"`
}

type RegisterExitRequest struct {
	Discount      decimal.Decimal `json:"discount"       validate:"min=0"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,oneof=cash debit credit pix transfer"`
}

type VehicleResponse struct {
	ID          string     `json:"id"`
	Plate       string     `json:"plate"`
	Category    string     `json:"category"`
	Status      string     `json:"status"`
	EntryTime   time.Time  `json:"entry_time"`
	ExitTime    *time.Time `json:"exit_time"`
	SessionID   string     `json:"session_id"`
	Observation string     `json:"observation,omitempty"`
	// OverCapacity is set on entry when the lot was already full.
	OverCapacity bool `json:"over_capacity,omitempty"`
}

// ExitReceipt describes a completed exit. Charged is what was recorded in the
// ledger; no transaction is recorded when it is zero.
type ExitReceipt struct {
	EntryID         string          `json:"entry_id"`
	Plate           string          `json:"plate"`
	EntryTime       time.Time       `json:"entry_time"`
	ExitTime        time.Time       `json:"exit_time"`
	ElapsedMinutes  int             `json:"elapsed_minutes"`
	BillableMinutes int             `json:"billable_minutes"`
	Units           int             `json:"units"`
	GrossFee        decimal.Decimal `json:"gross_fee"`
	Discount        decimal.Decimal `json:"discount"`
	Charged         decimal.Decimal `json:"charged"`
	TransactionID   *string         `json:"transaction_id"`
}

// ─── Billing ─────────────────────────────────────────────────────────────────

type CreateBillingRuleRequest struct {
	VehicleCategory  string          `json:"vehicle_category"  validate:"required,oneof=CAR MOTORCYCLE car motorcycle"`
	BasePrice        decimal.Decimal `json:"base_price"        validate:"min=0"`
	BaseTimeMinutes  int             `json:"base_time_minutes" validate:"required,min=1"`
	ToleranceMinutes int             `json:"tolerance_minutes" validate:"min=0"`
	Activate         bool            `json:"activate"`
}

type BillingRuleResponse struct {
	ID               string          `json:"id"`
	VehicleCategory  string          `json:"vehicle_category"`
	BasePrice        decimal.Decimal `json:"base_price"`
	BaseTimeMinutes  int             `json:"base_time_minutes"`
	ToleranceMinutes int             `json:"tolerance_minutes"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
}

type ComputeFeeRequest struct {
	EntryTime time.Time `json:"entry_time" validate:"required"`
	ExitTime  time.Time `json:"exit_time"  validate:"required"`
	Category  string    `json:"category"   validate:"required,oneof=CAR MOTORCYCLE car motorcycle"`
}

type FeeResponse struct {
	Category        string          `json:"category"`
	RuleID          string          `json:"rule_id"`
	ElapsedMinutes  int             `json:"elapsed_minutes"`
	BillableMinutes int             `json:"billable_minutes"`
	Units           int             `json:"units"`
	Fee             decimal.Decimal `json:"fee"`
}

// ─── Reports ─────────────────────────────────────────────────────────────────

// DailySummary is the asynchronous per-day projection built from session events.
type DailySummary struct {
	Date             string          `json:"date"`
	SessionsOpened   int64           `json:"sessions_opened"`
	SessionsClosed   int64           `json:"sessions_closed"`
	SessionsReopened int64           `json:"sessions_reopened"`
	Transactions     int64           `json:"transactions"`
	Reversals        int64           `json:"reversals"`
	VehicleEntry     decimal.Decimal `json:"vehicleEntry"`
	ProductSale      decimal.Decimal `json:"productSale"`
	OutgoingExpense  decimal.Decimal `json:"outgoingExpense"`
}
