package model

import (
	"time"

	"github.com/google/uuid"
)

// BillingRule is the pricing policy for one vehicle category. At most one
// rule per category is active; activating a new one never rewrites the fee
// of vehicles that already exited.
type BillingRule struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	VehicleCategory  VehicleCategory `gorm:"type:varchar(16);not null;index"`
	BasePrice        Money           `gorm:"type:bigint;not null"`
	BaseTimeMinutes  int             `gorm:"not null"`
	ToleranceMinutes int             `gorm:"not null;default:0"`
	IsActive         bool            `gorm:"not null;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (BillingRule) TableName() string { return "billing_rules" }
