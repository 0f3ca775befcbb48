package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names the attempted operation.
type AuditAction string

const (
	AuditOpen    AuditAction = "open"
	AuditClose   AuditAction = "close"
	AuditReopen  AuditAction = "reopen"
	AuditRecord  AuditAction = "record"
	AuditReverse AuditAction = "reverse"
	AuditCorrect AuditAction = "correct"
	// AuditDeleteEntry is filed against the session the vehicle entered under.
	AuditDeleteEntry AuditAction = "delete_entry"
)

// AuditEntry is an append-only record of an attempted session operation.
// Rejected attempts are kept with Accepted=false and the failure reason.
type AuditEntry struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey"`
	SessionID  *uuid.UUID    `gorm:"type:uuid;index"`
	Action     AuditAction   `gorm:"type:varchar(16);not null"`
	FromStatus SessionStatus `gorm:"type:varchar(16);not null"`
	ToStatus   SessionStatus `gorm:"type:varchar(16);not null"`
	Actor      string        `gorm:"type:varchar(64);not null"`
	Accepted   bool          `gorm:"not null"`
	Reason     string
	CreatedAt  time.Time `gorm:"index"`
}

func (AuditEntry) TableName() string { return "cash_audit_log" }
