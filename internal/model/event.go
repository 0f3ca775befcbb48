package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a committed change published for external reporting.
type EventType string

const (
	EventSessionOpened       EventType = "session.opened"
	EventSessionClosed       EventType = "session.closed"
	EventSessionReopened     EventType = "session.reopened"
	EventTransactionRecorded EventType = "transaction.recorded"
	EventTransactionReversed EventType = "transaction.reversed"
)

// SessionEvent is emitted after a mutation commits. Amount is the signed
// balance contribution for transaction events and zero otherwise.
type SessionEvent struct {
	Type       EventType       `json:"type"`
	SessionID  uuid.UUID       `json:"session_id"`
	TxType     TransactionType `json:"tx_type,omitempty"`
	Amount     Money           `json:"amount"`
	Actor      string          `json:"actor"`
	OccurredAt time.Time       `json:"occurred_at"`
}
