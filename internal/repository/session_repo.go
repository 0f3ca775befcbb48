package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionRepository persists cash sessions, their transaction log and the
// audit trail. Transactions and audit entries are append-only: there is no
// Update or Delete for them.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *model.CashSession) error
	// UpdateSession writes s only if the stored row still carries expectedVersion.
	UpdateSession(ctx context.Context, s *model.CashSession, expectedVersion int64) error
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	FindOpenSession(ctx context.Context) (*model.CashSession, error)
	ListSessions(ctx context.Context, page, limit int) ([]model.CashSession, int64, error)

	CreateTransaction(ctx context.Context, t *model.Transaction) error
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	FindReversalOf(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	ListTransactions(ctx context.Context, sessionID uuid.UUID) ([]model.Transaction, error)

	AppendAudit(ctx context.Context, e *model.AuditEntry) error
	ListAudit(ctx context.Context, sessionID uuid.UUID) ([]model.AuditEntry, error)
}

type sessionRepo struct{ db *gorm.DB }

func (r *sessionRepo) CreateSession(ctx context.Context, s *model.CashSession) error {
	return openConflict(r.db.WithContext(ctx).Create(s).Error)
}

func (r *sessionRepo) UpdateSession(ctx context.Context, s *model.CashSession, expectedVersion int64) error {
	res := r.db.WithContext(ctx).Model(&model.CashSession{}).
		Where("id = ? AND version = ?", s.ID, expectedVersion).
		Select("*").
		Updates(s)
	if res.Error != nil {
		return openConflict(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: session %s was modified concurrently", apierror.ErrConflict, s.ID)
	}
	return nil
}

// openConflict reports a violation of the single-open-session index as a
// conflict that also reads as an invalid state.
func openConflict(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %w: another session is already open", apierror.ErrConflict, apierror.ErrInvalidState)
	}
	return err
}

func (r *sessionRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, notFound(err, "session", id)
	}
	return &s, nil
}

func (r *sessionRepo) FindOpenSession(ctx context.Context) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).Where("status = ?", model.SessionOpen).First(&s).Error
	if err != nil {
		return nil, notFound(err, "open session", "")
	}
	return &s, nil
}

func (r *sessionRepo) ListSessions(ctx context.Context, page, limit int) ([]model.CashSession, int64, error) {
	var sessions []model.CashSession
	var total int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.CashSession{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("opened_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&sessions).Error
	return sessions, total, err
}

func (r *sessionRepo) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	return duplicate(r.db.WithContext(ctx).Create(t).Error, "reversal for transaction")
}

func (r *sessionRepo) FindTransactionByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var t model.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, notFound(err, "transaction", id)
	}
	return &t, nil
}

func (r *sessionRepo) FindReversalOf(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var t model.Transaction
	if err := r.db.WithContext(ctx).Where("reversal_of = ?", id).First(&t).Error; err != nil {
		return nil, notFound(err, "reversal of", id)
	}
	return &t, nil
}

func (r *sessionRepo) ListTransactions(ctx context.Context, sessionID uuid.UUID) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at ASC").Find(&txs).Error
	return txs, err
}

func (r *sessionRepo) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *sessionRepo) ListAudit(ctx context.Context, sessionID uuid.UUID) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at ASC").Find(&entries).Error
	return entries, err
}
