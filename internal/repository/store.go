package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"

	"gorm.io/gorm"
)

// Store groups the repositories behind one unit of work. Transaction runs fn
// against a Store bound to a single database transaction; any error rolls
// everything back.
type Store interface {
	Sessions() SessionRepository
	Vehicles() VehicleRepository
	BillingRules() BillingRuleRepository
	Transaction(ctx context.Context, fn func(s Store) error) error
}

type gormStore struct{ db *gorm.DB }

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) Store { return &gormStore{db: db} }

func (s *gormStore) Sessions() SessionRepository         { return &sessionRepo{db: s.db} }
func (s *gormStore) Vehicles() VehicleRepository         { return &vehicleRepo{db: s.db} }
func (s *gormStore) BillingRules() BillingRuleRepository { return &billingRuleRepo{db: s.db} }

func (s *gormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// duplicate maps a unique-index violation to ErrConflict. It relies on the
// connection being opened with gorm.Config{TranslateError: true}.
func duplicate(err error, what string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s already exists", apierror.ErrConflict, what)
	}
	return err
}

// notFound converts gorm's sentinel into the engine's NotFound error.
func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, apierror.ErrNotFound)
	}
	return err
}
