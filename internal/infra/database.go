package infra

import (
	"fmt"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens a GORM connection, migrates the tables and applies the
// partial unique indexes GORM tags cannot express.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// GormConfig is shared with tests so unique violations surface as
// gorm.ErrDuplicatedKey in both.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
}

// RunMigrations creates or updates the schema. Safe to run repeatedly.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.CashSession{},
		&model.Transaction{},
		&model.VehicleEntry{},
		&model.BillingRule{},
		&model.AuditEntry{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches creates the partial unique indexes that back the
// engine's single-writer rules across processes:
//   - at most one OPEN cash session
//   - at most one active billing rule per category
//   - at most one INSIDE entry per plate
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"single open session", `
CREATE UNIQUE INDEX IF NOT EXISTS uq_cash_sessions_single_open
    ON cash_sessions ((status))
    WHERE status = 'OPEN'`},
		{"one active rule per category", `
CREATE UNIQUE INDEX IF NOT EXISTS uq_billing_rules_active_category
    ON billing_rules (vehicle_category)
    WHERE is_active`},
		{"one inside entry per plate", `
CREATE UNIQUE INDEX IF NOT EXISTS uq_vehicle_entries_inside_plate
    ON vehicle_entries (plate)
    WHERE status = 'INSIDE'`},
		{"positive transaction amounts", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_cash_transactions_amount_positive') THEN
    ALTER TABLE cash_transactions
      ADD CONSTRAINT chk_cash_transactions_amount_positive CHECK (amount > 0);
  END IF;
END $$`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
