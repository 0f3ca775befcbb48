//go:build integration

package repository_test

// Runs the gorm store against a real Postgres started with testcontainers.
// Run with: go test -tags integration ./internal/repository/... -v

import (
	"context"
	"testing"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/infra"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupPostgres(t *testing.T) repository.Store {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("parkpos_test"),
		tcPostgres.WithUsername("parkpos"),
		tcPostgres.WithPassword("parkpos"),
		testcontainers.WithWaitStrategy(tcPostgres.BasicWaitStrategies()...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDatabase(dsn)
	require.NoError(t, err)
	// migrations are idempotent
	require.NoError(t, infra.RunMigrations(db))
	return repository.NewStore(db)
}

func openSession(operator string) *model.CashSession {
	return &model.CashSession{
		ID:         uuid.New(),
		Status:     model.SessionOpen,
		OperatorID: operator,
		OpenedAt:   time.Now().UTC(),
		Version:    1,
	}
}

func TestPostgres_SingleOpenSessionIndex(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	first := openSession("op1")
	require.NoError(t, store.Sessions().CreateSession(ctx, first))

	err := store.Sessions().CreateSession(ctx, openSession("op2"))
	assert.ErrorIs(t, err, apierror.ErrConflict)
	assert.ErrorIs(t, err, apierror.ErrInvalidState)

	// closing frees the slot
	first.Status = model.SessionClosed
	first.Version = 2
	require.NoError(t, store.Sessions().UpdateSession(ctx, first, 1))
	require.NoError(t, store.Sessions().CreateSession(ctx, openSession("op2")))

	// a stale writer loses
	first.Version = 3
	err = store.Sessions().UpdateSession(ctx, first, 1)
	assert.ErrorIs(t, err, apierror.ErrConflict)
}

func TestPostgres_ReversalIsUnique(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	cs := openSession("op1")
	require.NoError(t, store.Sessions().CreateSession(ctx, cs))

	sale := &model.Transaction{
		ID: uuid.New(), SessionID: cs.ID, Type: model.TxProductSale, Amount: 2500,
		PaymentMethod: model.PaymentCash, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Sessions().CreateTransaction(ctx, sale))

	reversal := func() *model.Transaction {
		return &model.Transaction{
			ID: uuid.New(), SessionID: cs.ID, Type: sale.Type, Amount: sale.Amount,
			PaymentMethod: sale.PaymentMethod, ReversalOf: &sale.ID, CreatedAt: time.Now().UTC(),
		}
	}
	require.NoError(t, store.Sessions().CreateTransaction(ctx, reversal()))
	err := store.Sessions().CreateTransaction(ctx, reversal())
	assert.ErrorIs(t, err, apierror.ErrConflict)

	got, err := store.Sessions().FindReversalOf(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.ID, *got.ReversalOf)
}

func TestPostgres_RejectsNonPositiveAmounts(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	cs := openSession("op1")
	require.NoError(t, store.Sessions().CreateSession(ctx, cs))

	err := store.Sessions().CreateTransaction(ctx, &model.Transaction{
		ID: uuid.New(), SessionID: cs.ID, Type: model.TxProductSale, Amount: 0,
		PaymentMethod: model.PaymentCash, CreatedAt: time.Now().UTC(),
	})
	assert.Error(t, err)
}

func TestPostgres_ActiveRuleAndInsidePlate(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rule := func() *model.BillingRule {
		return &model.BillingRule{
			ID: uuid.New(), VehicleCategory: model.VehicleCar, BasePrice: 500,
			BaseTimeMinutes: 60, CreatedAt: now, UpdatedAt: now,
		}
	}
	a, b := rule(), rule()
	require.NoError(t, store.BillingRules().Create(ctx, a))
	require.NoError(t, store.BillingRules().Create(ctx, b))
	require.NoError(t, store.BillingRules().SetActive(ctx, a.ID))
	assert.ErrorIs(t, store.BillingRules().SetActive(ctx, b.ID), apierror.ErrConflict)

	require.NoError(t, store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.BillingRules().DeactivateCategory(ctx, model.VehicleCar); err != nil {
			return err
		}
		return tx.BillingRules().SetActive(ctx, b.ID)
	}))
	active, err := store.BillingRules().FindActive(ctx, model.VehicleCar)
	require.NoError(t, err)
	assert.Equal(t, b.ID, active.ID)

	cs := openSession("op1")
	require.NoError(t, store.Sessions().CreateSession(ctx, cs))
	entry := func() *model.VehicleEntry {
		return &model.VehicleEntry{
			ID: uuid.New(), Plate: "ABC1D23", Category: model.VehicleCar, EntryTime: now,
			Status: model.VehicleInside, SessionID: cs.ID,
		}
	}
	require.NoError(t, store.Vehicles().Create(ctx, entry()))
	assert.ErrorIs(t, store.Vehicles().Create(ctx, entry()), apierror.ErrConflict)

	counts, err := store.Vehicles().CountInsideByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.VehicleCar])
}
