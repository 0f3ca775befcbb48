package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockStore(t *testing.T) (repository.Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return repository.NewStore(db), mock
}

func TestFindSessionByID_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "cash_sessions" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Sessions().FindSessionByID(context.Background(), id)
	assert.ErrorIs(t, err, apierror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOpenSession_ScansRow(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	opened := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "cash_sessions" WHERE status = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "operator_id", "initial_value", "total_product_sale", "opened_at", "version"}).
			AddRow(id.String(), "OPEN", "op1", int64(10000), int64(2500), opened, int64(3)))

	cs, err := store.Sessions().FindOpenSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, cs.ID)
	assert.Equal(t, model.SessionOpen, cs.Status)
	assert.Equal(t, model.Money(10000), cs.InitialValue)
	assert.Equal(t, model.Money(2500), cs.TotalProductSale)
	assert.Equal(t, int64(3), cs.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSession_StaleVersionIsConflict(t *testing.T) {
	store, mock := newMockStore(t)
	cs := &model.CashSession{ID: uuid.New(), Status: model.SessionClosed, OperatorID: "op1", Version: 5}

	mock.ExpectExec(`UPDATE "cash_sessions" SET .* WHERE .*id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Sessions().UpdateSession(context.Background(), cs, 4)
	assert.ErrorIs(t, err, apierror.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSession_Applies(t *testing.T) {
	store, mock := newMockStore(t)
	cs := &model.CashSession{ID: uuid.New(), Status: model.SessionClosed, OperatorID: "op1", Version: 5}

	mock.ExpectExec(`UPDATE "cash_sessions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Sessions().UpdateSession(context.Background(), cs, 4))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "billing_rules" WHERE vehicle_category = \$1 AND is_active = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "vehicle_category", "base_price", "base_time_minutes", "is_active"}).
			AddRow(uuid.New().String(), "CAR", int64(500), 60, true))
	mock.ExpectRollback()

	err := store.Transaction(context.Background(), func(tx repository.Store) error {
		rule, err := tx.BillingRules().FindActive(context.Background(), model.VehicleCar)
		require.NoError(t, err)
		assert.Equal(t, model.Money(500), rule.BasePrice)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetActive_UnknownRuleIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "billing_rules" SET "is_active"=\$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.BillingRules().SetActive(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apierror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVehicleTransition_StaleStatusIsInvalidState(t *testing.T) {
	store, mock := newMockStore(t)
	v := &model.VehicleEntry{ID: uuid.New(), Plate: "ABC1D23", Category: model.VehicleCar, Status: model.VehicleDeleted}

	mock.ExpectExec(`UPDATE "vehicle_entries" SET .* WHERE .*id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Vehicles().Transition(context.Background(), v, model.VehicleInside)
	assert.ErrorIs(t, err, apierror.ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVehicleTransition_Applies(t *testing.T) {
	store, mock := newMockStore(t)
	v := &model.VehicleEntry{ID: uuid.New(), Plate: "ABC1D23", Category: model.VehicleCar, Status: model.VehicleExited}

	mock.ExpectExec(`UPDATE "vehicle_entries" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Vehicles().Transition(context.Background(), v, model.VehicleInside))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountInsideByCategory(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT category, COUNT\(\*\) AS count FROM "vehicle_entries" WHERE status = \$1`).
		WithArgs(model.VehicleInside).
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).
			AddRow("CAR", 3).
			AddRow("MOTORCYCLE", 1))

	counts, err := store.Vehicles().CountInsideByCategory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[model.VehicleCategory]int{model.VehicleCar: 3, model.VehicleMotorcycle: 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
