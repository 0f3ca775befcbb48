package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/capacity"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/clock"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/dto"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Fixtures ──────────────────────────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.SessionEvent
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("queue unavailable")
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	store    *memory.Store
	clock    *clock.Fixed
	events   *recordingPublisher
	sessions SessionService
	parking  ParkingService
	billing  BillingService
}

var start = time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.New(),
		clock:  clock.NewFixed(start),
		events: &recordingPublisher{},
	}
	reg := NewRegistry(f.store, f.clock, f.events)
	f.sessions = NewSessionService(reg)
	f.parking = NewParkingService(reg, newTracker())
	f.billing = NewBillingService(f.store, f.clock)
	return f
}

func newTracker() *capacity.Tracker {
	return capacity.NewTracker(map[model.VehicleCategory]int{
		model.VehicleCar:        2,
		model.VehicleMotorcycle: 1,
	})
}

func (f *fixture) open(t *testing.T, initial int64) *model.CashSession {
	t.Helper()
	cs, err := f.sessions.OpenSession(context.Background(), "op1", model.Cents(initial))
	require.NoError(t, err)
	return cs
}

func record(typ model.TransactionType, amount string) dto.RecordTransaction {
	return dto.RecordTransaction{Type: string(typ), Amount: decimal.RequireFromString(amount), Actor: "op1"}
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestOpenRecordClose_FinalValue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cs := f.open(t, 10000)

	_, err := f.sessions.RecordTransaction(ctx, cs.ID, record(model.TxProductSale, "25"))
	require.NoError(t, err)
	_, err = f.sessions.RecordTransaction(ctx, cs.ID, record(model.TxOutgoingExpense, "5"))
	require.NoError(t, err)

	f.clock.Advance(8 * time.Hour)
	snap, err := f.sessions.CloseSession(ctx, cs.ID, "op1")
	require.NoError(t, err)
	assert.Equal(t, "120.00", snap.FinalValue.StringFixed(2))
	assert.Equal(t, start.Add(8*time.Hour), snap.ClosedAt)
	assert.Equal(t, "25.00", snap.Totals.ProductSale.StringFixed(2))
	assert.Equal(t, "5.00", snap.Totals.OutgoingExpense.StringFixed(2))

	_, err = f.sessions.GetActiveSession(ctx)
	assert.ErrorIs(t, err, apierror.ErrNotFound)

	assert.Equal(t, []model.EventType{
		model.EventSessionOpened,
		model.EventTransactionRecorded,
		model.EventTransactionRecorded,
		model.EventSessionClosed,
	}, f.events.types())
}

func TestOpenWhileOpenIsConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.open(t, 0)

	_, err := f.sessions.OpenSession(ctx, "op2", 0)
	assert.ErrorIs(t, err, apierror.ErrConflict)
	assert.ErrorIs(t, err, apierror.ErrInvalidState)
	assert.True(t, apierror.IsRetryable(err))
}

func TestConcurrentOpens_ExactlyOneSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const n = 32

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.sessions.OpenSession(ctx, "op", model.Cents(int64(i)))
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apierror.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
}

func TestConcurrentRecords_TotalsReconcile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cs := f.open(t, 0)
	const n = 50

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sessions.RecordTransaction(ctx, cs.ID, record(model.TxProductSale, "0.10"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	totals, err := f.sessions.GetTotals(ctx, cs.ID)
	require.NoError(t, err)
	assert.Equal(t, "5.00", totals.Totals.ProductSale.StringFixed(2))
	txs, err := f.sessions.ListTransactions(ctx, cs.ID)
	require.NoError(t, err)
	assert.Len(t, txs, n)
}

func TestRecordRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cs := f.open(t, 1000)

	_, err := f.sessions.RecordTransaction(ctx, cs.ID, record(model.TxProductSale, "0"))
	assert.ErrorIs(t, err, apierror.ErrInvalidAmount)
	_, err = f.sessions.RecordTransaction(ctx, cs.ID, record(model.TxProductSale, "-3"))
	assert.ErrorIs(t, err, apierror.ErrInvalidAmount)
	_, err = f.sessions.RecordTransaction(ctx, cs.ID, record(model.TxProductSale, "1.005"))
	assert.ErrorIs(t, err, apierror.ErrInvalidAmount)
	_, err = f.sessions.RecordTransaction(ctx, cs.ID, record(model.TxProductSale, "184467440737095517.16"))
	assert.ErrorIs(t, err, apierror.ErrInvalidAmount)
	_, err = f.sessions.RecordTransaction(ctx, cs.ID, record(model.TxProductSale, "1000000000.01"))
	assert.ErrorIs(t, err, apierror.ErrInvalidAmount)
	_, err = f.sessions.RecordTransaction(ctx, uuid.New(), record(model.TxProductSale, "1"))
	assert.ErrorIs(t, err, apierror.ErrNotFound)

	bad := record(model.TxProductSale, "1")
	bad.PaymentMethod = "cheque"
	_, err = f.sessions.RecordTransaction(ctx, cs.ID, bad)
	assert.ErrorIs(t, err, apierror.ErrInvalidInput)

	totals, err := f.sessions.GetTotals(ctx, cs.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", totals.FinalValue.StringFixed(2))

	_, err = f.sessions.CloseSession(ctx, cs.ID, "op1")
	require.NoError(t, err)
	_, err = f.sessions.RecordTransaction(ctx, cs.ID, record(model.TxProductSale, "1"))
	assert.ErrorIs(t, err, apierror.ErrInvalidState)
}

func TestCloseTwiceIsInvalidState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cs := f.open(t, 0)
	_, err := f.sessions.CloseSession(ctx, cs.ID, "op1")
	require.NoError(t, err)
	_, err = f.sessions.CloseSession(ctx, cs.ID, "op1")
	assert.ErrorIs(t, err, apierror.ErrInvalidState)
}

func TestReopenRequiresPrivilegeAndKeepsTotals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cs := f.open(t, 5000)
	_, err := f.sessions.RecordTransaction(ctx, cs.ID, record(model.TxVehicleEntry, "12"))
	require.NoError(t, err)
	_, err = f.sessions.CloseSession(ctx, cs.ID, "op1")
	require.NoError(t, err)

	_, err = f.sessions.ReopenSession(ctx, cs.ID, "op1", model.RoleOperator)
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)

	reopened, err := f.sessions.ReopenSession(ctx, cs.ID, "sup", model.RoleSupervisor)
	require.NoError(t, err)
	assert.Equal(t, model.SessionOpen, reopened.Status)
	assert.Nil(t, reopened.ClosedAt)
	assert.Equal(t, model.Money(1200), reopened.TotalVehicleEntry)

	// close again: same final value
	snap, err := f.sessions.CloseSession(ctx, cs.ID, "op1")
	require.NoError(t, err)
	assert.Equal(t, "62.00", snap.FinalValue.StringFixed(2))
}

func TestReopenBlockedByAnotherOpenSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.open(t, 0)
	_, err := f.sessions.CloseSession(ctx, first.ID, "op1")
	require.NoError(t, err)
	f.open(t, 0)

	_, err = f.sessions.ReopenSession(ctx, first.ID, "admin", model.RoleAdmin)
	assert.ErrorIs(t, err, apierror.ErrConflict)

	got, err := f.sessions.GetSession(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionClosed, got.Status)
}

func TestReverseTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cs := f.open(t, 0)
	sale, err := f.sessions.RecordTransaction(ctx, cs.ID, record(model.TxProductSale, "30"))
	require.NoError(t, err)
	expense, err := f.sessions.RecordTransaction(ctx, cs.ID, record(model.TxOutgoingExpense, "4"))
	require.NoError(t, err)

	_, err = f.sessions.ReverseTransaction(ctx, cs.ID, sale.ID, "op1", model.RoleOperator, "wrong item")
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)

	rev, err := f.sessions.ReverseTransaction(ctx, cs.ID, sale.ID, "sup", model.RoleSupervisor, "wrong item")
	require.NoError(t, err)
	require.NotNil(t, rev.ReversalOf)
	assert.Equal(t, sale.ID, *rev.ReversalOf)
	assert.Equal(t, sale.Amount, rev.Amount)

	_, err = f.sessions.ReverseTransaction(ctx, cs.ID, sale.ID, "sup", model.RoleSupervisor, "again")
	assert.ErrorIs(t, err, apierror.ErrInvalidState)
	_, err = f.sessions.ReverseTransaction(ctx, cs.ID, rev.ID, "sup", model.RoleSupervisor, "undo undo")
	assert.ErrorIs(t, err, apierror.ErrInvalidState)

	_, err = f.sessions.ReverseTransaction(ctx, cs.ID, expense.ID, "sup", model.RoleAdmin, "refund")
	require.NoError(t, err)

	totals, err := f.sessions.GetTotals(ctx, cs.ID)
	require.NoError(t, err)
	assert.True(t, totals.Totals.ProductSale.IsZero())
	assert.True(t, totals.Totals.OutgoingExpense.IsZero())
	assert.True(t, totals.FinalValue.IsZero())

	breakdown, err := f.sessions.GetBreakdown(ctx, cs.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, breakdown.Count)
	assert.True(t, breakdown.ByType[string(model.TxProductSale)].IsZero())
	assert.True(t, breakdown.ByMethod[string(model.PaymentCash)].IsZero())
}

func TestCorrectInitialValue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cs := f.open(t, 1000)

	_, err := f.sessions.CorrectInitialValue(ctx, cs.ID, 1500, "op1", model.RoleOperator)
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)

	updated, err := f.sessions.CorrectInitialValue(ctx, cs.ID, 1500, "admin", model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.Money(1500), updated.InitialValue)
}

func TestAuditTrailKeepsRejectedAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cs := f.open(t, 0)
	f.clock.Advance(time.Minute)
	_, err := f.sessions.ReopenSession(ctx, cs.ID, "sup", model.RoleSupervisor)
	require.Error(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.sessions.CloseSession(ctx, cs.ID, "op1")
	require.NoError(t, err)

	trail, err := f.sessions.AuditTrail(ctx, cs.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)

	assert.Equal(t, model.AuditOpen, trail[0].Action)
	assert.True(t, trail[0].Accepted)

	assert.Equal(t, model.AuditReopen, trail[1].Action)
	assert.False(t, trail[1].Accepted)
	assert.Equal(t, model.SessionOpen, trail[1].FromStatus)
	assert.NotEmpty(t, trail[1].Reason)

	assert.Equal(t, model.AuditClose, trail[2].Action)
	assert.Equal(t, model.SessionOpen, trail[2].FromStatus)
	assert.Equal(t, model.SessionClosed, trail[2].ToStatus)
}

func TestPublishFailureDoesNotUndoMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.events.fail = true

	cs := f.open(t, 100)
	got, err := f.sessions.GetActiveSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, cs.ID, got.ID)
}

// lockCheckingPublisher records, for every event, whether the registry write
// lock was free at publish time.
type lockCheckingPublisher struct {
	reg  *Registry
	free []bool
}

func (p *lockCheckingPublisher) Publish(_ context.Context, _ model.SessionEvent) error {
	ok := p.reg.mu.TryLock()
	if ok {
		p.reg.mu.Unlock()
	}
	p.free = append(p.free, ok)
	return nil
}

func TestEventsArePublishedOutsideTheLock(t *testing.T) {
	ctx := context.Background()
	pub := &lockCheckingPublisher{}
	reg := NewRegistry(memory.New(), clock.NewFixed(start), pub)
	pub.reg = reg
	sessions := NewSessionService(reg)

	cs, err := sessions.OpenSession(ctx, "op1", 1000)
	require.NoError(t, err)
	_, err = sessions.RecordTransaction(ctx, cs.ID, record(model.TxProductSale, "5"))
	require.NoError(t, err)
	_, err = sessions.CloseSession(ctx, cs.ID, "op1")
	require.NoError(t, err)

	require.Len(t, pub.free, 3)
	for i, free := range pub.free {
		assert.True(t, free, "event %d published while the registry was locked", i)
	}
}

func TestHistoryPaginates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for range 3 {
		cs := f.open(t, 0)
		_, err := f.sessions.CloseSession(ctx, cs.ID, "op1")
		require.NoError(t, err)
		f.clock.Advance(time.Hour)
	}

	page, err := f.sessions.History(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, start.Add(2*time.Hour), page.Data[0].OpenedAt)
}
