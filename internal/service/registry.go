package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/cash"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/clock"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/metrics"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventPublisher receives committed session events. Publishing is best
// effort: a failure is logged and never undoes the mutation.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.SessionEvent) error
}

// Registry owns the single-writer critical section over cash sessions. Every
// mutation of a session, whether it comes from the session endpoints or from
// the parking flow, runs under its write lock and inside one store transaction.
type Registry struct {
	mu     sync.RWMutex
	store  repository.Store
	clock  clock.Clock
	events EventPublisher
}

// NewRegistry wires the registry. events may be nil.
func NewRegistry(store repository.Store, clk clock.Clock, events EventPublisher) *Registry {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Registry{store: store, clock: clk, events: events}
}

// unit is the state handed to a mutation: the store bound to the running
// transaction, the loaded session and the events to publish after commit.
type unit struct {
	ctx     context.Context
	tx      repository.Store
	session *model.CashSession
	now     time.Time
	actor   string
	// action is the audited operation; empty means the mutation is not audited.
	action model.AuditAction
	reason string
	events []model.SessionEvent
}

func (u *unit) emit(typ model.EventType, txType model.TransactionType, amount model.Money) {
	u.events = append(u.events, model.SessionEvent{
		Type:       typ,
		SessionID:  u.session.ID,
		TxType:     txType,
		Amount:     amount,
		Actor:      u.actor,
		OccurredAt: u.now,
	})
}

// record folds t into the session totals and appends it to the log.
func (u *unit) record(t *model.Transaction) error {
	t.SessionID = u.session.ID
	t.CreatedAt = u.now
	if t.CreatedBy == "" {
		t.CreatedBy = u.actor
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if err := cash.Apply(u.session, t); err != nil {
		return err
	}
	if err := u.tx.Sessions().CreateTransaction(u.ctx, t); err != nil {
		return err
	}
	metrics.TransactionsRecorded.WithLabelValues(string(t.Type)).Inc()
	metrics.TransactionAmountCents.WithLabelValues(string(t.Type)).Add(float64(t.Amount))
	u.emit(model.EventTransactionRecorded, t.Type, t.SignedAmount())
	return nil
}

// mutate loads session id, runs fn and persists the session, the audit entry
// and whatever fn wrote, atomically. Rejected attempts are audited outside
// the rolled-back transaction. Events are published after the write lock is
// released.
func (r *Registry) mutate(ctx context.Context, id uuid.UUID, action model.AuditAction, actor string,
	fn func(u *unit) error) (*model.CashSession, error) {
	committed, err := r.commit(ctx, id, action, actor, fn)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, committed.events)
	return committed.session.Clone(), nil
}

func (r *Registry) commit(ctx context.Context, id uuid.UUID, action model.AuditAction, actor string,
	fn func(u *unit) error) (*unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	from := model.SessionNotCreated
	var committed *unit

	err := r.store.Transaction(ctx, func(tx repository.Store) error {
		cs, err := tx.Sessions().FindSessionByID(ctx, id)
		if err != nil {
			return err
		}
		from = cs.Status
		loaded := cs.Version

		u := &unit{ctx: ctx, tx: tx, session: cs, now: now, actor: actor, action: action}
		if err := fn(u); err != nil {
			action = u.action
			return err
		}
		if cs.Version != loaded {
			if err := tx.Sessions().UpdateSession(ctx, cs, loaded); err != nil {
				return err
			}
		}
		if u.action != "" {
			if err := tx.Sessions().AppendAudit(ctx, auditEntry(&id, u.action, from, cs.Status, actor, true, u.reason, now)); err != nil {
				return err
			}
		}
		committed = u
		return nil
	})
	if err != nil {
		if action != "" {
			r.reject(ctx, &id, action, from, actor, err, now)
		}
		return nil, err
	}

	if committed.action != "" {
		metrics.SessionTransitions.WithLabelValues(string(committed.action), "accepted").Inc()
		log.Info().
			Str("session_id", id.String()).
			Str("action", string(committed.action)).
			Str("actor", actor).
			Str("status", string(committed.session.Status)).
			Msg("cash session updated")
	}
	return committed, nil
}

// open creates the single OPEN session.
func (r *Registry) open(ctx context.Context, operatorID string, initial model.Money) (*model.CashSession, error) {
	opened, err := r.create(ctx, operatorID, initial)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, []model.SessionEvent{{
		Type: model.EventSessionOpened, SessionID: opened.ID, Actor: operatorID, OccurredAt: opened.OpenedAt,
	}})
	return opened.Clone(), nil
}

func (r *Registry) create(ctx context.Context, operatorID string, initial model.Money) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	var opened *model.CashSession
	err := r.store.Transaction(ctx, func(tx repository.Store) error {
		current, err := tx.Sessions().FindOpenSession(ctx)
		switch {
		case err == nil:
			return openConflict(current.ID)
		case !errors.Is(err, apierror.ErrNotFound):
			return err
		}
		cs, err := cash.Open(operatorID, initial, now)
		if err != nil {
			return err
		}
		if err := tx.Sessions().CreateSession(ctx, cs); err != nil {
			return err
		}
		opened = cs
		return tx.Sessions().AppendAudit(ctx, auditEntry(&cs.ID, model.AuditOpen, model.SessionNotCreated, model.SessionOpen, operatorID, true, "", now))
	})
	if err != nil {
		r.reject(ctx, nil, model.AuditOpen, model.SessionNotCreated, operatorID, err, now)
		return nil, err
	}

	metrics.SessionTransitions.WithLabelValues(string(model.AuditOpen), "accepted").Inc()
	metrics.SessionOpen.Set(1)
	log.Info().
		Str("session_id", opened.ID.String()).
		Str("actor", operatorID).
		Str("initial_value", opened.InitialValue.String()).
		Msg("cash session opened")
	return opened, nil
}

func openConflict(current uuid.UUID) error {
	return fmt.Errorf("%w: %w: session %s is already open", apierror.ErrConflict, apierror.ErrInvalidState, current)
}

// view runs fn under the read lock so totals are never observed mid-update.
func (r *Registry) view(fn func() error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn()
}

func (r *Registry) reject(ctx context.Context, id *uuid.UUID, action model.AuditAction, from model.SessionStatus,
	actor string, cause error, now time.Time) {
	metrics.SessionTransitions.WithLabelValues(string(action), "rejected").Inc()
	log.Warn().
		Str("action", string(action)).
		Str("actor", actor).
		Str("code", apierror.Code(cause)).
		Str("reason", cause.Error()).
		Msg("cash session operation rejected")

	entry := auditEntry(id, action, from, from, actor, false, cause.Error(), now)
	if err := r.store.Sessions().AppendAudit(ctx, entry); err != nil {
		log.Error().Err(err).Str("action", string(action)).Msg("failed to audit rejected operation")
	}
}

func (r *Registry) publish(ctx context.Context, events []model.SessionEvent) {
	if r.events == nil {
		return
	}
	for _, ev := range events {
		if err := r.events.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("event", string(ev.Type)).Str("session_id", ev.SessionID.String()).Msg("event not published")
		}
	}
}

func auditEntry(id *uuid.UUID, action model.AuditAction, from, to model.SessionStatus, actor string,
	accepted bool, reason string, now time.Time) *model.AuditEntry {
	return &model.AuditEntry{
		ID:         uuid.New(),
		SessionID:  id,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Accepted:   accepted,
		Reason:     reason,
		CreatedAt:  now,
	}
}
