// Package memory is an in-process repository.Store used for development
// (STORAGE_DRIVER=memory) and by the service and handler tests. It enforces
// the same uniqueness rules as the Postgres schema.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/repository"

	"github.com/google/uuid"
)

type data struct {
	sessions     map[uuid.UUID]model.CashSession
	transactions map[uuid.UUID]model.Transaction
	audit        []model.AuditEntry
	vehicles     map[uuid.UUID]model.VehicleEntry
	rules        map[uuid.UUID]model.BillingRule
}

func newData() *data {
	return &data{
		sessions:     make(map[uuid.UUID]model.CashSession),
		transactions: make(map[uuid.UUID]model.Transaction),
		vehicles:     make(map[uuid.UUID]model.VehicleEntry),
		rules:        make(map[uuid.UUID]model.BillingRule),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.sessions {
		c.sessions[k] = *v.Clone()
	}
	for k, v := range d.transactions {
		c.transactions[k] = v
	}
	c.audit = append(c.audit, d.audit...)
	for k, v := range d.vehicles {
		c.vehicles[k] = v
	}
	for k, v := range d.rules {
		c.rules[k] = v
	}
	return c
}

// Store keeps everything in maps guarded by one RWMutex. Transactions write
// into the live maps and restore a snapshot on failure, so txMu keeps every
// access from outside a transaction waiting until the running one has
// committed or rolled back.
type Store struct {
	mu   *sync.RWMutex
	txMu *sync.RWMutex
	d    **data
	inTx bool
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	d := newData()
	return &Store{mu: &sync.RWMutex{}, txMu: &sync.RWMutex{}, d: &d}
}

func (s *Store) Sessions() repository.SessionRepository         { return sessionRepo{s} }
func (s *Store) Vehicles() repository.VehicleRepository         { return vehicleRepo{s} }
func (s *Store) BillingRules() repository.BillingRuleRepository { return ruleRepo{s} }

// Transaction serializes units of work and restores the previous state when
// fn fails. Nested calls join the outer unit.
func (s *Store) Transaction(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := (*s.d).clone()
	s.mu.RUnlock()

	inner := &Store{mu: s.mu, txMu: s.txMu, d: s.d, inTx: true}
	if err := fn(inner); err != nil {
		s.mu.Lock()
		*s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) read() (*data, func()) {
	if s.inTx {
		s.mu.RLock()
		return *s.d, s.mu.RUnlock
	}
	s.txMu.RLock()
	s.mu.RLock()
	return *s.d, func() {
		s.mu.RUnlock()
		s.txMu.RUnlock()
	}
}

// write outside a transaction excludes transactions entirely: a rollback
// would otherwise discard it along with the failed unit.
func (s *Store) write() (*data, func()) {
	if s.inTx {
		s.mu.Lock()
		return *s.d, s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return *s.d, func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, apierror.ErrNotFound)
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) CreateSession(_ context.Context, cs *model.CashSession) error {
	d, unlock := r.s.write()
	defer unlock()
	if _, ok := d.sessions[cs.ID]; ok {
		return fmt.Errorf("%w: session %s already exists", apierror.ErrConflict, cs.ID)
	}
	if cs.Status == model.SessionOpen && openSessionExcept(d, cs.ID) {
		return fmt.Errorf("%w: %w: another session is already open", apierror.ErrConflict, apierror.ErrInvalidState)
	}
	d.sessions[cs.ID] = *cs.Clone()
	return nil
}

func (r sessionRepo) UpdateSession(_ context.Context, cs *model.CashSession, expectedVersion int64) error {
	d, unlock := r.s.write()
	defer unlock()
	stored, ok := d.sessions[cs.ID]
	if !ok {
		return notFound("session", cs.ID)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%w: session %s was modified concurrently", apierror.ErrConflict, cs.ID)
	}
	if cs.Status == model.SessionOpen && openSessionExcept(d, cs.ID) {
		return fmt.Errorf("%w: %w: another session is already open", apierror.ErrConflict, apierror.ErrInvalidState)
	}
	d.sessions[cs.ID] = *cs.Clone()
	return nil
}

func openSessionExcept(d *data, id uuid.UUID) bool {
	for sid, cs := range d.sessions {
		if sid != id && cs.Status == model.SessionOpen {
			return true
		}
	}
	return false
}

func (r sessionRepo) FindSessionByID(_ context.Context, id uuid.UUID) (*model.CashSession, error) {
	d, unlock := r.s.read()
	defer unlock()
	cs, ok := d.sessions[id]
	if !ok {
		return nil, notFound("session", id)
	}
	return cs.Clone(), nil
}

func (r sessionRepo) FindOpenSession(_ context.Context) (*model.CashSession, error) {
	d, unlock := r.s.read()
	defer unlock()
	for _, cs := range d.sessions {
		if cs.Status == model.SessionOpen {
			return cs.Clone(), nil
		}
	}
	return nil, notFound("open session", "")
}

func (r sessionRepo) ListSessions(_ context.Context, page, limit int) ([]model.CashSession, int64, error) {
	d, unlock := r.s.read()
	defer unlock()
	all := make([]model.CashSession, 0, len(d.sessions))
	for _, cs := range d.sessions {
		all = append(all, *cs.Clone())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OpenedAt.After(all[j].OpenedAt) })
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return []model.CashSession{}, total, nil
	}
	end := min(start+limit, len(all))
	return all[start:end], total, nil
}

func (r sessionRepo) CreateTransaction(_ context.Context, t *model.Transaction) error {
	d, unlock := r.s.write()
	defer unlock()
	if t.ReversalOf != nil {
		for _, existing := range d.transactions {
			if existing.ReversalOf != nil && *existing.ReversalOf == *t.ReversalOf {
				return fmt.Errorf("%w: reversal for transaction already exists", apierror.ErrConflict)
			}
		}
	}
	d.transactions[t.ID] = *t
	return nil
}

func (r sessionRepo) FindTransactionByID(_ context.Context, id uuid.UUID) (*model.Transaction, error) {
	d, unlock := r.s.read()
	defer unlock()
	t, ok := d.transactions[id]
	if !ok {
		return nil, notFound("transaction", id)
	}
	return &t, nil
}

func (r sessionRepo) FindReversalOf(_ context.Context, id uuid.UUID) (*model.Transaction, error) {
	d, unlock := r.s.read()
	defer unlock()
	for _, t := range d.transactions {
		if t.ReversalOf != nil && *t.ReversalOf == id {
			return &t, nil
		}
	}
	return nil, notFound("reversal of", id)
}

func (r sessionRepo) ListTransactions(_ context.Context, sessionID uuid.UUID) ([]model.Transaction, error) {
	d, unlock := r.s.read()
	defer unlock()
	var out []model.Transaction
	for _, t := range d.transactions {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r sessionRepo) AppendAudit(_ context.Context, e *model.AuditEntry) error {
	d, unlock := r.s.write()
	defer unlock()
	d.audit = append(d.audit, *e)
	return nil
}

func (r sessionRepo) ListAudit(_ context.Context, sessionID uuid.UUID) ([]model.AuditEntry, error) {
	d, unlock := r.s.read()
	defer unlock()
	var out []model.AuditEntry
	for _, e := range d.audit {
		if e.SessionID != nil && *e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

type vehicleRepo struct{ s *Store }

func (r vehicleRepo) Create(_ context.Context, v *model.VehicleEntry) error {
	d, unlock := r.s.write()
	defer unlock()
	if v.Status == model.VehicleInside {
		for _, existing := range d.vehicles {
			if existing.Status == model.VehicleInside && existing.Plate == v.Plate {
				return fmt.Errorf("%w: vehicle inside with plate %s already exists", apierror.ErrConflict, v.Plate)
			}
		}
	}
	d.vehicles[v.ID] = *v
	return nil
}

func (r vehicleRepo) Transition(_ context.Context, v *model.VehicleEntry, from model.VehicleStatus) error {
	d, unlock := r.s.write()
	defer unlock()
	stored, ok := d.vehicles[v.ID]
	if !ok {
		return notFound("vehicle entry", v.ID)
	}
	if stored.Status != from {
		return fmt.Errorf("%w: vehicle entry %s is no longer %s", apierror.ErrInvalidState, v.ID, from)
	}
	d.vehicles[v.ID] = *v
	return nil
}

func (r vehicleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.VehicleEntry, error) {
	d, unlock := r.s.read()
	defer unlock()
	v, ok := d.vehicles[id]
	if !ok {
		return nil, notFound("vehicle entry", id)
	}
	return &v, nil
}

func (r vehicleRepo) FindInsideByPlate(_ context.Context, plate string) (*model.VehicleEntry, error) {
	d, unlock := r.s.read()
	defer unlock()
	for _, v := range d.vehicles {
		if v.Status == model.VehicleInside && v.Plate == plate {
			return &v, nil
		}
	}
	return nil, notFound("vehicle with plate", plate)
}

func (r vehicleRepo) ListInside(_ context.Context, category *model.VehicleCategory) ([]model.VehicleEntry, error) {
	d, unlock := r.s.read()
	defer unlock()
	var out []model.VehicleEntry
	for _, v := range d.vehicles {
		if v.Status != model.VehicleInside {
			continue
		}
		if category != nil && v.Category != *category {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryTime.Before(out[j].EntryTime) })
	return out, nil
}

func (r vehicleRepo) CountInsideByCategory(_ context.Context) (map[model.VehicleCategory]int, error) {
	d, unlock := r.s.read()
	defer unlock()
	counts := make(map[model.VehicleCategory]int)
	for _, v := range d.vehicles {
		if v.Status == model.VehicleInside {
			counts[v.Category]++
		}
	}
	return counts, nil
}

type ruleRepo struct{ s *Store }

func (r ruleRepo) Create(_ context.Context, rule *model.BillingRule) error {
	d, unlock := r.s.write()
	defer unlock()
	if rule.IsActive && activeRuleExcept(d, rule.VehicleCategory, rule.ID) {
		return fmt.Errorf("%w: active billing rule already exists", apierror.ErrConflict)
	}
	d.rules[rule.ID] = *rule
	return nil
}

func (r ruleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.BillingRule, error) {
	d, unlock := r.s.read()
	defer unlock()
	rule, ok := d.rules[id]
	if !ok {
		return nil, notFound("billing rule", id)
	}
	return &rule, nil
}

func (r ruleRepo) FindActive(_ context.Context, category model.VehicleCategory) (*model.BillingRule, error) {
	d, unlock := r.s.read()
	defer unlock()
	for _, rule := range d.rules {
		if rule.IsActive && rule.VehicleCategory == category {
			return &rule, nil
		}
	}
	return nil, notFound("active billing rule for", category)
}

func (r ruleRepo) List(_ context.Context, category *model.VehicleCategory) ([]model.BillingRule, error) {
	d, unlock := r.s.read()
	defer unlock()
	var out []model.BillingRule
	for _, rule := range d.rules {
		if category == nil || rule.VehicleCategory == *category {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r ruleRepo) DeactivateCategory(_ context.Context, category model.VehicleCategory) error {
	d, unlock := r.s.write()
	defer unlock()
	for id, rule := range d.rules {
		if rule.VehicleCategory == category && rule.IsActive {
			rule.IsActive = false
			d.rules[id] = rule
		}
	}
	return nil
}

func (r ruleRepo) SetActive(_ context.Context, id uuid.UUID) error {
	d, unlock := r.s.write()
	defer unlock()
	rule, ok := d.rules[id]
	if !ok {
		return notFound("billing rule", id)
	}
	if activeRuleExcept(d, rule.VehicleCategory, id) {
		return fmt.Errorf("%w: active billing rule already exists", apierror.ErrConflict)
	}
	rule.IsActive = true
	d.rules[id] = rule
	return nil
}

func activeRuleExcept(d *data, category model.VehicleCategory, id uuid.UUID) bool {
	for rid, rule := range d.rules {
		if rid != id && rule.IsActive && rule.VehicleCategory == category {
			return true
		}
	}
	return false
}
