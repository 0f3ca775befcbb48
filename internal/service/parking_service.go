package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/billing"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/capacity"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/dto"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/metrics"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ParkingService runs the vehicle flow: entries occupy a spot and may charge a
// prepaid amount, exits are priced by the billing rule bound at entry and
// charged into the active cash session.
type ParkingService interface {
	RegisterEntry(ctx context.Context, sessionID uuid.UUID, req dto.RegisterEntryRequest, actor string) (*dto.VehicleResponse, error)
	RegisterExit(ctx context.Context, sessionID, entryID uuid.UUID, req dto.RegisterExitRequest, actor string) (*dto.ExitReceipt, error)
	QuoteExit(ctx context.Context, entryID uuid.UUID) (*dto.FeeResponse, error)
	DeleteEntry(ctx context.Context, entryID uuid.UUID, actor, role string) error
	ListInside(ctx context.Context, category *model.VehicleCategory) ([]model.VehicleEntry, error)
	GetCapacity(category model.VehicleCategory) capacity.Snapshot
	GetAllCapacity() []capacity.Snapshot
	// SyncCapacity reseeds the tracker from the INSIDE entries in the store.
	SyncCapacity(ctx context.Context) error
}

type parkingService struct {
	reg     *Registry
	tracker *capacity.Tracker
}

func NewParkingService(reg *Registry, tracker *capacity.Tracker) ParkingService {
	return &parkingService{reg: reg, tracker: tracker}
}

// ── Entry ─────────────────────────────────────────────────────────────────────

func (s *parkingService) RegisterEntry(ctx context.Context, sessionID uuid.UUID, req dto.RegisterEntryRequest, actor string) (*dto.VehicleResponse, error) {
	plate := model.NormalizePlate(req.Plate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is required", apierror.ErrInvalidInput)
	}
	category, ok := model.ParseVehicleCategory(req.Category)
	if !ok {
		return nil, fmt.Errorf("%w: unknown vehicle category %q", apierror.ErrInvalidInput, req.Category)
	}
	prepaid, err := model.MoneyFromDecimal(req.Prepaid)
	if err != nil {
		return nil, err
	}
	if prepaid < 0 {
		return nil, fmt.Errorf("%w: prepaid amount must not be negative", apierror.ErrInvalidAmount)
	}
	method, err := parsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	var action model.AuditAction
	if prepaid > 0 {
		action = model.AuditRecord
	}

	var entry *model.VehicleEntry
	_, err = s.reg.mutate(ctx, sessionID, action, actor, func(u *unit) error {
		if err := requireOpen(u.session); err != nil {
			return err
		}
		if existing, err := u.tx.Vehicles().FindInsideByPlate(ctx, plate); err == nil {
			return fmt.Errorf("%w: vehicle %s is already inside since %s", apierror.ErrConflict, plate, existing.EntryTime.Format("15:04"))
		} else if !errors.Is(err, apierror.ErrNotFound) {
			return err
		}

		entry = &model.VehicleEntry{
			ID:          uuid.New(),
			Plate:       plate,
			Category:    category,
			EntryTime:   u.now,
			Status:      model.VehicleInside,
			SessionID:   u.session.ID,
			Prepaid:     prepaid,
			Observation: req.Observation,
			CreatedBy:   actor,
		}
		rule, err := u.tx.BillingRules().FindActive(ctx, category)
		switch {
		case err == nil:
			entry.BillingRuleID = &rule.ID
		case !errors.Is(err, apierror.ErrNotFound):
			return err
		}
		if err := u.tx.Vehicles().Create(ctx, entry); err != nil {
			return err
		}

		if prepaid > 0 {
			return u.record(&model.Transaction{
				Type:          model.TxVehicleEntry,
				Amount:        prepaid,
				PaymentMethod: method,
				Description:   "prepaid entry " + plate,
				ReferenceID:   &entry.ID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	snap := s.tracker.Occupy(category)
	metrics.OccupiedSpots.WithLabelValues(string(category)).Set(float64(snap.Occupied))
	if snap.OverCapacity {
		log.Warn().Str("category", string(category)).Int("occupied", snap.Occupied).Int("max", snap.Max).Msg("lot over capacity")
	}
	log.Info().Str("entry_id", entry.ID.String()).Str("plate", plate).Str("category", string(category)).Msg("vehicle entered")

	resp := VehicleToDTO(entry)
	resp.OverCapacity = snap.OverCapacity
	return &resp, nil
}

// ── Exit ──────────────────────────────────────────────────────────────────────

// RegisterExit prices the stay, marks the entry EXITED and records the charge.
// The fee is gross - discount - prepaid, floored at zero; a zero charge
// records no transaction.
func (s *parkingService) RegisterExit(ctx context.Context, sessionID, entryID uuid.UUID, req dto.RegisterExitRequest, actor string) (*dto.ExitReceipt, error) {
	discount, err := model.MoneyFromDecimal(req.Discount)
	if err != nil {
		return nil, err
	}
	method, err := parsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	var (
		entry   *model.VehicleEntry
		receipt *dto.ExitReceipt
	)
	_, err = s.reg.mutate(ctx, sessionID, model.AuditRecord, actor, func(u *unit) error {
		if err := requireOpen(u.session); err != nil {
			return err
		}
		var err error
		entry, err = u.tx.Vehicles().FindByID(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != model.VehicleInside {
			return fmt.Errorf("%w: vehicle %s is %s", apierror.ErrInvalidState, entry.Plate, entry.Status)
		}
		rule, err := ruleFor(ctx, u.tx, entry)
		if err != nil {
			return err
		}
		q, err := billing.Compute(entry.EntryTime, u.now, *rule)
		if err != nil {
			return err
		}
		afterDiscount := billing.ApplyDiscount(q.Fee, discount)
		charged := billing.ApplyDiscount(afterDiscount, entry.Prepaid)

		exit := u.now
		entry.ExitTime = &exit
		entry.Status = model.VehicleExited
		if err := u.tx.Vehicles().Transition(ctx, entry, model.VehicleInside); err != nil {
			return err
		}

		receipt = &dto.ExitReceipt{
			EntryID:         entry.ID.String(),
			Plate:           entry.Plate,
			EntryTime:       entry.EntryTime,
			ExitTime:        exit,
			ElapsedMinutes:  q.ElapsedMinutes,
			BillableMinutes: q.BillableMinutes,
			Units:           q.Units,
			GrossFee:        q.Fee.Decimal(),
			Discount:        (q.Fee - afterDiscount).Decimal(),
			Charged:         charged.Decimal(),
		}
		if charged == 0 {
			u.action = ""
			return nil
		}
		t := &model.Transaction{
			Type:          model.TxVehicleExitPayment,
			Amount:        charged,
			PaymentMethod: method,
			Description:   "exit " + entry.Plate,
			ReferenceID:   &entry.ID,
			Metadata: map[string]any{
				"plate":           entry.Plate,
				"rule_id":         rule.ID.String(),
				"elapsed_minutes": q.ElapsedMinutes,
				"gross_fee":       q.Fee.String(),
				"prepaid":         entry.Prepaid.String(),
			},
		}
		if err := u.record(t); err != nil {
			return err
		}
		id := t.ID.String()
		receipt.TransactionID = &id
		return nil
	})
	if err != nil {
		return nil, err
	}

	snap := s.tracker.Release(entry.Category)
	metrics.OccupiedSpots.WithLabelValues(string(entry.Category)).Set(float64(snap.Occupied))
	log.Info().Str("entry_id", entry.ID.String()).Str("plate", entry.Plate).Str("charged", receipt.Charged.StringFixed(2)).Msg("vehicle exited")
	return receipt, nil
}

// QuoteExit previews the fee for leaving now. Nothing is written.
func (s *parkingService) QuoteExit(ctx context.Context, entryID uuid.UUID) (*dto.FeeResponse, error) {
	store := s.reg.store
	entry, err := store.Vehicles().FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != model.VehicleInside {
		return nil, fmt.Errorf("%w: vehicle %s is %s", apierror.ErrInvalidState, entry.Plate, entry.Status)
	}
	rule, err := ruleFor(ctx, store, entry)
	if err != nil {
		return nil, err
	}
	q, err := billing.Compute(entry.EntryTime, s.reg.clock.Now(), *rule)
	if err != nil {
		return nil, err
	}
	q.Fee = billing.ApplyDiscount(q.Fee, entry.Prepaid)
	return quoteDTO(entry.Category, rule, q), nil
}

// ── Delete ────────────────────────────────────────────────────────────────────

// DeleteEntry soft-deletes a vehicle still inside, for entries registered by
// mistake. Any prepaid charge stays in the ledger; reverse it separately.
// The attempt is audited against the session the vehicle entered under and
// runs in the same critical section as RegisterExit.
func (s *parkingService) DeleteEntry(ctx context.Context, entryID uuid.UUID, actor, role string) error {
	found, err := s.reg.store.Vehicles().FindByID(ctx, entryID)
	if err != nil {
		return err
	}
	var entry *model.VehicleEntry
	_, err = s.reg.mutate(ctx, found.SessionID, model.AuditDeleteEntry, actor, func(u *unit) error {
		if !model.IsPrivileged(role) {
			return fmt.Errorf("%w: role %q cannot delete vehicle entries", apierror.ErrPermissionDenied, role)
		}
		var err error
		entry, err = u.tx.Vehicles().FindByID(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != model.VehicleInside {
			return fmt.Errorf("%w: vehicle %s is %s", apierror.ErrInvalidState, entry.Plate, entry.Status)
		}
		entry.Status = model.VehicleDeleted
		u.reason = "entry " + entry.ID.String() + " plate " + entry.Plate
		return u.tx.Vehicles().Transition(ctx, entry, model.VehicleInside)
	})
	if err != nil {
		return err
	}
	snap := s.tracker.Release(entry.Category)
	metrics.OccupiedSpots.WithLabelValues(string(entry.Category)).Set(float64(snap.Occupied))
	log.Info().Str("entry_id", entryID.String()).Str("plate", entry.Plate).Str("actor", actor).Msg("vehicle entry deleted")
	return nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *parkingService) ListInside(ctx context.Context, category *model.VehicleCategory) ([]model.VehicleEntry, error) {
	return s.reg.store.Vehicles().ListInside(ctx, category)
}

func (s *parkingService) GetCapacity(category model.VehicleCategory) capacity.Snapshot {
	return s.tracker.CapacityOf(category)
}

func (s *parkingService) GetAllCapacity() []capacity.Snapshot {
	return s.tracker.All()
}

func (s *parkingService) SyncCapacity(ctx context.Context) error {
	counts, err := s.reg.store.Vehicles().CountInsideByCategory(ctx)
	if err != nil {
		return err
	}
	s.tracker.Seed(counts)
	for _, snap := range s.tracker.All() {
		metrics.OccupiedSpots.WithLabelValues(string(snap.Category)).Set(float64(snap.Occupied))
	}
	return nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func requireOpen(cs *model.CashSession) error {
	if cs.Status != model.SessionOpen {
		return fmt.Errorf("%w: session %s is %s", apierror.ErrInvalidState, cs.ID, cs.Status)
	}
	return nil
}

// ruleFor returns the rule bound at entry, falling back to the active rule of
// the category when none was bound or it no longer exists.
func ruleFor(ctx context.Context, store repository.Store, entry *model.VehicleEntry) (*model.BillingRule, error) {
	if entry.BillingRuleID != nil {
		rule, err := store.BillingRules().FindByID(ctx, *entry.BillingRuleID)
		if err == nil {
			return rule, nil
		}
		if !errors.Is(err, apierror.ErrNotFound) {
			return nil, err
		}
	}
	return store.BillingRules().FindActive(ctx, entry.Category)
}

// VehicleToDTO renders an entry for the API.
func VehicleToDTO(v *model.VehicleEntry) dto.VehicleResponse {
	return dto.VehicleResponse{
		ID:          v.ID.String(),
		Plate:       v.Plate,
		Category:    string(v.Category),
		Status:      string(v.Status),
		EntryTime:   v.EntryTime,
		ExitTime:    v.ExitTime,
		SessionID:   v.SessionID.String(),
		Observation: v.Observation,
	}
}
