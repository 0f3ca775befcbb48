package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/cash"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/dto"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/metrics"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SessionService interface {
	OpenSession(ctx context.Context, operatorID string, initial model.Money) (*model.CashSession, error)
	CloseSession(ctx context.Context, sessionID uuid.UUID, actor string) (*dto.FinalSnapshot, error)
	ReopenSession(ctx context.Context, sessionID uuid.UUID, actor, role string) (*model.CashSession, error)
	RecordTransaction(ctx context.Context, sessionID uuid.UUID, in dto.RecordTransaction) (*model.Transaction, error)
	ReverseTransaction(ctx context.Context, sessionID, txID uuid.UUID, actor, role, reason string) (*model.Transaction, error)
	CorrectInitialValue(ctx context.Context, sessionID uuid.UUID, value model.Money, actor, role string) (*model.CashSession, error)

	GetActiveSession(ctx context.Context) (*model.CashSession, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*model.CashSession, error)
	GetTotals(ctx context.Context, sessionID uuid.UUID) (*dto.TotalsResponse, error)
	GetBreakdown(ctx context.Context, sessionID uuid.UUID) (*dto.Breakdown, error)
	ListTransactions(ctx context.Context, sessionID uuid.UUID) ([]model.Transaction, error)
	History(ctx context.Context, page, limit int) (*dto.SessionListResponse, error)
	AuditTrail(ctx context.Context, sessionID uuid.UUID) ([]model.AuditEntry, error)
}

type sessionService struct {
	reg *Registry
}

func NewSessionService(reg *Registry) SessionService {
	return &sessionService{reg: reg}
}

// ── Transitions ───────────────────────────────────────────────────────────────

func (s *sessionService) OpenSession(ctx context.Context, operatorID string, initial model.Money) (*model.CashSession, error) {
	return s.reg.open(ctx, operatorID, initial)
}

func (s *sessionService) CloseSession(ctx context.Context, sessionID uuid.UUID, actor string) (*dto.FinalSnapshot, error) {
	var final model.Money
	cs, err := s.reg.mutate(ctx, sessionID, model.AuditClose, actor, func(u *unit) error {
		v, err := cash.Close(u.session, u.now)
		if err != nil {
			return err
		}
		final = v
		u.emit(model.EventSessionClosed, "", 0)
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.SessionOpen.Set(0)
	return &dto.FinalSnapshot{
		SessionID:    cs.ID.String(),
		InitialValue: cs.InitialValue.Decimal(),
		Totals:       totalsDTO(cs),
		FinalValue:   final.Decimal(),
		ClosedAt:     *cs.ClosedAt,
	}, nil
}

// ReopenSession moves a CLOSED session back to OPEN. The single-open rule is
// checked here as well as by the store, since another session may have been
// opened after this one was closed.
func (s *sessionService) ReopenSession(ctx context.Context, sessionID uuid.UUID, actor, role string) (*model.CashSession, error) {
	cs, err := s.reg.mutate(ctx, sessionID, model.AuditReopen, actor, func(u *unit) error {
		if err := cash.Reopen(u.session, role); err != nil {
			return err
		}
		current, err := u.tx.Sessions().FindOpenSession(ctx)
		switch {
		case err == nil:
			return openConflict(current.ID)
		case !errors.Is(err, apierror.ErrNotFound):
			return err
		}
		u.emit(model.EventSessionReopened, "", 0)
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.SessionOpen.Set(1)
	return cs, nil
}

// ── Ledger ────────────────────────────────────────────────────────────────────

func (s *sessionService) RecordTransaction(ctx context.Context, sessionID uuid.UUID, in dto.RecordTransaction) (*model.Transaction, error) {
	var recorded *model.Transaction
	_, err := s.reg.mutate(ctx, sessionID, model.AuditRecord, in.Actor, func(u *unit) error {
		t, err := buildTransaction(in)
		if err != nil {
			return err
		}
		if err := u.record(t); err != nil {
			return err
		}
		recorded = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

// ReverseTransaction appends a compensating row for txID and removes its
// contribution from the totals. The original row is never touched.
func (s *sessionService) ReverseTransaction(ctx context.Context, sessionID, txID uuid.UUID, actor, role, reason string) (*model.Transaction, error) {
	var reversal *model.Transaction
	_, err := s.reg.mutate(ctx, sessionID, model.AuditReverse, actor, func(u *unit) error {
		if !model.IsPrivileged(role) {
			return fmt.Errorf("%w: role %q cannot reverse transactions", apierror.ErrPermissionDenied, role)
		}
		original, err := u.tx.Sessions().FindTransactionByID(ctx, txID)
		if err != nil {
			return err
		}
		if original.SessionID != sessionID {
			return fmt.Errorf("transaction %s does not belong to session %s: %w", txID, sessionID, apierror.ErrNotFound)
		}
		if original.ReversalOf != nil {
			return fmt.Errorf("%w: transaction %s is itself a reversal", apierror.ErrInvalidState, txID)
		}
		if _, err := u.tx.Sessions().FindReversalOf(ctx, txID); err == nil {
			return fmt.Errorf("%w: transaction %s was already reversed", apierror.ErrInvalidState, txID)
		} else if !errors.Is(err, apierror.ErrNotFound) {
			return err
		}
		if err := cash.Revert(u.session, original); err != nil {
			return err
		}

		origID := original.ID
		reversal = &model.Transaction{
			ID:            uuid.New(),
			SessionID:     sessionID,
			Type:          original.Type,
			Amount:        original.Amount,
			PaymentMethod: original.PaymentMethod,
			Description:   reason,
			ReferenceID:   &origID,
			ReversalOf:    &origID,
			CreatedBy:     actor,
			CreatedAt:     u.now,
		}
		if err := u.tx.Sessions().CreateTransaction(ctx, reversal); err != nil {
			return err
		}
		u.reason = reason
		u.emit(model.EventTransactionReversed, reversal.Type, reversal.SignedAmount())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

func (s *sessionService) CorrectInitialValue(ctx context.Context, sessionID uuid.UUID, value model.Money, actor, role string) (*model.CashSession, error) {
	return s.reg.mutate(ctx, sessionID, model.AuditCorrect, actor, func(u *unit) error {
		previous := u.session.InitialValue
		if err := cash.CorrectInitialValue(u.session, value, role); err != nil {
			return err
		}
		u.reason = fmt.Sprintf("initial value %s -> %s", previous, value)
		return nil
	})
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *sessionService) GetActiveSession(ctx context.Context) (*model.CashSession, error) {
	var cs *model.CashSession
	err := s.reg.view(func() error {
		var err error
		cs, err = s.reg.store.Sessions().FindOpenSession(ctx)
		return err
	})
	return cs, err
}

func (s *sessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*model.CashSession, error) {
	var cs *model.CashSession
	err := s.reg.view(func() error {
		var err error
		cs, err = s.reg.store.Sessions().FindSessionByID(ctx, sessionID)
		return err
	})
	return cs, err
}

func (s *sessionService) GetTotals(ctx context.Context, sessionID uuid.UUID) (*dto.TotalsResponse, error) {
	cs, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &dto.TotalsResponse{
		SessionID:  cs.ID.String(),
		Status:     string(cs.Status),
		Totals:     totalsDTO(cs),
		FinalValue: balance(cs).Decimal(),
	}, nil
}

// GetBreakdown sums the transaction log on demand. Reversals carry negative
// signed amounts, so they cancel the reversed row in both groupings.
func (s *sessionService) GetBreakdown(ctx context.Context, sessionID uuid.UUID) (*dto.Breakdown, error) {
	var txs []model.Transaction
	err := s.reg.view(func() error {
		if _, err := s.reg.store.Sessions().FindSessionByID(ctx, sessionID); err != nil {
			return err
		}
		var err error
		txs, err = s.reg.store.Sessions().ListTransactions(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	byMethod := make(map[string]model.Money)
	byType := make(map[string]model.Money)
	for i := range txs {
		signed := txs[i].SignedAmount()
		byMethod[string(txs[i].PaymentMethod)] += signed
		byType[string(txs[i].Type)] += signed
	}
	return &dto.Breakdown{
		SessionID: sessionID.String(),
		ByMethod:  decimalMap(byMethod),
		ByType:    decimalMap(byType),
		Count:     len(txs),
	}, nil
}

func (s *sessionService) ListTransactions(ctx context.Context, sessionID uuid.UUID) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := s.reg.view(func() error {
		if _, err := s.reg.store.Sessions().FindSessionByID(ctx, sessionID); err != nil {
			return err
		}
		var err error
		txs, err = s.reg.store.Sessions().ListTransactions(ctx, sessionID)
		return err
	})
	return txs, err
}

func (s *sessionService) History(ctx context.Context, page, limit int) (*dto.SessionListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	sessions, total, err := s.reg.store.Sessions().ListSessions(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.SessionResponse, len(sessions))
	for i := range sessions {
		data[i] = SessionToDTO(&sessions[i])
	}
	return &dto.SessionListResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

func (s *sessionService) AuditTrail(ctx context.Context, sessionID uuid.UUID) ([]model.AuditEntry, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.reg.store.Sessions().ListAudit(ctx, sessionID)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func buildTransaction(in dto.RecordTransaction) (*model.Transaction, error) {
	amount, err := model.MoneyFromDecimal(in.Amount)
	if err != nil {
		return nil, err
	}
	method, err := parsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}
	t := &model.Transaction{
		Type:          model.TransactionType(in.Type),
		Amount:        amount,
		PaymentMethod: method,
		Description:   in.Description,
		CreatedBy:     in.Actor,
	}
	if in.ReferenceID != "" {
		ref, err := uuid.Parse(in.ReferenceID)
		if err != nil {
			return nil, fmt.Errorf("%w: reference_id %q is not a uuid", apierror.ErrInvalidInput, in.ReferenceID)
		}
		t.ReferenceID = &ref
	}
	if len(in.Metadata) > 0 {
		t.Metadata = in.Metadata
	}
	return t, nil
}

func parsePaymentMethod(s string) (model.PaymentMethod, error) {
	switch m := model.PaymentMethod(s); m {
	case "":
		return model.PaymentCash, nil
	case model.PaymentCash, model.PaymentDebit, model.PaymentCredit, model.PaymentPix, model.PaymentTransfer:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown payment method %q", apierror.ErrInvalidInput, s)
	}
}

// balance is the frozen final value once closed and the live one otherwise.
func balance(cs *model.CashSession) model.Money {
	if cs.FinalValue != nil {
		return *cs.FinalValue
	}
	return cash.FinalValue(cs)
}

func totalsDTO(cs *model.CashSession) dto.Totals {
	return dto.Totals{
		VehicleEntry:    cs.TotalVehicleEntry.Decimal(),
		ProductSale:     cs.TotalProductSale.Decimal(),
		OutgoingExpense: cs.TotalOutgoingExpense.Decimal(),
	}
}

func decimalMap(m map[string]model.Money) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v.Decimal()
	}
	return out
}

// SessionToDTO renders a session for the API.
func SessionToDTO(cs *model.CashSession) dto.SessionResponse {
	resp := dto.SessionResponse{
		ID:           cs.ID.String(),
		Status:       string(cs.Status),
		OperatorID:   cs.OperatorID,
		InitialValue: cs.InitialValue.Decimal(),
		Balance:      balance(cs).Decimal(),
		Totals:       totalsDTO(cs),
		OpenedAt:     cs.OpenedAt,
		ClosedAt:     cs.ClosedAt,
	}
	if cs.FinalValue != nil {
		v := cs.FinalValue.Decimal()
		resp.Final = &v
	}
	return resp
}

// TransactionToDTO renders a ledger row for the API.
func TransactionToDTO(t *model.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:            t.ID.String(),
		SessionID:     t.SessionID.String(),
		Type:          string(t.Type),
		Amount:        t.Amount.Decimal(),
		PaymentMethod: string(t.PaymentMethod),
		Description:   t.Description,
		CreatedBy:     t.CreatedBy,
		CreatedAt:     t.CreatedAt,
	}
	if t.ReferenceID != nil {
		v := t.ReferenceID.String()
		resp.ReferenceID = &v
	}
	if t.ReversalOf != nil {
		v := t.ReversalOf.String()
		resp.ReversalOf = &v
	}
	return resp
}
