package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/billing"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/clock"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/dto"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BillingService manages the billing rule table. At most one rule per
// category is active; exited vehicles keep the fee they were charged.
type BillingService interface {
	CreateRule(ctx context.Context, req dto.CreateBillingRuleRequest) (*model.BillingRule, error)
	ActivateRule(ctx context.Context, id uuid.UUID) (*model.BillingRule, error)
	ActiveRule(ctx context.Context, category model.VehicleCategory) (*model.BillingRule, error)
	ListRules(ctx context.Context, category *model.VehicleCategory) ([]model.BillingRule, error)
	ComputeFee(ctx context.Context, entry, exit time.Time, category model.VehicleCategory) (*dto.FeeResponse, error)
}

type billingService struct {
	store repository.Store
	clock clock.Clock
}

func NewBillingService(store repository.Store, clk clock.Clock) BillingService {
	if clk == nil {
		clk = clock.Real{}
	}
	return &billingService{store: store, clock: clk}
}

func (s *billingService) CreateRule(ctx context.Context, req dto.CreateBillingRuleRequest) (*model.BillingRule, error) {
	category, ok := model.ParseVehicleCategory(req.VehicleCategory)
	if !ok {
		return nil, fmt.Errorf("%w: unknown vehicle category %q", apierror.ErrInvalidInput, req.VehicleCategory)
	}
	price, err := model.MoneyFromDecimal(req.BasePrice)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	rule := &model.BillingRule{
		ID:               uuid.New(),
		VehicleCategory:  category,
		BasePrice:        price,
		BaseTimeMinutes:  req.BaseTimeMinutes,
		ToleranceMinutes: req.ToleranceMinutes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := billing.ValidateRule(*rule); err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.BillingRules().Create(ctx, rule); err != nil {
			return err
		}
		if req.Activate {
			return activate(ctx, tx, rule)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("rule_id", rule.ID.String()).
		Str("category", string(rule.VehicleCategory)).
		Str("base_price", rule.BasePrice.String()).
		Bool("active", rule.IsActive).
		Msg("billing rule created")
	return rule, nil
}

// ActivateRule makes id the active rule of its category, deactivating the
// previous one in the same transaction.
func (s *billingService) ActivateRule(ctx context.Context, id uuid.UUID) (*model.BillingRule, error) {
	var rule *model.BillingRule
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		rule, err = tx.BillingRules().FindByID(ctx, id)
		if err != nil {
			return err
		}
		return activate(ctx, tx, rule)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("rule_id", id.String()).Str("category", string(rule.VehicleCategory)).Msg("billing rule activated")
	return rule, nil
}

func activate(ctx context.Context, tx repository.Store, rule *model.BillingRule) error {
	if err := tx.BillingRules().DeactivateCategory(ctx, rule.VehicleCategory); err != nil {
		return err
	}
	if err := tx.BillingRules().SetActive(ctx, rule.ID); err != nil {
		return err
	}
	rule.IsActive = true
	return nil
}

func (s *billingService) ActiveRule(ctx context.Context, category model.VehicleCategory) (*model.BillingRule, error) {
	return s.store.BillingRules().FindActive(ctx, category)
}

func (s *billingService) ListRules(ctx context.Context, category *model.VehicleCategory) ([]model.BillingRule, error) {
	return s.store.BillingRules().List(ctx, category)
}

// ComputeFee prices a stay with the active rule of category.
func (s *billingService) ComputeFee(ctx context.Context, entry, exit time.Time, category model.VehicleCategory) (*dto.FeeResponse, error) {
	rule, err := s.ActiveRule(ctx, category)
	if err != nil {
		return nil, err
	}
	q, err := billing.Compute(entry, exit, *rule)
	if err != nil {
		return nil, err
	}
	return quoteDTO(category, rule, q), nil
}

func quoteDTO(category model.VehicleCategory, rule *model.BillingRule, q billing.Quote) *dto.FeeResponse {
	return &dto.FeeResponse{
		Category:        string(category),
		RuleID:          rule.ID.String(),
		ElapsedMinutes:  q.ElapsedMinutes,
		BillableMinutes: q.BillableMinutes,
		Units:           q.Units,
		Fee:             q.Fee.Decimal(),
	}
}

// BillingRuleToDTO renders a rule for the API.
func BillingRuleToDTO(r *model.BillingRule) dto.BillingRuleResponse {
	return dto.BillingRuleResponse{
		ID:               r.ID.String(),
		VehicleCategory:  string(r.VehicleCategory),
		BasePrice:        r.BasePrice.Decimal(),
		BaseTimeMinutes:  r.BaseTimeMinutes,
		ToleranceMinutes: r.ToleranceMinutes,
		IsActive:         r.IsActive,
		CreatedAt:        r.CreatedAt,
	}
}
