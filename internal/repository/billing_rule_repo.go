package repository

import (
	"context"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BillingRuleRepository stores pricing rules keyed by vehicle category.
type BillingRuleRepository interface {
	Create(ctx context.Context, r *model.BillingRule) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.BillingRule, error)
	FindActive(ctx context.Context, category model.VehicleCategory) (*model.BillingRule, error)
	// List returns rules newest first; a nil category means all.
	List(ctx context.Context, category *model.VehicleCategory) ([]model.BillingRule, error)
	// DeactivateCategory clears the active flag on every rule of category.
	DeactivateCategory(ctx context.Context, category model.VehicleCategory) error
	SetActive(ctx context.Context, id uuid.UUID) error
}

type billingRuleRepo struct{ db *gorm.DB }

func (r *billingRuleRepo) Create(ctx context.Context, rule *model.BillingRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *billingRuleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.BillingRule, error) {
	var rule model.BillingRule
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error; err != nil {
		return nil, notFound(err, "billing rule", id)
	}
	return &rule, nil
}

func (r *billingRuleRepo) FindActive(ctx context.Context, category model.VehicleCategory) (*model.BillingRule, error) {
	var rule model.BillingRule
	err := r.db.WithContext(ctx).
		Where("vehicle_category = ? AND is_active = ?", category, true).
		First(&rule).Error
	if err != nil {
		return nil, notFound(err, "active billing rule for", category)
	}
	return &rule, nil
}

func (r *billingRuleRepo) List(ctx context.Context, category *model.VehicleCategory) ([]model.BillingRule, error) {
	var rules []model.BillingRule
	q := r.db.WithContext(ctx)
	if category != nil {
		q = q.Where("vehicle_category = ?", *category)
	}
	err := q.Order("created_at DESC").Find(&rules).Error
	return rules, err
}

func (r *billingRuleRepo) DeactivateCategory(ctx context.Context, category model.VehicleCategory) error {
	return r.db.WithContext(ctx).Model(&model.BillingRule{}).
		Where("vehicle_category = ? AND is_active = ?", category, true).
		Update("is_active", false).Error
}

func (r *billingRuleRepo) SetActive(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&model.BillingRule{}).Where("id = ?", id).Update("is_active", true)
	if res.Error != nil {
		return duplicate(res.Error, "active billing rule")
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "billing rule", id)
	}
	return nil
}
