package repository

import (
	"context"
	"fmt"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VehicleRepository persists vehicle entries. Entries are soft-deleted via
// status; rows are never removed.
type VehicleRepository interface {
	Create(ctx context.Context, v *model.VehicleEntry) error
	// Transition writes v only if the stored entry is still in status from;
	// otherwise it fails with ErrInvalidState.
	Transition(ctx context.Context, v *model.VehicleEntry, from model.VehicleStatus) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.VehicleEntry, error)
	FindInsideByPlate(ctx context.Context, plate string) (*model.VehicleEntry, error)
	// ListInside returns parked vehicles; a nil category means all.
	ListInside(ctx context.Context, category *model.VehicleCategory) ([]model.VehicleEntry, error)
	CountInsideByCategory(ctx context.Context) (map[model.VehicleCategory]int, error)
}

type vehicleRepo struct{ db *gorm.DB }

func (r *vehicleRepo) Create(ctx context.Context, v *model.VehicleEntry) error {
	return duplicate(r.db.WithContext(ctx).Create(v).Error, "vehicle inside with plate "+v.Plate)
}

func (r *vehicleRepo) Transition(ctx context.Context, v *model.VehicleEntry, from model.VehicleStatus) error {
	res := r.db.WithContext(ctx).Model(&model.VehicleEntry{}).
		Where("id = ? AND status = ?", v.ID, from).
		Select("*").
		Updates(v)
	if res.Error != nil {
		return duplicate(res.Error, "vehicle inside with plate "+v.Plate)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: vehicle entry %s is no longer %s", apierror.ErrInvalidState, v.ID, from)
	}
	return nil
}

func (r *vehicleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.VehicleEntry, error) {
	var v model.VehicleEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, notFound(err, "vehicle entry", id)
	}
	return &v, nil
}

func (r *vehicleRepo) FindInsideByPlate(ctx context.Context, plate string) (*model.VehicleEntry, error) {
	var v model.VehicleEntry
	err := r.db.WithContext(ctx).
		Where("plate = ? AND status = ?", plate, model.VehicleInside).
		First(&v).Error
	if err != nil {
		return nil, notFound(err, "vehicle with plate", plate)
	}
	return &v, nil
}

func (r *vehicleRepo) ListInside(ctx context.Context, category *model.VehicleCategory) ([]model.VehicleEntry, error) {
	var entries []model.VehicleEntry
	q := r.db.WithContext(ctx).Where("status = ?", model.VehicleInside)
	if category != nil {
		q = q.Where("category = ?", *category)
	}
	err := q.Order("entry_time ASC").Find(&entries).Error
	return entries, err
}

func (r *vehicleRepo) CountInsideByCategory(ctx context.Context) (map[model.VehicleCategory]int, error) {
	var rows []struct {
		Category model.VehicleCategory
		Count    int
	}
	err := r.db.WithContext(ctx).Model(&model.VehicleEntry{}).
		Select("category, COUNT(*) AS count").
		Where("status = ?", model.VehicleInside).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[model.VehicleCategory]int, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Count
	}
	return counts, nil
}
