package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// VehicleCategory: CAR | MOTORCYCLE
type VehicleCategory string

const (
	VehicleCar        VehicleCategory = "CAR"
	VehicleMotorcycle VehicleCategory = "MOTORCYCLE"
)

// VehicleCategories lists every supported category in display order.
var VehicleCategories = []VehicleCategory{VehicleCar, VehicleMotorcycle}

// ParseVehicleCategory accepts any letter case.
func ParseVehicleCategory(s string) (VehicleCategory, bool) {
	c := VehicleCategory(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case VehicleCar, VehicleMotorcycle:
		return c, true
	}
	return "", false
}

// VehicleStatus: INSIDE | EXITED | DELETED
type VehicleStatus string

const (
	VehicleInside  VehicleStatus = "INSIDE"
	VehicleExited  VehicleStatus = "EXITED"
	VehicleDeleted VehicleStatus = "DELETED"
)

// VehicleEntry is a parked (or formerly parked) vehicle. It occupies a spot
// iff Status == INSIDE. ExitTime is set once, together with the exit payment.
type VehicleEntry struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Plate         string          `gorm:"type:varchar(16);not null;index"`
	Category      VehicleCategory `gorm:"type:varchar(16);not null;index"`
	EntryTime     time.Time       `gorm:"not null"`
	ExitTime      *time.Time
	BillingRuleID *uuid.UUID `gorm:"type:uuid"`
	// Prepaid was charged at entry and is credited against the exit fee.
	Prepaid     Money         `gorm:"type:bigint;not null;default:0"`
	Status      VehicleStatus `gorm:"type:varchar(16);not null;index"`
	SessionID   uuid.UUID     `gorm:"type:uuid;not null;index"`
	Observation string
	CreatedBy   string `gorm:"type:varchar(64);not null;default:''"`
	UpdatedAt   time.Time
}

func (VehicleEntry) TableName() string { return "vehicle_entries" }

// NormalizePlate upper-cases a plate and strips separators, so "abc-1d23"
// and "ABC 1D23" refer to the same vehicle.
func NormalizePlate(plate string) string {
	r := strings.NewReplacer("-", "", " ", "", ".", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(plate)))
}
