// Package capacity tracks occupied spots per vehicle category.
//
// Limits are advisory: occupying past the maximum is allowed and reported,
// never refused.
package capacity

import (
	"sync"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
)

// Snapshot is a point-in-time view of one category.
type Snapshot struct {
	Category     model.VehicleCategory `json:"category"`
	Max          int                   `json:"max"`
	Occupied     int                   `json:"occupied"`
	Free         int                   `json:"free"`
	OccupancyPct float64               `json:"occupancy_pct"`
	OverCapacity bool                  `json:"over_capacity"`
}

// Tracker holds the occupied counters. Safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	max      map[model.VehicleCategory]int
	occupied map[model.VehicleCategory]int
}

// NewTracker creates a tracker with the configured maximum per category.
func NewTracker(limits map[model.VehicleCategory]int) *Tracker {
	t := &Tracker{
		max:      make(map[model.VehicleCategory]int, len(limits)),
		occupied: make(map[model.VehicleCategory]int),
	}
	for c, n := range limits {
		t.max[c] = clampZero(n)
	}
	return t
}

// Seed replaces the occupied counters, typically with the count of INSIDE
// entries loaded at startup.
func (t *Tracker) Seed(occupied map[model.VehicleCategory]int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.occupied = make(map[model.VehicleCategory]int, len(occupied))
	for c, n := range occupied {
		t.occupied[c] = clampZero(n)
	}
}

// SetMax changes the configured maximum for a category.
func (t *Tracker) SetMax(c model.VehicleCategory, n int) {
	t.mu.Lock()
	t.max[c] = clampZero(n)
	t.mu.Unlock()
}

// Occupy records a vehicle entering category c and returns the new snapshot.
func (t *Tracker) Occupy(c model.VehicleCategory) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.occupied[c]++
	return t.snapshotLocked(c)
}

// Release records a vehicle leaving category c. The counter never goes below zero.
func (t *Tracker) Release(c model.VehicleCategory) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.occupied[c] > 0 {
		t.occupied[c]--
	}
	return t.snapshotLocked(c)
}

// CapacityOf returns the current snapshot for c.
func (t *Tracker) CapacityOf(c model.VehicleCategory) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked(c)
}

// All returns a snapshot per known category.
func (t *Tracker) All() []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Snapshot, 0, len(model.VehicleCategories))
	for _, c := range model.VehicleCategories {
		out = append(out, t.snapshotLocked(c))
	}
	return out
}

func (t *Tracker) snapshotLocked(c model.VehicleCategory) Snapshot {
	limit, occupied := t.max[c], t.occupied[c]
	s := Snapshot{
		Category:     c,
		Max:          limit,
		Occupied:     occupied,
		Free:         clampZero(limit - occupied),
		OverCapacity: occupied > limit,
	}
	if limit > 0 {
		s.OccupancyPct = float64(occupied) * 100 / float64(limit)
	}
	return s
}

func clampZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
