package services

import (
	"sync"

	"github.com/dermatlas/backend/internal/domain/entities"
)

// DedupCollector merges normalized clinics from every strategy, page, and
// state of one run into a single set keyed by place_id. The same business is
// commonly discoverable through several state queries or neighboring grid
// cells; the first successfully classified and normalized candidate wins.
type DedupCollector struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	clinics []*entities.Clinic
}

// NewDedupCollector creates an empty collector for one run
func NewDedupCollector() *DedupCollector {
	return &DedupCollector{
		seen: make(map[string]struct{}),
	}
}

// Add inserts the clinic unless its place_id was already collected. It
// returns true exactly once per place_id per run.
func (c *DedupCollector) Add(clinic *entities.Clinic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[clinic.PlaceID]; ok {
		return false
	}
	c.seen[clinic.PlaceID] = struct{}{}
	c.clinics = append(c.clinics, clinic)
	return true
}

// Seen reports whether the place_id was already collected
func (c *DedupCollector) Seen(placeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[placeID]
	return ok
}

// Len returns the number of collected clinics
func (c *DedupCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clinics)
}

// Clinics returns the collected clinics in first-insertion order. Callers
// needing a stable output order must sort separately.
func (c *DedupCollector) Clinics() []*entities.Clinic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*entities.Clinic, len(c.clinics))
	copy(out, c.clinics)
	return out
}
