package repositories

import (
	"context"
	"time"

	"github.com/dermatlas/backend/internal/domain/entities"
)

// ClinicRepository defines the interface for clinic data operations.
// Upserts are keyed by place_id; a re-fetched clinic fully replaces the
// stored record (last-write-wins), matching the snapshot semantics of
// last_fetched_at.
type ClinicRepository interface {
	// Upsert inserts or replaces a clinic keyed by place_id
	Upsert(ctx context.Context, clinic *entities.Clinic) error

	// UpsertBatch upserts a full state's worth of clinics in one transaction
	UpsertBatch(ctx context.Context, clinics []*entities.Clinic) error

	// GetByPlaceID retrieves a clinic by its place identifier
	GetByPlaceID(ctx context.Context, placeID string) (*entities.Clinic, error)

	// List retrieves clinics with filters, ordered by state then name
	List(ctx context.Context, filter ClinicFilter) ([]*entities.Clinic, error)

	// ListStale retrieves place IDs last fetched on or before the cutoff day
	ListStale(ctx context.Context, cutoff time.Time) ([]string, error)

	// CountByState returns the number of stored clinics per state code
	CountByState(ctx context.Context) (map[string]int, error)
}

// ClinicFilter defines filters for listing clinics
type ClinicFilter struct {
	StateCode string
	City      string
	Limit     int
	Offset    int
}
