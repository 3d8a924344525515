package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dermatlas/backend/internal/domain/entities"
	"github.com/dermatlas/backend/internal/domain/providers"
	"github.com/dermatlas/backend/internal/domain/repositories"
)

// CachedClinicAdapter wraps a ClinicRepository with read-through caching.
// The directory site reads far more often than the pipeline writes, so
// single-clinic lookups and list pages are served from cache between runs.
type CachedClinicAdapter struct {
	adapter repositories.ClinicRepository
	cache   providers.CacheProvider
}

// NewCachedClinicAdapter creates a new cached clinic adapter
func NewCachedClinicAdapter(adapter repositories.ClinicRepository, cache providers.CacheProvider) repositories.ClinicRepository {
	return &CachedClinicAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Cache TTLs (in seconds)
const (
	clinicByIDTTL  = 300
	clinicsListTTL = 180
	stateCountsTTL = 300
)

func clinicCacheKey(placeID string) string {
	return fmt.Sprintf("clinic:%s", placeID)
}

func clinicsListCacheKey(filter repositories.ClinicFilter) string {
	return fmt.Sprintf("clinics:list:%s:%s:%d:%d", filter.StateCode, filter.City, filter.Limit, filter.Offset)
}

const stateCountsCacheKey = "clinics:counts:state"

// Upsert writes through and invalidates the clinic's cache entry. List pages
// are left to expire on their TTL.
func (a *CachedClinicAdapter) Upsert(ctx context.Context, clinic *entities.Clinic) error {
	if err := a.adapter.Upsert(ctx, clinic); err != nil {
		return err
	}
	if err := a.cache.Delete(ctx, clinicCacheKey(clinic.PlaceID)); err != nil {
		log.Debug().Err(err).Str("place_id", clinic.PlaceID).Msg("failed to invalidate clinic cache")
	}
	return nil
}

// UpsertBatch writes through and invalidates every touched clinic entry
func (a *CachedClinicAdapter) UpsertBatch(ctx context.Context, clinics []*entities.Clinic) error {
	if err := a.adapter.UpsertBatch(ctx, clinics); err != nil {
		return err
	}
	for _, clinic := range clinics {
		if err := a.cache.Delete(ctx, clinicCacheKey(clinic.PlaceID)); err != nil {
			log.Debug().Err(err).Str("place_id", clinic.PlaceID).Msg("failed to invalidate clinic cache")
		}
	}
	if err := a.cache.Delete(ctx, stateCountsCacheKey); err != nil {
		log.Debug().Err(err).Msg("failed to invalidate state counts cache")
	}
	return nil
}

// GetByPlaceID retrieves a clinic with read-through caching
func (a *CachedClinicAdapter) GetByPlaceID(ctx context.Context, placeID string) (*entities.Clinic, error) {
	cacheKey := clinicCacheKey(placeID)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var clinic entities.Clinic
		if err := json.Unmarshal(cached, &clinic); err == nil {
			return &clinic, nil
		}
	}

	clinic, err := a.adapter.GetByPlaceID(ctx, placeID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(clinic); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, clinicByIDTTL); err != nil {
			log.Debug().Err(err).Str("place_id", placeID).Msg("failed to cache clinic")
		}
	}
	return clinic, nil
}

// List retrieves a filtered clinic page with read-through caching
func (a *CachedClinicAdapter) List(ctx context.Context, filter repositories.ClinicFilter) ([]*entities.Clinic, error) {
	cacheKey := clinicsListCacheKey(filter)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var clinics []*entities.Clinic
		if err := json.Unmarshal(cached, &clinics); err == nil {
			return clinics, nil
		}
	}

	clinics, err := a.adapter.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(clinics); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, clinicsListTTL); err != nil {
			log.Debug().Err(err).Msg("failed to cache clinics list")
		}
	}
	return clinics, nil
}

// ListStale always reads the database; freshness scans must not be served
// from a cache that may itself be stale.
func (a *CachedClinicAdapter) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	return a.adapter.ListStale(ctx, cutoff)
}

// CountByState retrieves per-state counts with read-through caching
func (a *CachedClinicAdapter) CountByState(ctx context.Context) (map[string]int, error) {
	if cached, err := a.cache.Get(ctx, stateCountsCacheKey); err == nil {
		var counts map[string]int
		if err := json.Unmarshal(cached, &counts); err == nil {
			return counts, nil
		}
	}

	counts, err := a.adapter.CountByState(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(counts); err == nil {
		if err := a.cache.Set(ctx, stateCountsCacheKey, data, stateCountsTTL); err != nil {
			log.Debug().Err(err).Msg("failed to cache state counts")
		}
	}
	return counts, nil
}
