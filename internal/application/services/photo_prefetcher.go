package services

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dermatlas/backend/internal/domain/entities"
	"github.com/dermatlas/backend/internal/domain/providers"
	"github.com/dermatlas/backend/internal/infrastructure/clients/places"
)

const (
	photoCacheKeyPrefix = "photo:uri:"
	photoCacheTTL       = 7 * 24 * 60 * 60
	photoMaxWidthPx     = 800
)

// PhotoPrefetcher resolves the lead photo of freshly committed clinics into
// short-lived media URIs and caches them, so the directory site never blocks
// on the upstream for its listing thumbnails.
type PhotoPrefetcher struct {
	searcher places.Searcher
	cache    providers.CacheProvider
	workers  int
	logger   zerolog.Logger
}

// NewPhotoPrefetcher creates a prefetcher with a bounded worker pool
func NewPhotoPrefetcher(searcher places.Searcher, cache providers.CacheProvider, workers int, logger zerolog.Logger) *PhotoPrefetcher {
	if workers <= 0 {
		workers = 5
	}
	return &PhotoPrefetcher{
		searcher: searcher,
		cache:    cache,
		workers:  workers,
		logger:   logger,
	}
}

// Prefetch resolves and caches the first photo of each clinic that has one,
// returning how many URIs were cached. A failing photo is logged and skipped;
// prefetching is best-effort and never fails the run.
func (p *PhotoPrefetcher) Prefetch(ctx context.Context, clinics []*entities.Clinic) int {
	group := new(errgroup.Group)
	group.SetLimit(p.workers)

	var cached atomic.Int64
	for _, clinic := range clinics {
		if len(clinic.PhotoRefs) == 0 {
			continue
		}
		ref := clinic.PhotoRefs[0]
		placeID := clinic.PlaceID

		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			uri, err := p.searcher.PhotoMediaURI(ctx, ref, photoMaxWidthPx)
			if err != nil {
				p.logger.Debug().Err(err).Str("place_id", placeID).Msg("photo prefetch failed, skipping")
				return nil
			}
			if err := p.cache.Set(ctx, photoCacheKeyPrefix+ref, []byte(uri), photoCacheTTL); err != nil {
				p.logger.Debug().Err(err).Str("place_id", placeID).Msg("failed to cache photo uri")
				return nil
			}
			cached.Add(1)
			return nil
		})
	}

	_ = group.Wait()
	return int(cached.Load())
}
