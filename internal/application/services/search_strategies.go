package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/dermatlas/backend/internal/infrastructure/clients/places"
	apperrors "github.com/dermatlas/backend/pkg/errors"
)

// SearchStrategy yields raw candidates from the upstream, page by page.
// emit may return an error to stop the strategy early (budget exhaustion or
// a per-state cap); strategies propagate it unchanged.
type SearchStrategy interface {
	Name() string
	Run(ctx context.Context, emit func(places.Place) error) error
}

// defaultQueryTemplates are the text-search terms issued per state. Several
// overlapping phrasings surface businesses a single query misses.
var defaultQueryTemplates = []string{
	"dermatologist in %s",
	"dermatology clinic in %s",
	"skin care clinic in %s",
	"skin cancer screening in %s",
}

// TextSearchStrategy issues multi-term paginated text queries for one state.
type TextSearchStrategy struct {
	searcher       places.Searcher
	state          string
	templates      []string
	maxPages       int
	interPageDelay time.Duration
	logger         zerolog.Logger
}

// NewTextSearchStrategy creates a text strategy for one state. maxPages caps
// pagination per query; interPageDelay gives continuation tokens their
// upstream warm-up time, separate from the base rate limit.
func NewTextSearchStrategy(searcher places.Searcher, state string, templates []string, maxPages int, interPageDelay time.Duration, logger zerolog.Logger) *TextSearchStrategy {
	if len(templates) == 0 {
		templates = defaultQueryTemplates
	}
	if maxPages <= 0 {
		maxPages = 3
	}
	return &TextSearchStrategy{
		searcher:       searcher,
		state:          state,
		templates:      templates,
		maxPages:       maxPages,
		interPageDelay: interPageDelay,
		logger:         logger,
	}
}

// Name identifies the strategy in logs
func (s *TextSearchStrategy) Name() string {
	return "text:" + s.state
}

// Run executes every query template against the state, following page
// tokens until exhausted or the page cap is hit. A permanently failing query
// is logged and skipped; only budget exhaustion or cancellation stop the run.
func (s *TextSearchStrategy) Run(ctx context.Context, emit func(places.Place) error) error {
	for _, template := range s.templates {
		query := fmt.Sprintf(template, s.state)

		pageToken := ""
		for page := 1; page <= s.maxPages; page++ {
			resp, err := s.searcher.SearchText(ctx, places.TextSearchRequest{
				TextQuery: query,
				PageToken: pageToken,
			})
			if err != nil {
				if apperrors.IsBudget(err) || ctx.Err() != nil {
					return err
				}
				// Permanent per-query failure: an empty result for this
				// query is acceptable, the rest of the state continues.
				s.logger.Warn().Err(err).Str("query", query).Int("page", page).Msg("text query failed, skipping")
				break
			}

			for _, place := range resp.Places {
				if err := emit(place); err != nil {
					return err
				}
			}

			pageToken = resp.NextPageToken
			if pageToken == "" {
				break
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.interPageDelay):
			}
		}
	}
	return nil
}

// BoundingBox delimits a grid sweep in degrees
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// GridSweepStrategy covers a bounding box with fixed-radius nearest-first
// searches on an evenly spaced grid, so coverage is spatially uniform rather
// than popularity-biased.
type GridSweepStrategy struct {
	searcher     places.Searcher
	box          BoundingBox
	stepDegrees  float64
	radiusMeters float64
	logger       zerolog.Logger
}

// NewGridSweepStrategy creates a grid sweep over the bounding box
func NewGridSweepStrategy(searcher places.Searcher, box BoundingBox, stepDegrees, radiusMeters float64, logger zerolog.Logger) *GridSweepStrategy {
	if stepDegrees <= 0 {
		stepDegrees = 0.3
	}
	if radiusMeters <= 0 {
		radiusMeters = 25000
	}
	return &GridSweepStrategy{
		searcher:     searcher,
		box:          box,
		stepDegrees:  stepDegrees,
		radiusMeters: radiusMeters,
		logger:       logger,
	}
}

// Name identifies the strategy in logs
func (s *GridSweepStrategy) Name() string {
	return "grid"
}

// GridPoints enumerates the lat/lng grid inclusive of the upper bounds. A
// small epsilon compensates for floating-point truncation of the step sum,
// and coordinates are rounded to 6 decimals for determinism.
func (s *GridSweepStrategy) GridPoints() []places.LatLng {
	const epsilon = 1e-9

	var points []places.LatLng
	for lat := s.box.MinLat; lat <= s.box.MaxLat+epsilon; lat += s.stepDegrees {
		for lng := s.box.MinLng; lng <= s.box.MaxLng+epsilon; lng += s.stepDegrees {
			points = append(points, places.LatLng{
				Latitude:  round6(lat),
				Longitude: round6(lng),
			})
		}
	}
	return points
}

// Run issues one nearby search per grid point. Failed cells are logged and
// skipped; only budget exhaustion or cancellation stop the sweep.
func (s *GridSweepStrategy) Run(ctx context.Context, emit func(places.Place) error) error {
	for _, point := range s.GridPoints() {
		resp, err := s.searcher.SearchNearby(ctx, places.NearbySearchRequest{
			LocationRestriction: places.LocationRestriction{
				Circle: places.Circle{Center: point, Radius: s.radiusMeters},
			},
			MaxResultCount: 20,
			RankPreference: places.RankPreferenceDistance,
		})
		if err != nil {
			if apperrors.IsBudget(err) || ctx.Err() != nil {
				return err
			}
			s.logger.Warn().Err(err).
				Float64("lat", point.Latitude).Float64("lng", point.Longitude).
				Msg("grid cell query failed, skipping")
			continue
		}

		for _, place := range resp.Places {
			if err := emit(place); err != nil {
				return err
			}
		}
	}
	return nil
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
