package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dermatlas/backend/internal/adapters/cache"
	"github.com/dermatlas/backend/internal/adapters/database"
	"github.com/dermatlas/backend/internal/adapters/events"
	"github.com/dermatlas/backend/internal/application/services"
	"github.com/dermatlas/backend/internal/domain/entities"
	"github.com/dermatlas/backend/internal/domain/providers"
	"github.com/dermatlas/backend/internal/infrastructure/clients/places"
	"github.com/dermatlas/backend/internal/infrastructure/clients/postgres"
	"github.com/dermatlas/backend/internal/infrastructure/clients/redis"
	"github.com/dermatlas/backend/internal/infrastructure/observability"
	"github.com/dermatlas/backend/pkg/config"
	"github.com/dermatlas/backend/pkg/retry"
	"github.com/dermatlas/backend/pkg/secrets"
)

func main() {
	var statesFlag string
	var gridFlag string
	var staleOnly bool

	flag.StringVar(&statesFlag, "states", "", "Comma-separated state names to collect (overrides PIPELINE_STATES)")
	flag.StringVar(&gridFlag, "grid", "", "Grid sweep bounding box as minLat,maxLat,minLng,maxLng")
	flag.BoolVar(&staleOnly, "stale-only", false, "Run only when stored snapshots are stale")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if count, err := secrets.Hydrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to hydrate secrets: %v\n", err)
		os.Exit(1)
	} else if count > 0 {
		fmt.Printf("hydrated %d secrets from vault\n", count)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger("collector", cfg.Pipeline.Env)

	states := cfg.Pipeline.States
	if statesFlag != "" {
		states = splitList(statesFlag)
	}
	if len(states) == 0 {
		log.Fatal().Msg("no states configured: set -states or PIPELINE_STATES")
	}

	grid, err := parseGridFlag(gridFlag, cfg.Pipeline)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -grid flag")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	// Redis carries the search-page cache and the event bus. The pipeline
	// still runs without it, just slower and quieter.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, running without cache and events")
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		bus := events.NewRedisEventBus(redisClient)
		defer bus.Close()
		eventBus = bus
	}

	clinicRepo := database.NewClinicAdapter(pgClient)
	if cacheProvider != nil {
		clinicRepo = database.NewCachedClinicAdapter(clinicRepo, cacheProvider)
	}

	if staleOnly {
		cutoff := time.Now().AddDate(0, 0, -entities.StaleAfterDays)
		staleIDs, err := clinicRepo.ListStale(ctx, cutoff)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to check snapshot freshness")
		}
		if len(staleIDs) == 0 {
			log.Info().Msg("all stored snapshots are fresh, nothing to do")
			return
		}
		log.Info().Int("stale", len(staleIDs)).Msg("stale snapshots found, running full collection")
	}

	retryCfg := retry.DefaultConfig()
	if cfg.Pipeline.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.Pipeline.MaxRetries
	}

	gateway := places.NewGateway(
		cfg.Pipeline.RequestsPerSecond,
		cfg.Pipeline.MaxRequests,
		retryCfg,
		&http.Client{Timeout: 30 * time.Second},
	)
	placesClient := places.NewClient(cfg.Places.APIKey, cfg.Places.BaseURL, gateway, cacheProvider)

	var prefetcher *services.PhotoPrefetcher
	if cacheProvider != nil {
		prefetcher = services.NewPhotoPrefetcher(placesClient, cacheProvider, 5, log.Logger)
	}

	service := services.NewDiscoveryService(placesClient, clinicRepo, eventBus, prefetcher, services.DiscoveryConfig{
		States:             states,
		MaxPagesPerQuery:   cfg.Pipeline.MaxPagesPerQuery,
		InterPageDelay:     time.Duration(cfg.Pipeline.InterPageDelayMS) * time.Millisecond,
		MaxClinicsPerState: cfg.Pipeline.MaxClinicsPerState,
		MaxClinicsTotal:    cfg.Pipeline.MaxClinicsTotal,
		Grid:               grid,
		RequestCount:       gateway.Requests,
	})

	start := time.Now()
	summary, err := service.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("discovery run failed")
	}

	log.Info().
		Str("run_id", summary.RunID).
		Dur("elapsed", time.Since(start)).
		Int("requests_spent", summary.RequestsSpent).
		Int("states_processed", summary.StatesProcessed).
		Int("states_failed", summary.StatesFailed).
		Int("candidates_seen", summary.CandidatesSeen).
		Int("accepted", summary.Accepted).
		Int("rejected", summary.Rejected).
		Int("duplicates", summary.Duplicates).
		Int("clinics_upserted", summary.ClinicsUpserted).
		Bool("budget_stop", summary.BudgetStop).
		Msg("collection run complete")
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseGridFlag turns "minLat,maxLat,minLng,maxLng" into a grid sweep config
// using the pipeline's step and radius settings.
func parseGridFlag(value string, pipeline config.PipelineConfig) (*services.GridConfig, error) {
	if value == "" {
		return nil, nil
	}

	parts := splitList(value)
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	coords := make([]float64, 4)
	for i, part := range parts {
		coord, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q: %w", part, err)
		}
		coords[i] = coord
	}

	if coords[0] > coords[1] || coords[2] > coords[3] {
		return nil, fmt.Errorf("bounding box is inverted: %s", value)
	}

	return &services.GridConfig{
		Box: services.BoundingBox{
			MinLat: coords[0],
			MaxLat: coords[1],
			MinLng: coords[2],
			MaxLng: coords[3],
		},
		StepDegrees:  pipeline.GridStepDegrees,
		RadiusMeters: pipeline.SearchRadiusMeters,
	}, nil
}
