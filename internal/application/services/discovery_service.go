package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dermatlas/backend/internal/domain/entities"
	"github.com/dermatlas/backend/internal/domain/providers"
	"github.com/dermatlas/backend/internal/domain/repositories"
	"github.com/dermatlas/backend/internal/infrastructure/clients/places"
	"github.com/dermatlas/backend/internal/infrastructure/observability"
	apperrors "github.com/dermatlas/backend/pkg/errors"
)

// errStateCapReached stops one state's collection without failing the run
var errStateCapReached = errors.New("state clinic cap reached")

// GridConfig enables a grid sweep after the per-state text searches
type GridConfig struct {
	Box          BoundingBox
	StepDegrees  float64
	RadiusMeters float64
}

// DiscoveryConfig holds one run's coverage and budget settings
type DiscoveryConfig struct {
	States             []string
	QueryTemplates     []string
	MaxPagesPerQuery   int
	InterPageDelay     time.Duration
	MaxClinicsPerState int
	MaxClinicsTotal    int
	Grid               *GridConfig
	// RequestCount, when set, reports the upstream requests spent so far;
	// the gateway's counter is wired in here.
	RequestCount func() int
}

// DiscoverySummary reports what one run did
type DiscoverySummary struct {
	RunID            string    `json:"run_id"`
	StatesProcessed  int       `json:"states_processed"`
	StatesFailed     int       `json:"states_failed"`
	CandidatesSeen   int       `json:"candidates_seen"`
	Rejected         int       `json:"rejected"`
	NormalizeFailed  int       `json:"normalize_failed"`
	Duplicates       int       `json:"duplicates"`
	Accepted         int       `json:"accepted"`
	ClinicsUpserted  int       `json:"clinics_upserted"`
	RequestsSpent    int       `json:"requests_spent"`
	BudgetStop       bool      `json:"budget_stop"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// DiscoveryService orchestrates one collection run: strategies produce raw
// candidates, the classifier rejects early, the normalizer shapes survivors,
// the collector deduplicates across all strategies, and each state's output
// is committed only once that state's collection completes.
type DiscoveryService struct {
	searcher   places.Searcher
	classifier *DermatologyClassifier
	normalizer *ClinicNormalizer
	openHours  *OpenHoursResolver
	repo       repositories.ClinicRepository
	bus        providers.EventBus
	prefetcher *PhotoPrefetcher
	cfg        DiscoveryConfig
}

// NewDiscoveryService creates a discovery service. bus and prefetcher are
// optional.
func NewDiscoveryService(
	searcher places.Searcher,
	repo repositories.ClinicRepository,
	bus providers.EventBus,
	prefetcher *PhotoPrefetcher,
	cfg DiscoveryConfig,
) *DiscoveryService {
	if cfg.MaxPagesPerQuery <= 0 {
		cfg.MaxPagesPerQuery = 3
	}
	return &DiscoveryService{
		searcher:   searcher,
		classifier: NewDermatologyClassifier(),
		normalizer: NewClinicNormalizer(),
		openHours:  NewOpenHoursResolver(),
		repo:       repo,
		bus:        bus,
		prefetcher: prefetcher,
		cfg:        cfg,
	}
}

// Run executes the full pipeline across all configured states and the
// optional grid sweep. Budget exhaustion is a clean stop, not an error; a
// failing state is logged and the run continues with the next one.
func (s *DiscoveryService) Run(ctx context.Context) (*DiscoverySummary, error) {
	runID := uuid.NewString()
	logger := observability.RunLogger(runID)
	summary := &DiscoverySummary{RunID: runID, StartedAt: time.Now()}
	collector := NewDedupCollector()

	logger.Info().Strs("states", s.cfg.States).Bool("grid", s.cfg.Grid != nil).Msg("starting discovery run")

	for _, state := range s.cfg.States {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		strategy := NewTextSearchStrategy(
			s.searcher, state, s.cfg.QueryTemplates,
			s.cfg.MaxPagesPerQuery, s.cfg.InterPageDelay, logger,
		)
		err := s.collect(ctx, logger, collector, strategy, state, summary)
		if err != nil {
			if apperrors.IsBudget(err) {
				logger.Info().Err(err).Str("state", state).Msg("budget reached, stopping run")
				summary.BudgetStop = true
				break
			}
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.StatesFailed++
			logger.Error().Err(err).Str("state", state).Msg("state collection failed, continuing")
			continue
		}
		summary.StatesProcessed++
	}

	if !summary.BudgetStop && s.cfg.Grid != nil && ctx.Err() == nil {
		strategy := NewGridSweepStrategy(
			s.searcher, s.cfg.Grid.Box,
			s.cfg.Grid.StepDegrees, s.cfg.Grid.RadiusMeters, logger,
		)
		if err := s.collect(ctx, logger, collector, strategy, "", summary); err != nil {
			if apperrors.IsBudget(err) {
				summary.BudgetStop = true
			} else if ctx.Err() != nil {
				return summary, ctx.Err()
			} else {
				logger.Error().Err(err).Msg("grid sweep failed")
			}
		}
	}

	if s.cfg.RequestCount != nil {
		summary.RequestsSpent = s.cfg.RequestCount()
	}
	summary.FinishedAt = time.Now()
	s.publishRunCompleted(ctx, runID, summary)

	logger.Info().
		Int("states_processed", summary.StatesProcessed).
		Int("requests_spent", summary.RequestsSpent).
		Int("candidates_seen", summary.CandidatesSeen).
		Int("accepted", summary.Accepted).
		Int("upserted", summary.ClinicsUpserted).
		Bool("budget_stop", summary.BudgetStop).
		Msg("discovery run finished")

	return summary, nil
}

// collect runs one strategy, buffering its newly discovered clinics, and
// commits them as a single batch once the strategy completes. On budget
// exhaustion or cancellation the partial batch is discarded so no
// half-collected jurisdiction reaches storage.
func (s *DiscoveryService) collect(
	ctx context.Context,
	logger zerolog.Logger,
	collector *DedupCollector,
	strategy SearchStrategy,
	state string,
	summary *DiscoverySummary,
) error {
	var batch []*entities.Clinic

	emit := func(candidate places.Place) error {
		summary.CandidatesSeen++

		if !s.classifier.Accept(&candidate) {
			summary.Rejected++
			return nil
		}
		if collector.Seen(candidate.ID) {
			summary.Duplicates++
			return nil
		}

		clinic, err := s.normalizer.Normalize(&candidate)
		if err != nil {
			summary.NormalizeFailed++
			logger.Debug().Err(err).Str("name", candidate.Name()).Msg("candidate dropped by normalizer")
			return nil
		}

		// No live flag upstream: derive open-now from the weekly text in
		// the clinic's local timezone.
		if candidate.CurrentOpeningHours == nil || candidate.CurrentOpeningHours.OpenNow == nil {
			stateCode := ""
			if clinic.StateCode != nil {
				stateCode = *clinic.StateCode
			}
			clinic.OpenNow = s.openHours.IsOpenNow(clinic.WeeklyHours, stateCode)
		}

		if !collector.Add(clinic) {
			summary.Duplicates++
			return nil
		}
		batch = append(batch, clinic)
		summary.Accepted++

		if s.cfg.MaxClinicsTotal > 0 && collector.Len() >= s.cfg.MaxClinicsTotal {
			return apperrors.NewBudgetError(fmt.Sprintf("global clinic budget of %d reached", s.cfg.MaxClinicsTotal))
		}
		if state != "" && s.cfg.MaxClinicsPerState > 0 && len(batch) >= s.cfg.MaxClinicsPerState {
			return errStateCapReached
		}
		return nil
	}

	err := strategy.Run(ctx, emit)
	if errors.Is(err, errStateCapReached) {
		logger.Info().Str("strategy", strategy.Name()).Int("cap", s.cfg.MaxClinicsPerState).Msg("state clinic cap reached")
		err = nil
	}
	if err != nil {
		return err
	}

	return s.commit(ctx, logger, strategy.Name(), state, batch, summary)
}

func (s *DiscoveryService) commit(
	ctx context.Context,
	logger zerolog.Logger,
	strategyName, state string,
	batch []*entities.Clinic,
	summary *DiscoverySummary,
) error {
	if len(batch) == 0 {
		logger.Info().Str("strategy", strategyName).Msg("no new clinics to commit")
		return nil
	}

	if err := s.repo.UpsertBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to commit %d clinics from %s: %w", len(batch), strategyName, err)
	}
	summary.ClinicsUpserted += len(batch)

	logger.Info().Str("strategy", strategyName).Int("clinics", len(batch)).Msg("committed clinics")

	if s.bus != nil {
		for _, clinic := range batch {
			stateCode := state
			if clinic.StateCode != nil {
				stateCode = *clinic.StateCode
			}
			event := entities.NewDiscoveryEvent(summary.RunID, entities.DiscoveryEventTypeClinicDiscovered, clinic.PlaceID, stateCode, nil)
			if err := s.bus.Publish(ctx, providers.EventChannelDiscovery, event); err != nil {
				logger.Warn().Err(err).Str("place_id", clinic.PlaceID).Msg("failed to publish discovery event")
			}
		}
	}

	if s.prefetcher != nil {
		cached := s.prefetcher.Prefetch(ctx, batch)
		logger.Info().Str("strategy", strategyName).Int("photos_cached", cached).Msg("prefetched photos")
	}

	return nil
}

func (s *DiscoveryService) publishRunCompleted(ctx context.Context, runID string, summary *DiscoverySummary) {
	if s.bus == nil {
		return
	}
	event := entities.NewDiscoveryEvent(runID, entities.DiscoveryEventTypeRunCompleted, "", "", map[string]interface{}{
		"states_processed": summary.StatesProcessed,
		"requests_spent":   summary.RequestsSpent,
		"candidates_seen":  summary.CandidatesSeen,
		"accepted":         summary.Accepted,
		"rejected":         summary.Rejected,
		"clinics_upserted": summary.ClinicsUpserted,
		"budget_stop":      summary.BudgetStop,
	})
	if err := s.bus.Publish(ctx, providers.EventChannelRuns, event); err != nil {
		logger := observability.RunLogger(runID)
		logger.Warn().Err(err).Msg("failed to publish run summary")
	}
}
