package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dermatlas/backend/internal/domain/entities"
	"github.com/dermatlas/backend/internal/domain/repositories"
	"github.com/dermatlas/backend/internal/infrastructure/clients/places"
	apperrors "github.com/dermatlas/backend/pkg/errors"
)

type mockClinicRepo struct {
	batches [][]*entities.Clinic
	fail    error
}

func (m *mockClinicRepo) Upsert(ctx context.Context, clinic *entities.Clinic) error {
	return m.UpsertBatch(ctx, []*entities.Clinic{clinic})
}

func (m *mockClinicRepo) UpsertBatch(ctx context.Context, clinics []*entities.Clinic) error {
	if m.fail != nil {
		return m.fail
	}
	m.batches = append(m.batches, clinics)
	return nil
}

func (m *mockClinicRepo) GetByPlaceID(ctx context.Context, placeID string) (*entities.Clinic, error) {
	return nil, apperrors.NewNotFoundError("clinic not found")
}

func (m *mockClinicRepo) List(ctx context.Context, filter repositories.ClinicFilter) ([]*entities.Clinic, error) {
	return nil, nil
}

func (m *mockClinicRepo) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	return nil, nil
}

func (m *mockClinicRepo) CountByState(ctx context.Context) (map[string]int, error) {
	return nil, nil
}

func (m *mockClinicRepo) stored() []string {
	var ids []string
	for _, batch := range m.batches {
		for _, clinic := range batch {
			ids = append(ids, clinic.PlaceID)
		}
	}
	return ids
}

type mockEventBus struct {
	published []*entities.DiscoveryEvent
}

func (m *mockEventBus) Publish(ctx context.Context, channel string, event *entities.DiscoveryEvent) error {
	m.published = append(m.published, event)
	return nil
}

func (m *mockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DiscoveryEvent, error) {
	return nil, nil
}

func (m *mockEventBus) Close() error { return nil }

func dermPlace(id, name string) places.Place {
	return places.Place{
		ID:          id,
		DisplayName: places.LocalizedText{Text: name},
		Types:       []string{"doctor"},
	}
}

func TestDiscoveryService_RunCommitsPerState(t *testing.T) {
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			switch req.TextQuery {
			case "dermatologist in Louisiana":
				return &places.SearchResponse{Places: []places.Place{dermPlace("la-1", "Bayou Dermatology")}}, nil
			case "dermatologist in Texas":
				return &places.SearchResponse{Places: []places.Place{dermPlace("tx-1", "Lone Star Dermatology")}}, nil
			default:
				return &places.SearchResponse{}, nil
			}
		},
	}
	repo := &mockClinicRepo{}
	bus := &mockEventBus{}

	service := NewDiscoveryService(searcher, repo, bus, nil, DiscoveryConfig{
		States:         []string{"Louisiana", "Texas"},
		QueryTemplates: []string{"dermatologist in %s"},
	})

	summary, err := service.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.StatesProcessed)
	assert.Equal(t, 2, summary.Accepted)
	assert.Equal(t, 2, summary.ClinicsUpserted)
	assert.False(t, summary.BudgetStop)

	// One committed batch per state, in state order.
	require.Len(t, repo.batches, 2)
	assert.Equal(t, []string{"la-1", "tx-1"}, repo.stored())

	// A discovery event per clinic plus the run summary.
	require.Len(t, bus.published, 3)
	assert.Equal(t, entities.DiscoveryEventTypeClinicDiscovered, bus.published[0].EventType)
	assert.Equal(t, entities.DiscoveryEventTypeRunCompleted, bus.published[2].EventType)
	assert.Equal(t, summary.RunID, bus.published[0].RunID)
}

func TestDiscoveryService_RejectsAndDeduplicates(t *testing.T) {
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			return &places.SearchResponse{Places: []places.Place{
				dermPlace("d-1", "Bright Skin Dermatology Center"),
				dermPlace("d-1", "Bright Skin Dermatology Center"),
				{ID: "vet-1", DisplayName: places.LocalizedText{Text: "Pampered Paws Pet Clinic"}, Types: []string{"veterinary_care"}},
				{DisplayName: places.LocalizedText{Text: "Dermatology Without ID"}},
			}}, nil
		},
	}
	repo := &mockClinicRepo{}

	service := NewDiscoveryService(searcher, repo, nil, nil, DiscoveryConfig{
		States:         []string{"Ohio"},
		QueryTemplates: []string{"dermatologist in %s"},
	})

	summary, err := service.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.CandidatesSeen)
	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.NormalizeFailed)
	assert.Equal(t, []string{"d-1"}, repo.stored())
}

func TestDiscoveryService_DeduplicatesAcrossStates(t *testing.T) {
	// The same clinic near a state border shows up in both states' queries.
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			return &places.SearchResponse{Places: []places.Place{dermPlace("border-1", "Borderline Dermatology")}}, nil
		},
	}
	repo := &mockClinicRepo{}

	service := NewDiscoveryService(searcher, repo, nil, nil, DiscoveryConfig{
		States:         []string{"Louisiana", "Mississippi"},
		QueryTemplates: []string{"dermatologist in %s"},
	})

	summary, err := service.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, []string{"border-1"}, repo.stored())
	// The second state completed with nothing new to commit.
	assert.Equal(t, 2, summary.StatesProcessed)
	require.Len(t, repo.batches, 1)
}

func TestDiscoveryService_BudgetStopDiscardsPartialState(t *testing.T) {
	calls := 0
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			calls++
			if calls == 1 {
				return &places.SearchResponse{Places: []places.Place{dermPlace("ok-1", "First State Dermatology")}}, nil
			}
			return nil, apperrors.NewBudgetError("request budget exhausted")
		},
	}
	repo := &mockClinicRepo{}

	service := NewDiscoveryService(searcher, repo, nil, nil, DiscoveryConfig{
		States:         []string{"Louisiana", "Texas"},
		QueryTemplates: []string{"dermatologist in %s"},
	})

	summary, err := service.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.BudgetStop)
	assert.Equal(t, 1, summary.StatesProcessed)
	// Only the fully collected first state was committed.
	assert.Equal(t, []string{"ok-1"}, repo.stored())
}

func TestDiscoveryService_FailingStateDoesNotAbortRun(t *testing.T) {
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			if req.TextQuery == "dermatologist in Louisiana" {
				return &places.SearchResponse{Places: []places.Place{dermPlace("la-1", "Bayou Dermatology")}}, nil
			}
			return &places.SearchResponse{Places: []places.Place{dermPlace("tx-1", "Lone Star Dermatology")}}, nil
		},
	}
	repo := &mockClinicRepo{}
	service := NewDiscoveryService(searcher, repo, nil, nil, DiscoveryConfig{
		States:         []string{"Louisiana", "Texas"},
		QueryTemplates: []string{"dermatologist in %s"},
	})

	// Every commit fails; the run still visits every state and finishes.
	repo.fail = apperrors.NewInternalError("database unavailable", nil)
	summary, err := service.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.StatesFailed)
	assert.Equal(t, 0, summary.StatesProcessed)
	assert.Equal(t, 0, summary.ClinicsUpserted)
}

func TestDiscoveryService_StateCapLimitsBatch(t *testing.T) {
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			return &places.SearchResponse{Places: []places.Place{
				dermPlace("c-1", "Dermatology One"),
				dermPlace("c-2", "Dermatology Two"),
				dermPlace("c-3", "Dermatology Three"),
			}}, nil
		},
	}
	repo := &mockClinicRepo{}

	service := NewDiscoveryService(searcher, repo, nil, nil, DiscoveryConfig{
		States:             []string{"Ohio"},
		QueryTemplates:     []string{"dermatologist in %s"},
		MaxClinicsPerState: 2,
	})

	summary, err := service.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.StatesProcessed)
	assert.False(t, summary.BudgetStop)
	assert.Equal(t, []string{"c-1", "c-2"}, repo.stored())
}

func TestDiscoveryService_GlobalClinicCapStopsRun(t *testing.T) {
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			return &places.SearchResponse{Places: []places.Place{
				dermPlace(req.TextQuery+"-1", "Dermatology A"),
				dermPlace(req.TextQuery+"-2", "Dermatology B"),
			}}, nil
		},
	}
	repo := &mockClinicRepo{}

	service := NewDiscoveryService(searcher, repo, nil, nil, DiscoveryConfig{
		States:          []string{"Louisiana", "Texas", "Ohio"},
		QueryTemplates:  []string{"dermatologist in %s"},
		MaxClinicsTotal: 2,
	})

	summary, err := service.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.BudgetStop)
	// The cap tripped inside the first state, so its partial batch is dropped
	// and later states never run.
	assert.Empty(t, repo.stored())
	assert.Equal(t, 2, summary.Accepted)
}

func TestDiscoveryService_GridSweepRunsAfterStates(t *testing.T) {
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			return &places.SearchResponse{Places: []places.Place{dermPlace("text-1", "Bayou Dermatology")}}, nil
		},
		searchNear: func(req places.NearbySearchRequest) (*places.SearchResponse, error) {
			return &places.SearchResponse{Places: []places.Place{
				dermPlace("text-1", "Bayou Dermatology"),
				dermPlace("grid-1", "Hidden Dermatology"),
			}}, nil
		},
	}
	repo := &mockClinicRepo{}

	service := NewDiscoveryService(searcher, repo, nil, nil, DiscoveryConfig{
		States:         []string{"Louisiana"},
		QueryTemplates: []string{"dermatologist in %s"},
		Grid: &GridConfig{
			Box:          BoundingBox{MinLat: 30, MaxLat: 30, MinLng: -90, MaxLng: -90},
			StepDegrees:  0.3,
			RadiusMeters: 25000,
		},
	})

	summary, err := service.Run(context.Background())
	require.NoError(t, err)

	// The grid finds one new clinic; the overlap with the text phase dedupes.
	assert.Equal(t, []string{"text-1", "grid-1"}, repo.stored())
	assert.Equal(t, 1, summary.Duplicates)
	require.Len(t, repo.batches, 2)
}

func TestDiscoveryService_CancellationAbortsWithoutCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			cancel()
			return nil, ctx.Err()
		},
	}
	repo := &mockClinicRepo{}

	service := NewDiscoveryService(searcher, repo, nil, nil, DiscoveryConfig{
		States:         []string{"Louisiana"},
		QueryTemplates: []string{"dermatologist in %s"},
	})

	_, err := service.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, repo.stored())
}
