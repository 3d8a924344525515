package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dermatlas/backend/internal/infrastructure/clients/places"
	apperrors "github.com/dermatlas/backend/pkg/errors"
)

// mockSearcher scripts upstream responses per call
type mockSearcher struct {
	textCalls   []places.TextSearchRequest
	nearbyCalls []places.NearbySearchRequest
	searchText  func(req places.TextSearchRequest) (*places.SearchResponse, error)
	searchNear  func(req places.NearbySearchRequest) (*places.SearchResponse, error)
	photoURI    func(photoName string, maxWidthPx int) (string, error)
}

func (m *mockSearcher) SearchText(ctx context.Context, req places.TextSearchRequest) (*places.SearchResponse, error) {
	m.textCalls = append(m.textCalls, req)
	if m.searchText == nil {
		return &places.SearchResponse{}, nil
	}
	return m.searchText(req)
}

func (m *mockSearcher) SearchNearby(ctx context.Context, req places.NearbySearchRequest) (*places.SearchResponse, error) {
	m.nearbyCalls = append(m.nearbyCalls, req)
	if m.searchNear == nil {
		return &places.SearchResponse{}, nil
	}
	return m.searchNear(req)
}

func (m *mockSearcher) PhotoMediaURI(ctx context.Context, photoName string, maxWidthPx int) (string, error) {
	if m.photoURI == nil {
		return "https://media.example.com/" + photoName, nil
	}
	return m.photoURI(photoName, maxWidthPx)
}

func placePage(ids ...string) []places.Place {
	out := make([]places.Place, 0, len(ids))
	for _, id := range ids {
		out = append(out, places.Place{ID: id, DisplayName: places.LocalizedText{Text: id}})
	}
	return out
}

func collectEmitted(t *testing.T, strategy SearchStrategy) []string {
	t.Helper()
	var ids []string
	err := strategy.Run(context.Background(), func(p places.Place) error {
		ids = append(ids, p.ID)
		return nil
	})
	require.NoError(t, err)
	return ids
}

func TestTextSearchStrategy_FollowsPageTokens(t *testing.T) {
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			switch req.PageToken {
			case "":
				return &places.SearchResponse{Places: placePage("a", "b"), NextPageToken: "page2"}, nil
			case "page2":
				return &places.SearchResponse{Places: placePage("c")}, nil
			default:
				t.Fatalf("unexpected page token %q", req.PageToken)
				return nil, nil
			}
		},
	}

	strategy := NewTextSearchStrategy(searcher, "Louisiana", []string{"dermatologist in %s"}, 3, 0, zerolog.Nop())
	ids := collectEmitted(t, strategy)

	assert.Equal(t, []string{"a", "b", "c"}, ids)
	require.Len(t, searcher.textCalls, 2)
	assert.Equal(t, "dermatologist in Louisiana", searcher.textCalls[0].TextQuery)
	assert.Equal(t, "page2", searcher.textCalls[1].PageToken)
}

func TestTextSearchStrategy_StopsAtPageCap(t *testing.T) {
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			// The upstream keeps handing out tokens; the cap must stop us.
			return &places.SearchResponse{Places: placePage("x"), NextPageToken: "more"}, nil
		},
	}

	strategy := NewTextSearchStrategy(searcher, "Texas", []string{"dermatologist in %s"}, 2, 0, zerolog.Nop())
	ids := collectEmitted(t, strategy)

	assert.Len(t, ids, 2)
	assert.Len(t, searcher.textCalls, 2)
}

func TestTextSearchStrategy_RunsEveryTemplate(t *testing.T) {
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			return &places.SearchResponse{Places: placePage(req.TextQuery)}, nil
		},
	}

	templates := []string{"dermatologist in %s", "skin care clinic in %s"}
	strategy := NewTextSearchStrategy(searcher, "Ohio", templates, 3, 0, zerolog.Nop())
	ids := collectEmitted(t, strategy)

	assert.Equal(t, []string{"dermatologist in Ohio", "skin care clinic in Ohio"}, ids)
}

func TestTextSearchStrategy_SkipsFailingQuery(t *testing.T) {
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			if req.TextQuery == "dermatologist in Ohio" {
				return nil, apperrors.NewExternalError("upstream returned 400", nil)
			}
			return &places.SearchResponse{Places: placePage("survivor")}, nil
		},
	}

	templates := []string{"dermatologist in %s", "skin care clinic in %s"}
	strategy := NewTextSearchStrategy(searcher, "Ohio", templates, 3, 0, zerolog.Nop())
	ids := collectEmitted(t, strategy)

	assert.Equal(t, []string{"survivor"}, ids)
}

func TestTextSearchStrategy_BudgetErrorStopsRun(t *testing.T) {
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			return nil, apperrors.NewBudgetError("request budget exhausted")
		},
	}

	templates := []string{"dermatologist in %s", "skin care clinic in %s"}
	strategy := NewTextSearchStrategy(searcher, "Ohio", templates, 3, 0, zerolog.Nop())

	err := strategy.Run(context.Background(), func(places.Place) error { return nil })
	assert.True(t, apperrors.IsBudget(err))
	assert.Len(t, searcher.textCalls, 1)
}

func TestTextSearchStrategy_EmitErrorPropagates(t *testing.T) {
	searcher := &mockSearcher{
		searchText: func(req places.TextSearchRequest) (*places.SearchResponse, error) {
			return &places.SearchResponse{Places: placePage("a", "b")}, nil
		},
	}

	strategy := NewTextSearchStrategy(searcher, "Ohio", []string{"dermatologist in %s"}, 3, 0, zerolog.Nop())

	stop := errors.New("stop")
	err := strategy.Run(context.Background(), func(places.Place) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestGridSweepStrategy_GridPoints(t *testing.T) {
	strategy := NewGridSweepStrategy(&mockSearcher{}, BoundingBox{
		MinLat: 30, MaxLat: 30.6,
		MinLng: -90, MaxLng: -89.4,
	}, 0.3, 25000, zerolog.Nop())

	points := strategy.GridPoints()
	require.Len(t, points, 9)

	assert.Equal(t, places.LatLng{Latitude: 30, Longitude: -90}, points[0])
	assert.Equal(t, places.LatLng{Latitude: 30, Longitude: -89.7}, points[1])
	assert.Equal(t, places.LatLng{Latitude: 30.6, Longitude: -89.4}, points[8])
}

func TestGridSweepStrategy_RequestsNearestFirst(t *testing.T) {
	searcher := &mockSearcher{
		searchNear: func(req places.NearbySearchRequest) (*places.SearchResponse, error) {
			return &places.SearchResponse{Places: placePage("n1")}, nil
		},
	}

	strategy := NewGridSweepStrategy(searcher, BoundingBox{
		MinLat: 30, MaxLat: 30, MinLng: -90, MaxLng: -90,
	}, 0.3, 10000, zerolog.Nop())

	ids := collectEmitted(t, strategy)
	assert.Equal(t, []string{"n1"}, ids)

	require.Len(t, searcher.nearbyCalls, 1)
	call := searcher.nearbyCalls[0]
	assert.Equal(t, places.RankPreferenceDistance, call.RankPreference)
	assert.Equal(t, float64(10000), call.LocationRestriction.Circle.Radius)
	assert.Equal(t, 20, call.MaxResultCount)
}

func TestGridSweepStrategy_SkipsFailedCells(t *testing.T) {
	searcher := &mockSearcher{
		searchNear: func(req places.NearbySearchRequest) (*places.SearchResponse, error) {
			if req.LocationRestriction.Circle.Center.Longitude == -90 {
				return nil, apperrors.NewExternalError("cell failed", nil)
			}
			return &places.SearchResponse{Places: placePage("ok")}, nil
		},
	}

	strategy := NewGridSweepStrategy(searcher, BoundingBox{
		MinLat: 30, MaxLat: 30, MinLng: -90, MaxLng: -89.7,
	}, 0.3, 25000, zerolog.Nop())

	ids := collectEmitted(t, strategy)
	assert.Equal(t, []string{"ok"}, ids)
	assert.Len(t, searcher.nearbyCalls, 2)
}
