package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dermatlas/backend/internal/domain/entities"
	"github.com/dermatlas/backend/internal/domain/repositories"
	"github.com/dermatlas/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/dermatlas/backend/pkg/errors"
)

func newMockAdapter(t *testing.T) (repositories.ClinicRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewClinicAdapter(postgres.NewClientFromDB(db)), mock
}

func sampleClinic() *entities.Clinic {
	state := "LA"
	city := "New Orleans"
	zip := "70112"
	return &entities.Clinic{
		PlaceID:          "pid-1",
		Name:             "Crescent City Dermatology",
		FormattedAddress: "123 Canal St, New Orleans, LA 70112",
		City:             &city,
		StateCode:        &state,
		PostalCode:       &zip,
		Location:         entities.Location{Latitude: 29.95, Longitude: -90.07},
		PrimaryType:      "skin_care_clinic",
		Types:            []string{"skin_care_clinic", "doctor"},
		Rating:           4.7,
		ReviewCount:      120,
		BusinessStatus:   entities.BusinessStatusOperational,
		WeeklyHours:      []string{"Monday: 9:00 AM – 5:00 PM"},
		LastFetchedAt:    time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestClinicAdapter_Upsert_EmitsOnConflictUpdate(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec(`INSERT INTO "clinics".*ON CONFLICT \("place_id"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.Upsert(context.Background(), sampleClinic())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClinicAdapter_Upsert_RejectsMissingPlaceID(t *testing.T) {
	adapter, _ := newMockAdapter(t)

	clinic := sampleClinic()
	clinic.PlaceID = ""
	err := adapter.Upsert(context.Background(), clinic)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestClinicAdapter_UpsertBatch_CommitsOnce(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "clinics"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "clinics"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	second := sampleClinic()
	second.PlaceID = "pid-2"
	err := adapter.UpsertBatch(context.Background(), []*entities.Clinic{sampleClinic(), second})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClinicAdapter_UpsertBatch_EmptyIsNoop(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	require.NoError(t, adapter.UpsertBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClinicAdapter_List_FiltersAndOrders(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(`SELECT .+ FROM "clinics" WHERE \(\("state_code" = .+\) AND \("city" = .+\)\) ORDER BY "state_code" ASC, "name" ASC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"place_id"}))

	_, err := adapter.List(context.Background(), repositories.ClinicFilter{
		StateCode: "LA",
		City:      "New Orleans",
		Limit:     20,
	})
	// The empty row set scans no rows; only the generated SQL is under test.
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClinicAdapter_ListStale(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	rows := sqlmock.NewRows([]string{"place_id"}).AddRow("pid-1").AddRow("pid-2")
	mock.ExpectQuery(`SELECT "place_id" FROM "clinics" WHERE \("last_fetched_at" <= .+\) ORDER BY "last_fetched_at" ASC`).
		WillReturnRows(rows)

	ids, err := adapter.ListStale(context.Background(), time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"pid-1", "pid-2"}, ids)
}

func TestClinicAdapter_CountByState(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	rows := sqlmock.NewRows([]string{"state_code", "total"}).AddRow("LA", 12).AddRow("TX", 40)
	mock.ExpectQuery(`SELECT "state_code", COUNT\(\*\) AS "total" FROM "clinics" WHERE \("state_code" IS NOT NULL\) GROUP BY "state_code"`).
		WillReturnRows(rows)

	counts, err := adapter.CountByState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"LA": 12, "TX": 40}, counts)
}
