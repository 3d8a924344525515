package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/dermatlas/backend/internal/domain/entities"
	"github.com/dermatlas/backend/internal/domain/repositories"
	"github.com/dermatlas/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/dermatlas/backend/pkg/errors"
)

var clinicColumns = []interface{}{
	"place_id", "name", "formatted_address", "city", "state_code", "postal_code",
	"latitude", "longitude", "primary_type", "types", "rating", "review_count",
	"national_phone", "international_phone", "website", "maps_uri", "business_status",
	"wc_parking", "wc_entrance", "wc_restroom", "wc_seating",
	"free_parking_lot", "paid_parking_lot", "free_street_parking", "paid_street_parking",
	"valet_parking", "free_garage_parking", "paid_garage_parking",
	"accepts_credit_cards", "accepts_debit_cards", "accepts_cash_only", "accepts_nfc",
	"price_level", "photo_refs", "weekly_hours", "open_now",
	"last_fetched_at", "created_at", "updated_at",
}

// ClinicAdapter implements the ClinicRepository interface
type ClinicAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewClinicAdapter creates a new clinic adapter
func NewClinicAdapter(client *postgres.Client) repositories.ClinicRepository {
	return &ClinicAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

func clinicRecord(clinic *entities.Clinic, now time.Time) goqu.Record {
	return goqu.Record{
		"place_id":             clinic.PlaceID,
		"name":                 clinic.Name,
		"formatted_address":    clinic.FormattedAddress,
		"city":                 nullString(clinic.City),
		"state_code":           nullString(clinic.StateCode),
		"postal_code":          nullString(clinic.PostalCode),
		"latitude":             clinic.Location.Latitude,
		"longitude":            clinic.Location.Longitude,
		"primary_type":         clinic.PrimaryType,
		"types":                pq.Array(clinic.Types),
		"rating":               clinic.Rating,
		"review_count":         clinic.ReviewCount,
		"national_phone":       clinic.NationalPhone,
		"international_phone":  clinic.InternationalPhone,
		"website":              clinic.Website,
		"maps_uri":             clinic.MapsURI,
		"business_status":      string(clinic.BusinessStatus),
		"wc_parking":           clinic.Accessibility.WheelchairAccessibleParking,
		"wc_entrance":          clinic.Accessibility.WheelchairAccessibleEntrance,
		"wc_restroom":          clinic.Accessibility.WheelchairAccessibleRestroom,
		"wc_seating":           clinic.Accessibility.WheelchairAccessibleSeating,
		"free_parking_lot":     clinic.Parking.FreeParkingLot,
		"paid_parking_lot":     clinic.Parking.PaidParkingLot,
		"free_street_parking":  clinic.Parking.FreeStreetParking,
		"paid_street_parking":  clinic.Parking.PaidStreetParking,
		"valet_parking":        clinic.Parking.ValetParking,
		"free_garage_parking":  clinic.Parking.FreeGarageParking,
		"paid_garage_parking":  clinic.Parking.PaidGarageParking,
		"accepts_credit_cards": clinic.Payment.AcceptsCreditCards,
		"accepts_debit_cards":  clinic.Payment.AcceptsDebitCards,
		"accepts_cash_only":    clinic.Payment.AcceptsCashOnly,
		"accepts_nfc":          clinic.Payment.AcceptsNFC,
		"price_level":          clinic.PriceLevel,
		"photo_refs":           pq.Array(clinic.PhotoRefs),
		"weekly_hours":         pq.Array(clinic.WeeklyHours),
		"open_now":             clinic.OpenNow,
		"last_fetched_at":      clinic.LastFetchedAt,
		"created_at":           now,
		"updated_at":           now,
	}
}

// upsertSQL builds the whole-record upsert. A re-fetched clinic replaces the
// stored row (last-write-wins); created_at survives the conflict update.
func (a *ClinicAdapter) upsertSQL(clinic *entities.Clinic, now time.Time) (string, []interface{}, error) {
	record := clinicRecord(clinic, now)

	update := goqu.Record{}
	for column, value := range record {
		if column == "place_id" || column == "created_at" {
			continue
		}
		update[column] = value
	}

	return a.db.Insert("clinics").
		Rows(record).
		OnConflict(goqu.DoUpdate("place_id", update)).
		ToSQL()
}

// Upsert inserts or replaces a clinic keyed by place_id
func (a *ClinicAdapter) Upsert(ctx context.Context, clinic *entities.Clinic) error {
	if clinic.PlaceID == "" {
		return apperrors.NewValidationError("clinic is missing a place_id")
	}

	query, args, err := a.upsertSQL(clinic, time.Now())
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert clinic", err)
	}
	return nil
}

// UpsertBatch upserts a full state's worth of clinics in one transaction, so
// a state's output is committed only after its collection completes.
func (a *ClinicAdapter) UpsertBatch(ctx context.Context, clinics []*entities.Clinic) error {
	if len(clinics) == 0 {
		return nil
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, clinic := range clinics {
		if clinic.PlaceID == "" {
			return apperrors.NewValidationError("clinic is missing a place_id")
		}
		query, args, err := a.upsertSQL(clinic, now)
		if err != nil {
			return apperrors.NewInternalError("failed to build upsert query", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to upsert clinic %s", clinic.PlaceID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit clinic batch", err)
	}
	return nil
}

// GetByPlaceID retrieves a clinic by its place identifier
func (a *ClinicAdapter) GetByPlaceID(ctx context.Context, placeID string) (*entities.Clinic, error) {
	query, args, err := a.db.Select(clinicColumns...).
		From("clinics").
		Where(goqu.Ex{"place_id": placeID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	clinic, err := scanClinic(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("clinic with place_id %s not found", placeID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get clinic", err)
	}
	return clinic, nil
}

// List retrieves clinics with filters, ordered by state then name
func (a *ClinicAdapter) List(ctx context.Context, filter repositories.ClinicFilter) ([]*entities.Clinic, error) {
	ds := a.db.Select(clinicColumns...).From("clinics")

	if filter.StateCode != "" {
		ds = ds.Where(goqu.Ex{"state_code": filter.StateCode})
	}
	if filter.City != "" {
		ds = ds.Where(goqu.Ex{"city": filter.City})
	}

	ds = ds.Order(goqu.I("state_code").Asc(), goqu.I("name").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list clinics", err)
	}
	defer rows.Close()

	var clinics []*entities.Clinic
	for rows.Next() {
		clinic, err := scanClinic(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan clinic", err)
		}
		clinics = append(clinics, clinic)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate clinics", err)
	}
	return clinics, nil
}

// ListStale retrieves place IDs last fetched on or before the cutoff day
func (a *ClinicAdapter) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	query, args, err := a.db.Select("place_id").
		From("clinics").
		Where(goqu.C("last_fetched_at").Lte(cutoff)).
		Order(goqu.I("last_fetched_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list stale clinics", err)
	}
	defer rows.Close()

	var placeIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan place_id", err)
		}
		placeIDs = append(placeIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate stale clinics", err)
	}
	return placeIDs, nil
}

// CountByState returns the number of stored clinics per state code
func (a *ClinicAdapter) CountByState(ctx context.Context) (map[string]int, error) {
	query, args, err := a.db.Select("state_code", goqu.COUNT("*").As("total")).
		From("clinics").
		Where(goqu.C("state_code").IsNotNull()).
		GroupBy("state_code").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to count clinics", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var state string
		var total int
		if err := rows.Scan(&state, &total); err != nil {
			return nil, apperrors.NewInternalError("failed to scan count", err)
		}
		counts[state] = total
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate counts", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClinic(row rowScanner) (*entities.Clinic, error) {
	clinic := &entities.Clinic{}
	var city, stateCode, postalCode sql.NullString
	var status string

	err := row.Scan(
		&clinic.PlaceID,
		&clinic.Name,
		&clinic.FormattedAddress,
		&city,
		&stateCode,
		&postalCode,
		&clinic.Location.Latitude,
		&clinic.Location.Longitude,
		&clinic.PrimaryType,
		pq.Array(&clinic.Types),
		&clinic.Rating,
		&clinic.ReviewCount,
		&clinic.NationalPhone,
		&clinic.InternationalPhone,
		&clinic.Website,
		&clinic.MapsURI,
		&status,
		&clinic.Accessibility.WheelchairAccessibleParking,
		&clinic.Accessibility.WheelchairAccessibleEntrance,
		&clinic.Accessibility.WheelchairAccessibleRestroom,
		&clinic.Accessibility.WheelchairAccessibleSeating,
		&clinic.Parking.FreeParkingLot,
		&clinic.Parking.PaidParkingLot,
		&clinic.Parking.FreeStreetParking,
		&clinic.Parking.PaidStreetParking,
		&clinic.Parking.ValetParking,
		&clinic.Parking.FreeGarageParking,
		&clinic.Parking.PaidGarageParking,
		&clinic.Payment.AcceptsCreditCards,
		&clinic.Payment.AcceptsDebitCards,
		&clinic.Payment.AcceptsCashOnly,
		&clinic.Payment.AcceptsNFC,
		&clinic.PriceLevel,
		pq.Array(&clinic.PhotoRefs),
		pq.Array(&clinic.WeeklyHours),
		&clinic.OpenNow,
		&clinic.LastFetchedAt,
		&clinic.CreatedAt,
		&clinic.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	clinic.BusinessStatus = entities.BusinessStatus(status)
	clinic.City = stringPtr(city)
	clinic.StateCode = stringPtr(stateCode)
	clinic.PostalCode = stringPtr(postalCode)
	return clinic, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
