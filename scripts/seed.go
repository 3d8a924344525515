package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/dermatlas/backend/internal/adapters/database"
	"github.com/dermatlas/backend/internal/domain/entities"
	"github.com/dermatlas/backend/internal/infrastructure/clients/postgres"
	"github.com/dermatlas/backend/pkg/config"
)

func strPtr(s string) *string { return &s }

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	clinicRepo := database.NewClinicAdapter(pgClient)
	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating clinics before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE clinics`); err != nil {
			log.Fatalf("Failed to reset clinics table: %v", err)
		}
	}

	fetchedAt := time.Now().Truncate(24 * time.Hour)
	clinics := []*entities.Clinic{
		{
			PlaceID:          "seed-bayou-derm",
			Name:             "Bayou Dermatology",
			FormattedAddress: "123 Canal St, New Orleans, LA 70112, USA",
			City:             strPtr("New Orleans"),
			StateCode:        strPtr("LA"),
			PostalCode:       strPtr("70112"),
			Location:         entities.Location{Latitude: 29.9511, Longitude: -90.0715},
			PrimaryType:      "skin_care_clinic",
			Types:            []string{"skin_care_clinic", "doctor"},
			Rating:           4.7,
			ReviewCount:      212,
			BusinessStatus:   entities.BusinessStatusOperational,
			WeeklyHours: []string{
				"Monday: 9:00 AM – 5:00 PM",
				"Tuesday: 9:00 AM – 5:00 PM",
				"Wednesday: 9:00 AM – 5:00 PM",
				"Thursday: 9:00 AM – 5:00 PM",
				"Friday: 9:00 AM – 4:00 PM",
				"Saturday: Closed",
				"Sunday: Closed",
			},
			LastFetchedAt: fetchedAt,
		},
		{
			PlaceID:          "seed-lonestar-derm",
			Name:             "Lone Star Dermatology Center",
			FormattedAddress: "456 Congress Ave, Austin, TX 78701, USA",
			City:             strPtr("Austin"),
			StateCode:        strPtr("TX"),
			PostalCode:       strPtr("78701"),
			Location:         entities.Location{Latitude: 30.2672, Longitude: -97.7431},
			PrimaryType:      "doctor",
			Types:            []string{"doctor", "health"},
			Rating:           4.4,
			ReviewCount:      87,
			BusinessStatus:   entities.BusinessStatusOperational,
			LastFetchedAt:    fetchedAt,
		},
		{
			PlaceID:          "seed-empire-skin",
			Name:             "Empire Skin Clinic",
			FormattedAddress: "789 Madison Ave, New York, NY 10065, USA",
			City:             strPtr("New York"),
			StateCode:        strPtr("NY"),
			PostalCode:       strPtr("10065"),
			Location:         entities.Location{Latitude: 40.7672, Longitude: -73.9683},
			PrimaryType:      "skin_care_clinic",
			Types:            []string{"skin_care_clinic"},
			Rating:           4.9,
			ReviewCount:      431,
			BusinessStatus:   entities.BusinessStatusOperational,
			// Deliberately stale so -stale-only runs have something to find.
			LastFetchedAt: fetchedAt.AddDate(0, 0, -(entities.StaleAfterDays + 5)),
		},
	}

	if err := clinicRepo.UpsertBatch(ctx, clinics); err != nil {
		log.Fatalf("Failed to seed clinics: %v", err)
	}
	log.Printf("Seeded %d clinics", len(clinics))

	counts, err := clinicRepo.CountByState(ctx)
	if err != nil {
		log.Fatalf("Failed to count clinics: %v", err)
	}
	for state, count := range counts {
		log.Printf("  %s: %d", state, count)
	}
}
