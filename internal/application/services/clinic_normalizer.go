package services

import (
	"time"

	"github.com/dermatlas/backend/internal/domain/entities"
	"github.com/dermatlas/backend/internal/infrastructure/clients/places"
	apperrors "github.com/dermatlas/backend/pkg/errors"
)

// Address component tags scanned out of the upstream component list
const (
	componentStateLevel = "administrative_area_level_1"
	componentLocality   = "locality"
	componentPostalTown = "postal_town"
	componentPostalCode = "postal_code"
)

// ClinicNormalizer maps raw upstream candidates into the canonical Clinic
// entity. Missing address pieces become null fields, never errors.
type ClinicNormalizer struct {
	now func() time.Time
}

// NewClinicNormalizer creates a new normalizer
func NewClinicNormalizer() *ClinicNormalizer {
	return &ClinicNormalizer{now: time.Now}
}

// NewClinicNormalizerWithClock allows a fixed clock, for tests
func NewClinicNormalizerWithClock(now func() time.Time) *ClinicNormalizer {
	return &ClinicNormalizer{now: now}
}

// Normalize converts a candidate into a Clinic. It fails only when the
// candidate has no place identifier; everything else degrades to zero or
// null values.
func (n *ClinicNormalizer) Normalize(candidate *places.Place) (*entities.Clinic, error) {
	if candidate.ID == "" {
		return nil, apperrors.NewValidationError("candidate is missing a place identifier")
	}

	clinic := &entities.Clinic{
		PlaceID:            candidate.ID,
		Name:               candidate.Name(),
		FormattedAddress:   candidate.FormattedAddress,
		StateCode:          componentShortText(candidate.AddressComponents, componentStateLevel),
		City:               componentLongText(candidate.AddressComponents, componentLocality, componentPostalTown),
		PostalCode:         componentLongText(candidate.AddressComponents, componentPostalCode),
		PrimaryType:        candidate.PrimaryType,
		Types:              candidate.Types,
		Rating:             candidate.Rating,
		ReviewCount:        candidate.UserRatingCount,
		NationalPhone:      candidate.NationalPhoneNumber,
		InternationalPhone: candidate.InternationalPhoneNumber,
		Website:            candidate.WebsiteURI,
		MapsURI:            candidate.GoogleMapsURI,
		BusinessStatus:     normalizeBusinessStatus(candidate.BusinessStatus),
		PriceLevel:         candidate.PriceLevel,
		PhotoRefs:          candidate.PhotoRefs(),
		// Snapshot freshness is evaluated at day granularity.
		LastFetchedAt: n.now().Truncate(24 * time.Hour),
	}

	// An absent location degrades to 0,0 rather than failing the candidate.
	if candidate.Location != nil {
		clinic.Location = entities.Location{
			Latitude:  candidate.Location.Latitude,
			Longitude: candidate.Location.Longitude,
		}
	}

	if candidate.AccessibilityOptions != nil {
		clinic.Accessibility = entities.AccessibilityOptions{
			WheelchairAccessibleParking:  candidate.AccessibilityOptions.WheelchairAccessibleParking,
			WheelchairAccessibleEntrance: candidate.AccessibilityOptions.WheelchairAccessibleEntrance,
			WheelchairAccessibleRestroom: candidate.AccessibilityOptions.WheelchairAccessibleRestroom,
			WheelchairAccessibleSeating:  candidate.AccessibilityOptions.WheelchairAccessibleSeating,
		}
	}
	if candidate.ParkingOptions != nil {
		clinic.Parking = entities.ParkingOptions{
			FreeParkingLot:    candidate.ParkingOptions.FreeParkingLot,
			PaidParkingLot:    candidate.ParkingOptions.PaidParkingLot,
			FreeStreetParking: candidate.ParkingOptions.FreeStreetParking,
			PaidStreetParking: candidate.ParkingOptions.PaidStreetParking,
			ValetParking:      candidate.ParkingOptions.ValetParking,
			FreeGarageParking: candidate.ParkingOptions.FreeGarageParking,
			PaidGarageParking: candidate.ParkingOptions.PaidGarageParking,
		}
	}
	if candidate.PaymentOptions != nil {
		clinic.Payment = entities.PaymentOptions{
			AcceptsCreditCards: candidate.PaymentOptions.AcceptsCreditCards,
			AcceptsDebitCards:  candidate.PaymentOptions.AcceptsDebitCards,
			AcceptsCashOnly:    candidate.PaymentOptions.AcceptsCashOnly,
			AcceptsNFC:         candidate.PaymentOptions.AcceptsNFC,
		}
	}

	// Hours are set only when the payload actually carries them: a live
	// open-now flag or a non-empty weekday description list.
	if candidate.RegularOpeningHours != nil && len(candidate.RegularOpeningHours.WeekdayDescriptions) > 0 {
		clinic.WeeklyHours = candidate.RegularOpeningHours.WeekdayDescriptions
	}
	if candidate.CurrentOpeningHours != nil && candidate.CurrentOpeningHours.OpenNow != nil {
		clinic.OpenNow = *candidate.CurrentOpeningHours.OpenNow
	}

	return clinic, nil
}

func normalizeBusinessStatus(status string) entities.BusinessStatus {
	switch entities.BusinessStatus(status) {
	case entities.BusinessStatusTemporarilyClosed:
		return entities.BusinessStatusTemporarilyClosed
	case entities.BusinessStatusPermanentlyClosed:
		return entities.BusinessStatusPermanentlyClosed
	default:
		return entities.BusinessStatusOperational
	}
}

func componentShortText(components []places.AddressComponent, target string) *string {
	for _, comp := range components {
		if hasComponentType(comp.Types, target) && comp.ShortText != "" {
			value := comp.ShortText
			return &value
		}
	}
	return nil
}

func componentLongText(components []places.AddressComponent, target string, fallbacks ...string) *string {
	for _, t := range append([]string{target}, fallbacks...) {
		for _, comp := range components {
			if hasComponentType(comp.Types, t) && comp.LongText != "" {
				value := comp.LongText
				return &value
			}
		}
	}
	return nil
}

func hasComponentType(types []string, target string) bool {
	for _, t := range types {
		if t == target {
			return true
		}
	}
	return false
}
