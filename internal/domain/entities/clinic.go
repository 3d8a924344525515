package entities

import (
	"time"
)

// BusinessStatus mirrors the upstream operational status of a place
type BusinessStatus string

const (
	BusinessStatusOperational       BusinessStatus = "OPERATIONAL"
	BusinessStatusTemporarilyClosed BusinessStatus = "CLOSED_TEMPORARILY"
	BusinessStatusPermanentlyClosed BusinessStatus = "CLOSED_PERMANENTLY"
)

// Clinic is the canonical, persisted dermatology clinic entity. It is
// uniquely identified by PlaceID across all states and collection runs.
type Clinic struct {
	PlaceID            string               `json:"place_id" db:"place_id"`
	Name               string               `json:"name" db:"name"`
	FormattedAddress   string               `json:"formatted_address" db:"formatted_address"`
	City               *string              `json:"city,omitempty" db:"city"`
	StateCode          *string              `json:"state_code,omitempty" db:"state_code"`
	PostalCode         *string              `json:"postal_code,omitempty" db:"postal_code"`
	Location           Location             `json:"location" db:"-"`
	PrimaryType        string               `json:"primary_type" db:"primary_type"`
	Types              []string             `json:"types,omitempty" db:"-"`
	Rating             float64              `json:"rating" db:"rating"`
	ReviewCount        int                  `json:"review_count" db:"review_count"`
	NationalPhone      string               `json:"national_phone" db:"national_phone"`
	InternationalPhone string               `json:"international_phone" db:"international_phone"`
	Website            string               `json:"website" db:"website"`
	MapsURI            string               `json:"maps_uri" db:"maps_uri"`
	BusinessStatus     BusinessStatus       `json:"business_status" db:"business_status"`
	Accessibility      AccessibilityOptions `json:"accessibility" db:"-"`
	Parking            ParkingOptions       `json:"parking" db:"-"`
	Payment            PaymentOptions       `json:"payment" db:"-"`
	PriceLevel         string               `json:"price_level" db:"price_level"`
	PhotoRefs          []string             `json:"photo_refs,omitempty" db:"-"`
	WeeklyHours        []string             `json:"weekly_hours,omitempty" db:"-"`
	OpenNow            bool                 `json:"open_now" db:"open_now"`
	LastFetchedAt      time.Time            `json:"last_fetched_at" db:"last_fetched_at"`
	CreatedAt          time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at" db:"updated_at"`
}

// Location represents geographical coordinates
type Location struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// AccessibilityOptions holds the wheelchair accessibility flags
type AccessibilityOptions struct {
	WheelchairAccessibleParking  bool `json:"wheelchair_accessible_parking" db:"wc_parking"`
	WheelchairAccessibleEntrance bool `json:"wheelchair_accessible_entrance" db:"wc_entrance"`
	WheelchairAccessibleRestroom bool `json:"wheelchair_accessible_restroom" db:"wc_restroom"`
	WheelchairAccessibleSeating  bool `json:"wheelchair_accessible_seating" db:"wc_seating"`
}

// ParkingOptions holds the parking availability flags
type ParkingOptions struct {
	FreeParkingLot    bool `json:"free_parking_lot" db:"free_parking_lot"`
	PaidParkingLot    bool `json:"paid_parking_lot" db:"paid_parking_lot"`
	FreeStreetParking bool `json:"free_street_parking" db:"free_street_parking"`
	PaidStreetParking bool `json:"paid_street_parking" db:"paid_street_parking"`
	ValetParking      bool `json:"valet_parking" db:"valet_parking"`
	FreeGarageParking bool `json:"free_garage_parking" db:"free_garage_parking"`
	PaidGarageParking bool `json:"paid_garage_parking" db:"paid_garage_parking"`
}

// PaymentOptions holds the accepted payment method flags
type PaymentOptions struct {
	AcceptsCreditCards bool `json:"accepts_credit_cards" db:"accepts_credit_cards"`
	AcceptsDebitCards  bool `json:"accepts_debit_cards" db:"accepts_debit_cards"`
	AcceptsCashOnly    bool `json:"accepts_cash_only" db:"accepts_cash_only"`
	AcceptsNFC         bool `json:"accepts_nfc" db:"accepts_nfc"`
}

// StaleAfterDays is the freshness window; clinics fetched at least this many
// days ago are re-collected.
const StaleAfterDays = 30

// IsStale reports whether the clinic's snapshot is due for re-collection as of
// the given day. Freshness is evaluated at day granularity.
func (c *Clinic) IsStale(asOf time.Time) bool {
	fetched := c.LastFetchedAt.Truncate(24 * time.Hour)
	cutoff := asOf.Truncate(24 * time.Hour).AddDate(0, 0, -StaleAfterDays)
	return !fetched.After(cutoff)
}
