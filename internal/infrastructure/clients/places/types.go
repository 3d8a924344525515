package places

// Request and response shapes for the places-search upstream (Places API New).
// A Place is the raw candidate consumed once by the classifier and normalizer;
// it is never persisted.

// TextSearchRequest is the payload for places:searchText
type TextSearchRequest struct {
	TextQuery  string `json:"textQuery"`
	RegionCode string `json:"regionCode,omitempty"`
	PageSize   int    `json:"pageSize,omitempty"`
	PageToken  string `json:"pageToken,omitempty"`
}

// NearbySearchRequest is the payload for places:searchNearby
type NearbySearchRequest struct {
	LocationRestriction LocationRestriction `json:"locationRestriction"`
	IncludedTypes       []string            `json:"includedTypes,omitempty"`
	MaxResultCount      int                 `json:"maxResultCount,omitempty"`
	RankPreference      string              `json:"rankPreference,omitempty"`
}

// RankPreferenceDistance asks the upstream for nearest-first ordering so grid
// coverage stays spatially uniform instead of popularity-biased.
const RankPreferenceDistance = "DISTANCE"

// LocationRestriction bounds a nearby search
type LocationRestriction struct {
	Circle Circle `json:"circle"`
}

// Circle is a center point plus radius in meters
type Circle struct {
	Center LatLng  `json:"center"`
	Radius float64 `json:"radius"`
}

// LatLng represents a geographic point
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SearchResponse is the common response shape of both search endpoints
type SearchResponse struct {
	Places        []Place `json:"places"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// Place is a raw upstream search result (an unclassified candidate)
type Place struct {
	ID                       string                `json:"id"`
	DisplayName              LocalizedText         `json:"displayName"`
	FormattedAddress         string                `json:"formattedAddress"`
	AddressComponents        []AddressComponent    `json:"addressComponents,omitempty"`
	Location                 *LatLng               `json:"location,omitempty"`
	Types                    []string              `json:"types,omitempty"`
	PrimaryType              string                `json:"primaryType,omitempty"`
	BusinessStatus           string                `json:"businessStatus,omitempty"`
	Rating                   float64               `json:"rating,omitempty"`
	UserRatingCount          int                   `json:"userRatingCount,omitempty"`
	NationalPhoneNumber      string                `json:"nationalPhoneNumber,omitempty"`
	InternationalPhoneNumber string                `json:"internationalPhoneNumber,omitempty"`
	WebsiteURI               string                `json:"websiteUri,omitempty"`
	GoogleMapsURI            string                `json:"googleMapsUri,omitempty"`
	PriceLevel               string                `json:"priceLevel,omitempty"`
	RegularOpeningHours      *OpeningHours         `json:"regularOpeningHours,omitempty"`
	CurrentOpeningHours      *OpeningHours         `json:"currentOpeningHours,omitempty"`
	AccessibilityOptions     *AccessibilityOptions `json:"accessibilityOptions,omitempty"`
	ParkingOptions           *ParkingOptions       `json:"parkingOptions,omitempty"`
	PaymentOptions           *PaymentOptions       `json:"paymentOptions,omitempty"`
	Photos                   []Photo               `json:"photos,omitempty"`
}

// LocalizedText is an upstream localized string
type LocalizedText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// AddressComponent is one tagged piece of a decomposed address
type AddressComponent struct {
	LongText  string   `json:"longText"`
	ShortText string   `json:"shortText"`
	Types     []string `json:"types"`
}

// OpeningHours carries the live flag and the free-text weekly schedule
type OpeningHours struct {
	OpenNow             *bool    `json:"openNow,omitempty"`
	WeekdayDescriptions []string `json:"weekdayDescriptions,omitempty"`
}

// AccessibilityOptions mirrors the upstream wheelchair accessibility flags
type AccessibilityOptions struct {
	WheelchairAccessibleParking  bool `json:"wheelchairAccessibleParking,omitempty"`
	WheelchairAccessibleEntrance bool `json:"wheelchairAccessibleEntrance,omitempty"`
	WheelchairAccessibleRestroom bool `json:"wheelchairAccessibleRestroom,omitempty"`
	WheelchairAccessibleSeating  bool `json:"wheelchairAccessibleSeating,omitempty"`
}

// ParkingOptions mirrors the upstream parking flags
type ParkingOptions struct {
	FreeParkingLot    bool `json:"freeParkingLot,omitempty"`
	PaidParkingLot    bool `json:"paidParkingLot,omitempty"`
	FreeStreetParking bool `json:"freeStreetParking,omitempty"`
	PaidStreetParking bool `json:"paidStreetParking,omitempty"`
	ValetParking      bool `json:"valetParking,omitempty"`
	FreeGarageParking bool `json:"freeGarageParking,omitempty"`
	PaidGarageParking bool `json:"paidGarageParking,omitempty"`
}

// PaymentOptions mirrors the upstream payment flags
type PaymentOptions struct {
	AcceptsCreditCards bool `json:"acceptsCreditCards,omitempty"`
	AcceptsDebitCards  bool `json:"acceptsDebitCards,omitempty"`
	AcceptsCashOnly    bool `json:"acceptsCashOnly,omitempty"`
	AcceptsNFC         bool `json:"acceptsNfc,omitempty"`
}

// Photo is a reference to an upstream photo resource
type Photo struct {
	Name     string `json:"name"`
	WidthPx  int    `json:"widthPx,omitempty"`
	HeightPx int    `json:"heightPx,omitempty"`
}

// Name returns the display name text
func (p *Place) Name() string {
	return p.DisplayName.Text
}

// PhotoRefs returns the photo resource names
func (p *Place) PhotoRefs() []string {
	if len(p.Photos) == 0 {
		return nil
	}
	refs := make([]string, 0, len(p.Photos))
	for _, photo := range p.Photos {
		refs = append(refs, photo.Name)
	}
	return refs
}
