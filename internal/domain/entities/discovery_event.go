package entities

import (
	"time"

	"github.com/google/uuid"
)

// DiscoveryEventType represents the type of pipeline event
type DiscoveryEventType string

const (
	DiscoveryEventTypeClinicDiscovered DiscoveryEventType = "clinic_discovered"
	DiscoveryEventTypeClinicRefreshed  DiscoveryEventType = "clinic_refreshed"
	DiscoveryEventTypeRunCompleted     DiscoveryEventType = "run_completed"
)

// DiscoveryEvent notifies the directory site that the pipeline changed the
// clinic set. Consumers refresh their listings on receipt.
type DiscoveryEvent struct {
	ID        string                 `json:"id"`
	RunID     string                 `json:"run_id"`
	EventType DiscoveryEventType     `json:"event_type"`
	PlaceID   string                 `json:"place_id,omitempty"`
	StateCode string                 `json:"state_code,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// NewDiscoveryEvent creates a new discovery event
func NewDiscoveryEvent(runID string, eventType DiscoveryEventType, placeID, stateCode string, details map[string]interface{}) *DiscoveryEvent {
	return &DiscoveryEvent{
		ID:        uuid.NewString(),
		RunID:     runID,
		EventType: eventType,
		PlaceID:   placeID,
		StateCode: stateCode,
		Timestamp: time.Now(),
		Details:   details,
	}
}
