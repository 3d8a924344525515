package providers

import (
	"context"

	"github.com/dermatlas/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// pipeline events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.DiscoveryEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.DiscoveryEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelDiscovery is the channel for clinic discovery events
	EventChannelDiscovery = "discovery:clinics"

	// EventChannelRuns is the channel for run lifecycle events
	EventChannelRuns = "discovery:runs"

	// EventChannelStatePrefix is the prefix for per-state channels
	EventChannelStatePrefix = "discovery:state:"
)

// GetStateChannel returns the channel name for a specific state
func GetStateChannel(stateCode string) string {
	return EventChannelStatePrefix + stateCode
}
