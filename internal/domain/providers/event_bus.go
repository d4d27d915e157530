package providers

import (
	"context"

	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.PlanEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.PlanEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelPlanUpdates carries every plan event.
	EventChannelPlanUpdates = "plan:updates"

	// EventChannelPlanPrefix is the prefix for plan-specific channels
	EventChannelPlanPrefix = "plan:"
)

// GetPlanChannel returns the channel name for a specific plan
func GetPlanChannel(planID string) string {
	return EventChannelPlanPrefix + planID
}
