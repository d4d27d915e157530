package events

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
	"github.com/zatekoja/itineraryconcierge/internal/domain/providers"
)

// MemoryEventBus fans plan events out to in-process subscribers. It pairs
// with the memory store backend.
type MemoryEventBus struct {
	fanout
}

var _ providers.EventBus = (*MemoryEventBus)(nil)

// NewMemoryEventBus creates a new in-process event bus
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{}
}

// Publish delivers the event to current subscribers without blocking.
func (b *MemoryEventBus) Publish(ctx context.Context, channel string, event *entities.PlanEvent) error {
	if dropped := b.deliver(channel, event); dropped > 0 {
		log.Warn().Str("channel", channel).Str("event_id", event.ID).Int("dropped", dropped).Msg("Subscriber channel full, skipping event")
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done.
func (b *MemoryEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.PlanEvent, error) {
	queue, _ := b.add(channel)
	go func() {
		<-ctx.Done()
		b.remove(channel, queue)
	}()
	return queue, nil
}

// Unsubscribe closes every subscriber of channel.
func (b *MemoryEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.drop(channel)
	return nil
}

// Close closes all subscriptions
func (b *MemoryEventBus) Close() error {
	b.shutdown()
	return nil
}
