package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
	"github.com/zatekoja/itineraryconcierge/internal/domain/providers"
	redisclient "github.com/zatekoja/itineraryconcierge/internal/infrastructure/clients/redis"
)

// RedisEventBus relays plan events through Redis Pub/Sub so that API
// replicas and the stream server see each other's commits. Each channel
// holds one Redis subscription shared by all local subscribers.
type RedisEventBus struct {
	fanout
	client *redisclient.Client

	subMu   sync.Mutex
	pubsubs map[string]*redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:  client,
		pubsubs: make(map[string]*redis.PubSub),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Publish sends the event to every process subscribed to channel.
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.PlanEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	receivers, err := b.client.Client().Publish(ctx, channel, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().Str("channel", channel).Str("event_id", event.ID).Int64("version", event.Version).Int64("receivers", receivers).Msg("Published plan event")
	return nil
}

// Subscribe returns a queue of events on channel that closes when ctx is
// done. The Redis subscription is confirmed before it returns, so events
// published afterwards are not missed.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.PlanEvent, error) {
	b.subMu.Lock()
	queue, first := b.add(channel)
	if first {
		if err := b.listen(ctx, channel); err != nil {
			b.subMu.Unlock()
			b.remove(channel, queue)
			return nil, err
		}
	}
	b.subMu.Unlock()

	log.Info().Str("channel", channel).Int("subscribers", b.count(channel)).Msg("Subscribed to channel")

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.release(channel, queue)
	}()

	return queue, nil
}

// listen opens the shared Redis subscription for channel. Callers hold subMu.
func (b *RedisEventBus) listen(ctx context.Context, channel string) error {
	pubsub := b.client.Client().Subscribe(b.ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	b.pubsubs[channel] = pubsub
	go b.relay(channel, pubsub)
	return nil
}

// relay decodes messages from one Redis subscription into the local queues.
func (b *RedisEventBus) relay(channel string, pubsub *redis.PubSub) {
	messages := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event entities.PlanEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("Dropping undecodable plan event")
				continue
			}
			if dropped := b.deliver(channel, &event); dropped > 0 {
				log.Warn().Str("channel", channel).Str("event_id", event.ID).Int("dropped", dropped).Msg("Subscriber channel full, skipping event")
			}
		}
	}
}

// release removes one local subscriber and closes the Redis subscription
// when it was the last.
func (b *RedisEventBus) release(channel string, queue chan *entities.PlanEvent) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	if !b.remove(channel, queue) {
		return
	}
	if err := b.closePubSub(channel); err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("Failed to close subscription")
	}
}

// closePubSub closes the Redis subscription for channel. Callers hold subMu.
func (b *RedisEventBus) closePubSub(channel string) error {
	pubsub, ok := b.pubsubs[channel]
	if !ok {
		return nil
	}
	delete(b.pubsubs, channel)
	if err := pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	log.Info().Str("channel", channel).Msg("Closed subscription")
	return nil
}

// Unsubscribe closes every local subscriber of channel.
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.drop(channel)
	return b.closePubSub(channel)
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()
	b.shutdown()

	b.subMu.Lock()
	defer b.subMu.Unlock()
	var errs []error
	for channel := range b.pubsubs {
		errs = append(errs, b.closePubSub(channel))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	log.Info().Msg("Event bus closed")
	return nil
}
