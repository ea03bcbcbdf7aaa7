package redis

import (
	"context"
	"sync"

	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT BRIDGE
// ══════════════════════════════════════════════════════════════════════════════

// EventBridge adapts a Cache to the messaging.RedisClient interface so the
// Redis event bus can run over the shared connection pool.
type EventBridge struct {
	cache *Cache

	mu   sync.Mutex
	subs []func()
}

// NewEventBridge creates a new EventBridge.
func NewEventBridge(cache *Cache) *EventBridge {
	return &EventBridge{cache: cache}
}

// Publish sends a raw message to a channel. Implements messaging.RedisClient.
func (b *EventBridge) Publish(ctx context.Context, channel string, message interface{}) error {
	if channel == "" {
		return ErrCacheKeyEmpty
	}
	return b.cache.Client().Publish(ctx, channel, message).Err()
}

// Subscribe opens a subscription and pumps messages into the returned channel.
// The pump stops when ctx is cancelled or the bridge is closed.
func (b *EventBridge) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	pubsub := b.cache.Subscribe(ctx, channels...)

	// Fail fast when the subscription cannot be established.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan messaging.RedisMessage)
	done := make(chan struct{})

	b.mu.Lock()
	b.subs = append(b.subs, func() {
		pubsub.Close()
		<-done
	})
	b.mu.Unlock()

	go func() {
		defer close(done)
		defer close(out)

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					pubsub.Close()
					return
				}
			}
		}
	}()

	return out, nil
}

// Close shuts down all open subscriptions. The underlying Cache stays open;
// its owner closes it.
func (b *EventBridge) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, stop := range subs {
		stop()
	}
	return nil
}
