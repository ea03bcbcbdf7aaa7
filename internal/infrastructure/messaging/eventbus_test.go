package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
)

func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:     false,
		EnableMetrics: true,
	})
}

func TestInMemoryEventBus(t *testing.T) {
	t.Run("delivers to typed subscribers", func(t *testing.T) {
		bus := newSyncBus()
		defer bus.Close()

		var got []shared.EventType
		require.NoError(t, bus.Subscribe(shared.EventPrayerOffered, func(e shared.Event) error {
			got = append(got, e.EventType())
			return nil
		}))

		require.NoError(t, bus.Publish(shared.NewPrayerToggledEvent("off-1", "u-1", "u-2", true, 3)))
		require.NoError(t, bus.Publish(shared.NewGuidanceAddedEvent("off-1", "g-1", "u-1", "u-2")))

		assert.Equal(t, []shared.EventType{shared.EventPrayerOffered}, got)
	})

	t.Run("delivers everything to global subscribers", func(t *testing.T) {
		bus := newSyncBus()
		defer bus.Close()

		var count int
		require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
			count++
			return nil
		}))

		require.NoError(t, bus.Publish(shared.NewPrayerToggledEvent("off-1", "u-1", "u-2", true, 1)))
		require.NoError(t, bus.Publish(shared.NewBoardRebuiltEvent("week", 10)))

		assert.Equal(t, 2, count)
	})

	t.Run("handler error does not stop other handlers", func(t *testing.T) {
		bus := newSyncBus()
		defer bus.Close()

		var secondCalled bool
		require.NoError(t, bus.Subscribe(shared.EventBoardRebuilt, func(e shared.Event) error {
			return errors.New("boom")
		}))
		require.NoError(t, bus.Subscribe(shared.EventBoardRebuilt, func(e shared.Event) error {
			secondCalled = true
			return nil
		}))

		require.NoError(t, bus.Publish(shared.NewBoardRebuiltEvent("all", 5)))
		assert.True(t, secondCalled)
	})

	t.Run("async delivery completes before close", func(t *testing.T) {
		bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

		var mu sync.Mutex
		var count int
		require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		}))

		for i := 0; i < 5; i++ {
			require.NoError(t, bus.Publish(shared.NewBoardRebuiltEvent("month", i)))
		}
		require.NoError(t, bus.Close())

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 5, count)
	})

	t.Run("rejects nil handler and nil event", func(t *testing.T) {
		bus := newSyncBus()
		defer bus.Close()

		assert.Error(t, bus.Subscribe(shared.EventPrayerOffered, nil))
		assert.Error(t, bus.SubscribeAll(nil))
		assert.Error(t, bus.Publish(nil))
	})

	t.Run("closed bus rejects operations", func(t *testing.T) {
		bus := newSyncBus()
		require.NoError(t, bus.Close())

		err := bus.Publish(shared.NewBoardRebuiltEvent("all", 0))
		assert.ErrorIs(t, err, ErrEventBusClosed)
		assert.ErrorIs(t, bus.Subscribe(shared.EventPrayerOffered, func(shared.Event) error { return nil }), ErrEventBusClosed)
		assert.NoError(t, bus.Close())
	})

	t.Run("metrics track publishes and handler outcomes", func(t *testing.T) {
		bus := newSyncBus()
		defer bus.Close()

		require.NoError(t, bus.Subscribe(shared.EventPrayerOffered, func(shared.Event) error { return nil }))
		require.NoError(t, bus.Subscribe(shared.EventPrayerOffered, func(shared.Event) error { return errors.New("boom") }))
		require.NoError(t, bus.Publish(shared.NewPrayerToggledEvent("off-1", "u-1", "u-2", true, 1)))

		snap := bus.Metrics().Snapshot()
		assert.Equal(t, int64(1), snap.TotalPublished)
		assert.Equal(t, int64(2), snap.TotalHandlerExecs)
		assert.InDelta(t, 0.5, snap.HandlerSuccessRate, 0.001)
	})
}

// fakeRedisClient implements RedisClient for tests. Publishing loops messages
// back into every subscription, imitating Redis Pub/Sub.
type fakeRedisClient struct {
	mu   sync.Mutex
	subs []chan RedisMessage
}

func (f *fakeRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, _ := message.(string)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		sub <- RedisMessage{Channel: channel, Payload: payload}
	}
	return nil
}

func (f *fakeRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	ch := make(chan RedisMessage, 16)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch, nil
}

func (f *fakeRedisClient) Close() error { return nil }

func (f *fakeRedisClient) inject(msg RedisMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		sub <- msg
	}
}

func TestRedisEventBus(t *testing.T) {
	newBus := func(t *testing.T, client *fakeRedisClient, instanceID string) *RedisEventBus {
		t.Helper()
		bus, err := NewRedisEventBus(RedisEventBusConfig{
			Client:         client,
			InstanceID:     instanceID,
			LocalBusConfig: InMemoryEventBusConfig{AsyncMode: false},
		})
		require.NoError(t, err)
		return bus
	}

	t.Run("publishes to redis and local handlers", func(t *testing.T) {
		client := &fakeRedisClient{}
		bus := newBus(t, client, "inst-a")
		defer bus.Close()

		var local int
		require.NoError(t, bus.Subscribe(shared.EventPrayerOffered, func(shared.Event) error {
			local++
			return nil
		}))

		require.NoError(t, bus.Publish(shared.NewPrayerToggledEvent("off-1", "u-1", "u-2", true, 1)))

		// Local delivery happens once; the looped-back self-published message
		// is filtered by instance ID.
		require.Eventually(t, func() bool { return local == 1 }, time.Second, 10*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, local)
	})

	t.Run("processes events from other instances", func(t *testing.T) {
		client := &fakeRedisClient{}
		bus := newBus(t, client, "inst-a")
		defer bus.Close()

		var mu sync.Mutex
		var gotAggregate string
		require.NoError(t, bus.Subscribe(shared.EventGuidanceAdded, func(e shared.Event) error {
			mu.Lock()
			gotAggregate = e.AggregateID()
			mu.Unlock()
			return nil
		}))

		envelope, err := json.Marshal(eventEnvelope{
			InstanceID:  "inst-b",
			EventType:   shared.EventGuidanceAdded,
			AggregateID: "off-9",
			OccurredAt:  time.Now().UTC(),
			Payload:     map[string]interface{}{"guidance_id": "g-1"},
		})
		require.NoError(t, err)
		client.inject(RedisMessage{Channel: "kumotsudai:events", Payload: string(envelope)})

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return gotAggregate == "off-9"
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("remote events decode to concrete structs", func(t *testing.T) {
		client := &fakeRedisClient{}
		busA := newBus(t, client, "inst-a")
		defer busA.Close()
		busB := newBus(t, client, "inst-b")
		defer busB.Close()

		var mu sync.Mutex
		var matched int
		var got shared.PrayerToggledEvent
		require.NoError(t, busB.Subscribe(shared.EventPrayerOffered, func(e shared.Event) error {
			prayerEvent, ok := e.(shared.PrayerToggledEvent)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				matched++
				got = prayerEvent
			}
			return nil
		}))

		require.NoError(t, busA.Publish(shared.NewPrayerToggledEvent("off-1", "u-1", "u-2", true, 4)))

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return matched == 1
		}, time.Second, 10*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "off-1", got.AggregateID())
		assert.Equal(t, "u-1", got.UserID)
		assert.Equal(t, "u-2", got.AuthorID)
		assert.True(t, got.Offered)
		assert.Equal(t, 4, got.Prayers)
	})

	t.Run("unknown remote types fall back to the payload map", func(t *testing.T) {
		client := &fakeRedisClient{}
		bus := newBus(t, client, "inst-a")
		defer bus.Close()

		var mu sync.Mutex
		var payload map[string]interface{}
		require.NoError(t, bus.Subscribe(shared.EventSnapshotTaken, func(e shared.Event) error {
			mu.Lock()
			payload = e.Payload()
			mu.Unlock()
			return nil
		}))

		envelope, err := json.Marshal(eventEnvelope{
			InstanceID:  "inst-b",
			EventType:   shared.EventSnapshotTaken,
			AggregateID: "week",
			OccurredAt:  time.Now().UTC(),
			Payload:     map[string]interface{}{"entries": float64(12)},
		})
		require.NoError(t, err)
		client.inject(RedisMessage{Channel: "kumotsudai:events", Payload: string(envelope)})

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return payload != nil
		}, time.Second, 10*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, float64(12), payload["entries"])
	})

	t.Run("requires a client", func(t *testing.T) {
		_, err := NewRedisEventBus(RedisEventBusConfig{})
		assert.Error(t, err)
	})
}
