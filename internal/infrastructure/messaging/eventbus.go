// Package messaging implements the event bus that carries Kumotsudai domain
// events. It provides an in-memory bus for single-instance deployments and a
// Redis Pub/Sub bus for distributed ones.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus is a simple in-memory implementation of shared.EventBus.
// Suitable for single-instance deployments and testing.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	asyncMode   bool
	workerPool  chan struct{}
	log         *logger.Logger
	metrics     *EventBusMetrics
	closed      bool
	closeCh     chan struct{}
	wg          sync.WaitGroup
}

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode enables asynchronous event processing
	AsyncMode bool

	// WorkerPoolSize is the number of concurrent workers for async processing
	WorkerPoolSize int

	// Logger for structured logging
	Logger *logger.Logger

	// EnableMetrics enables metrics collection
	EnableMetrics bool
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		EnableMetrics:  true,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	bus := &InMemoryEventBus{
		handlers:    make(map[shared.EventType][]shared.EventHandler),
		allHandlers: make([]shared.EventHandler, 0),
		asyncMode:   config.AsyncMode,
		workerPool:  make(chan struct{}, config.WorkerPoolSize),
		log:         config.Logger.With(logger.Component("eventbus")),
		closeCh:     make(chan struct{}),
	}

	if config.EnableMetrics {
		bus.metrics = NewEventBusMetrics()
	}

	return bus
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.log.Debug("subscribed handler", logger.String("event_type", string(eventType)))

	return nil
}

// SubscribeAll registers a handler for all events.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	b.log.Debug("subscribed global handler")

	return nil
}

// Publish sends an event to all subscribed handlers.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}

	// Collect handlers to call
	handlers := make([]shared.EventHandler, 0)
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("no handlers for event", logger.String("event_type", string(event.EventType())))
		return nil
	}

	// Track metrics
	if b.metrics != nil {
		b.metrics.RecordPublish(event.EventType())
	}

	// Execute handlers
	if b.asyncMode {
		for _, handler := range handlers {
			b.executeAsync(event, handler)
		}
	} else {
		for _, handler := range handlers {
			if err := b.executeSync(event, handler); err != nil {
				b.log.Error("handler error",
					logger.String("event_type", string(event.EventType())),
					logger.Err(err),
				)
			}
		}
	}

	return nil
}

// executeAsync executes a handler asynchronously using the worker pool.
func (b *InMemoryEventBus) executeAsync(event shared.Event, handler shared.EventHandler) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		// Acquire worker slot
		select {
		case b.workerPool <- struct{}{}:
			defer func() { <-b.workerPool }()
		case <-b.closeCh:
			return
		}

		start := time.Now()
		err := handler(event)
		duration := time.Since(start)

		if b.metrics != nil {
			b.metrics.RecordHandlerExecution(event.EventType(), duration, err == nil)
		}

		if err != nil {
			b.log.Error("async handler error",
				logger.String("event_type", string(event.EventType())),
				logger.Duration("duration", duration),
				logger.Err(err),
			)
		}
	}()
}

// executeSync executes a handler synchronously.
func (b *InMemoryEventBus) executeSync(event shared.Event, handler shared.EventHandler) error {
	start := time.Now()
	err := handler(event)
	duration := time.Since(start)

	if b.metrics != nil {
		b.metrics.RecordHandlerExecution(event.EventType(), duration, err == nil)
	}

	return err
}

// Close gracefully shuts down the event bus.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	// Wait for pending handlers to complete
	b.wg.Wait()

	b.log.Info("event bus closed")
	return nil
}

// Metrics returns the current metrics.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// RedisEventBus is a Redis Pub/Sub based implementation of shared.EventBus.
// Suitable for distributed deployments where multiple instances share events.
type RedisEventBus struct {
	client      RedisClient
	localBus    *InMemoryEventBus
	channelName string
	instanceID  string
	log         *logger.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
}

// RedisClient defines the interface for Redis Pub/Sub operations. This keeps
// the bus testable and independent of a concrete Redis client.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error)
	Close() error
}

// RedisMessage represents a message received from Redis Pub/Sub.
type RedisMessage struct {
	Channel string
	Payload string
	Err     error
}

// RedisEventBusConfig contains configuration for RedisEventBus.
type RedisEventBusConfig struct {
	// Client is the Redis client to use
	Client RedisClient

	// ChannelName is the Redis channel for events (default: "kumotsudai:events")
	ChannelName string

	// InstanceID uniquely identifies this instance (for filtering self-published events)
	InstanceID string

	// LocalBusConfig is the config for the local in-memory bus
	LocalBusConfig InMemoryEventBusConfig

	// Logger for structured logging
	Logger *logger.Logger
}

// NewRedisEventBus creates a new Redis-based event bus.
func NewRedisEventBus(config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.ChannelName == "" {
		config.ChannelName = "kumotsudai:events"
	}
	if config.InstanceID == "" {
		config.InstanceID = generateInstanceID()
	}
	if config.Logger == nil {
		config.Logger = logger.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	bus := &RedisEventBus{
		client:      config.Client,
		localBus:    NewInMemoryEventBus(config.LocalBusConfig),
		channelName: config.ChannelName,
		instanceID:  config.InstanceID,
		log:         config.Logger.With(logger.Component("redis_eventbus")),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start subscription listener
	if err := bus.startSubscriber(); err != nil {
		cancel()
		return nil, fmt.Errorf("start subscriber: %w", err)
	}

	return bus, nil
}

// Subscribe registers a handler for a specific event type.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.localBus.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler for all events.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.localBus.SubscribeAll(handler)
}

// Publish sends an event to Redis Pub/Sub and local handlers.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	b.mu.RUnlock()

	// Serialize event for Redis
	envelope := eventEnvelope{
		InstanceID:  b.instanceID,
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// Publish to Redis; a failure falls back to local processing only.
	if err := b.client.Publish(b.ctx, b.channelName, string(data)); err != nil {
		b.log.Error("failed to publish to redis", logger.Err(err))
	}

	// Also publish locally for handlers in this instance
	return b.localBus.Publish(event)
}

// startSubscriber starts the Redis subscription listener.
func (b *RedisEventBus) startSubscriber() error {
	messages, err := b.client.Subscribe(b.ctx, b.channelName)
	if err != nil {
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.subscriptionLoop(messages)
	}()

	return nil
}

// subscriptionLoop processes messages from Redis.
func (b *RedisEventBus) subscriptionLoop(messages <-chan RedisMessage) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg.Err != nil {
				b.log.Error("redis subscription error", logger.Err(msg.Err))
				continue
			}

			b.handleRedisMessage(msg)
		}
	}
}

// handleRedisMessage processes a message from Redis.
func (b *RedisEventBus) handleRedisMessage(msg RedisMessage) {
	var envelope eventEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
		b.log.Error("failed to unmarshal event", logger.Err(err))
		return
	}

	// Skip events from self (already processed locally)
	if envelope.InstanceID == b.instanceID {
		return
	}

	event, err := decodeEnvelope(envelope)
	if err != nil {
		b.log.Error("failed to decode remote event",
			logger.String("event_type", string(envelope.EventType)),
			logger.Err(err),
		)
		return
	}

	if err := b.localBus.Publish(event); err != nil {
		b.log.Error("failed to process remote event", logger.Err(err))
	}
}

// Close gracefully shuts down the Redis event bus.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	if err := b.localBus.Close(); err != nil {
		b.log.Error("failed to close local bus", logger.Err(err))
	}

	b.log.Info("redis event bus closed")
	return nil
}

// Metrics returns the current metrics from the local bus.
func (b *RedisEventBus) Metrics() *EventBusMetrics {
	return b.localBus.Metrics()
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT ENVELOPE (for serialization)
// ══════════════════════════════════════════════════════════════════════════════

type eventEnvelope struct {
	InstanceID  string                 `json:"instance_id"`
	EventType   shared.EventType       `json:"event_type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}

// decodeEnvelope rebuilds the concrete event struct for known event types so
// handlers can type-assert remote events exactly like local ones. Unknown
// types fall back to a generic remote event carrying the raw payload.
func decodeEnvelope(envelope eventEnvelope) (shared.Event, error) {
	base := shared.BaseEvent{
		Type:        envelope.EventType,
		Timestamp:   envelope.OccurredAt,
		AggregateId: envelope.AggregateID,
		Version:     1,
	}

	data, err := json.Marshal(envelope.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	switch envelope.EventType {
	case shared.EventUserRegistered:
		var e shared.UserRegisteredEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.EventType, err)
		}
		e.BaseEvent = base
		return e, nil

	case shared.EventOfferingCreated:
		var e shared.OfferingCreatedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.EventType, err)
		}
		e.BaseEvent = base
		return e, nil

	case shared.EventPrayerOffered, shared.EventPrayerWithdrawn:
		var e shared.PrayerToggledEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.EventType, err)
		}
		e.BaseEvent = base
		return e, nil

	case shared.EventGuidanceAdded:
		var e shared.GuidanceAddedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.EventType, err)
		}
		e.BaseEvent = base
		return e, nil

	case shared.EventBoardRebuilt:
		var e shared.BoardRebuiltEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.EventType, err)
		}
		e.BaseEvent = base
		return e, nil

	default:
		return &remoteEvent{
			eventType:   envelope.EventType,
			aggregateID: envelope.AggregateID,
			occurredAt:  envelope.OccurredAt,
			payload:     envelope.Payload,
		}, nil
	}
}

// remoteEvent carries an event type the decoder has no concrete struct for.
// Subscribers to such types read the payload map directly.
type remoteEvent struct {
	eventType   shared.EventType
	aggregateID string
	occurredAt  time.Time
	payload     map[string]interface{}
}

func (e *remoteEvent) EventType() shared.EventType { return e.eventType }

func (e *remoteEvent) AggregateID() string { return e.aggregateID }

func (e *remoteEvent) OccurredAt() time.Time { return e.occurredAt }

func (e *remoteEvent) Payload() map[string]interface{} { return e.payload }

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics tracks event bus performance metrics.
type EventBusMetrics struct {
	mu sync.RWMutex

	// Publish metrics
	PublishedTotal map[shared.EventType]int64

	// Handler execution metrics
	HandlerExecutions    int64
	HandlerSuccesses     int64
	HandlerFailures      int64
	HandlerTotalDuration time.Duration
	HandlersByType       map[shared.EventType]int64

	// Last reset time
	LastReset time.Time
}

// NewEventBusMetrics creates a new metrics tracker.
func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{
		PublishedTotal: make(map[shared.EventType]int64),
		HandlersByType: make(map[shared.EventType]int64),
		LastReset:      time.Now(),
	}
}

// RecordPublish records a publish event.
func (m *EventBusMetrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishedTotal[eventType]++
}

// RecordHandlerExecution records a handler execution.
func (m *EventBusMetrics) RecordHandlerExecution(eventType shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.HandlerExecutions++
	m.HandlerTotalDuration += duration
	m.HandlersByType[eventType]++

	if success {
		m.HandlerSuccesses++
	} else {
		m.HandlerFailures++
	}
}

// Snapshot returns a point-in-time copy of the current metrics.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	avgDuration := time.Duration(0)
	if m.HandlerExecutions > 0 {
		avgDuration = m.HandlerTotalDuration / time.Duration(m.HandlerExecutions)
	}

	var published int64
	for _, v := range m.PublishedTotal {
		published += v
	}

	return EventBusMetricsSnapshot{
		TotalPublished:         published,
		TotalHandlerExecs:      m.HandlerExecutions,
		HandlerSuccessRate:     m.successRate(),
		AverageHandlerDuration: avgDuration,
		LastReset:              m.LastReset,
	}
}

func (m *EventBusMetrics) successRate() float64 {
	if m.HandlerExecutions == 0 {
		return 1.0
	}
	return float64(m.HandlerSuccesses) / float64(m.HandlerExecutions)
}

// EventBusMetricsSnapshot is a point-in-time snapshot of metrics.
type EventBusMetricsSnapshot struct {
	TotalPublished         int64
	TotalHandlerExecs      int64
	HandlerSuccessRate     float64
	AverageHandlerDuration time.Duration
	LastReset              time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS AND HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// ErrEventBusClosed is returned when operations are attempted on a closed bus.
var ErrEventBusClosed = errors.New("event bus is closed")

// generateInstanceID generates a unique instance identifier.
func generateInstanceID() string {
	return fmt.Sprintf("instance-%d", time.Now().UnixNano())
}
