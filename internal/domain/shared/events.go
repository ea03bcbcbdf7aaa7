// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// User events
	EventUserRegistered EventType = "user.registered"
	EventUserUpdated    EventType = "user.updated"
	EventUserSuspended  EventType = "user.suspended"
	EventUserLeft       EventType = "user.left"

	// Offering events
	EventOfferingCreated EventType = "offering.created"
	EventOfferingUpdated EventType = "offering.updated"
	EventOfferingDeleted EventType = "offering.deleted"

	// Prayer events
	EventPrayerOffered   EventType = "prayer.offered"
	EventPrayerWithdrawn EventType = "prayer.withdrawn"

	// Guidance events
	EventGuidanceAdded EventType = "guidance.added"

	// Ranking events
	EventBoardRebuilt EventType = "ranking.board_rebuilt"
	EventRankChanged  EventType = "ranking.rank_changed"
	EventEnteredTopN  EventType = "ranking.entered_top_n"

	// Notification events
	EventNotificationCreated EventType = "notification.created"

	// System events
	EventSnapshotTaken EventType = "system.snapshot_taken"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes a single domain event.
type EventHandler func(event Event) error

// EventPublisher is the publish-only side of the event bus. Command handlers
// depend on this instead of the full bus.
type EventPublisher interface {
	Publish(event Event) error
}

// EventBus publishes domain events to subscribed handlers.
type EventBus interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
	Publish(event Event) error
	Close() error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// User Events
// ═══════════════════════════════════════════════════════════════════════════

// UserRegisteredEvent is emitted when a new user registers.
type UserRegisteredEvent struct {
	BaseEvent
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// NewUserRegisteredEvent creates the event.
func NewUserRegisteredEvent(userID, username, email, displayName string) UserRegisteredEvent {
	return UserRegisteredEvent{
		BaseEvent:   NewBaseEvent(EventUserRegistered, userID),
		Username:    username,
		Email:       email,
		DisplayName: displayName,
	}
}

// Payload implements Event interface.
func (e UserRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"username":     e.Username,
		"email":        e.Email,
		"display_name": e.DisplayName,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Offering Events
// ═══════════════════════════════════════════════════════════════════════════

// OfferingCreatedEvent is emitted when a new offering is placed on the altar.
type OfferingCreatedEvent struct {
	BaseEvent
	AuthorID string   `json:"author_id"`
	Title    string   `json:"title"`
	Genres   []string `json:"genres"`
}

// NewOfferingCreatedEvent creates the event.
func NewOfferingCreatedEvent(offeringID, authorID, title string, genres []string) OfferingCreatedEvent {
	return OfferingCreatedEvent{
		BaseEvent: NewBaseEvent(EventOfferingCreated, offeringID),
		AuthorID:  authorID,
		Title:     title,
		Genres:    genres,
	}
}

// Payload implements Event interface.
func (e OfferingCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"author_id": e.AuthorID,
		"title":     e.Title,
		"genres":    e.Genres,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Prayer Events
// ═══════════════════════════════════════════════════════════════════════════

// PrayerToggledEvent is emitted when a prayer is offered or withdrawn.
// Offered is true when the toggle added the prayer.
type PrayerToggledEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	AuthorID string `json:"author_id"`
	Offered  bool   `json:"offered"`
	Prayers  int    `json:"prayers"`
}

// NewPrayerToggledEvent creates the event. The aggregate is the offering.
func NewPrayerToggledEvent(offeringID, userID, authorID string, offered bool, prayers int) PrayerToggledEvent {
	eventType := EventPrayerOffered
	if !offered {
		eventType = EventPrayerWithdrawn
	}
	return PrayerToggledEvent{
		BaseEvent: NewBaseEvent(eventType, offeringID),
		UserID:    userID,
		AuthorID:  authorID,
		Offered:   offered,
		Prayers:   prayers,
	}
}

// Payload implements Event interface.
func (e PrayerToggledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"author_id": e.AuthorID,
		"offered":   e.Offered,
		"prayers":   e.Prayers,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Guidance Events
// ═══════════════════════════════════════════════════════════════════════════

// GuidanceAddedEvent is emitted when guidance is attached to an offering.
type GuidanceAddedEvent struct {
	BaseEvent
	GuidanceID string `json:"guidance_id"`
	UserID     string `json:"user_id"`
	AuthorID   string `json:"author_id"`
}

// NewGuidanceAddedEvent creates the event. The aggregate is the offering.
func NewGuidanceAddedEvent(offeringID, guidanceID, userID, authorID string) GuidanceAddedEvent {
	return GuidanceAddedEvent{
		BaseEvent:  NewBaseEvent(EventGuidanceAdded, offeringID),
		GuidanceID: guidanceID,
		UserID:     userID,
		AuthorID:   authorID,
	}
}

// Payload implements Event interface.
func (e GuidanceAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"guidance_id": e.GuidanceID,
		"user_id":     e.UserID,
		"author_id":   e.AuthorID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Ranking Events
// ═══════════════════════════════════════════════════════════════════════════

// BoardRebuiltEvent is emitted after a ranking board rebuild.
type BoardRebuiltEvent struct {
	BaseEvent
	Window  string `json:"window"`
	Entries int    `json:"entries"`
}

// NewBoardRebuiltEvent creates the event.
func NewBoardRebuiltEvent(window string, entries int) BoardRebuiltEvent {
	return BoardRebuiltEvent{
		BaseEvent: NewBaseEvent(EventBoardRebuilt, window),
		Window:    window,
		Entries:   entries,
	}
}

// Payload implements Event interface.
func (e BoardRebuiltEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"window":  e.Window,
		"entries": e.Entries,
	}
}
