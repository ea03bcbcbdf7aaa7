// Package notification contains in-app notices delivered to users when
// their offerings gather prayers or guidance.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
)

// Type classifies a notice.
type Type string

const (
	// TypePrayerReceived - someone prayed for one of the user's offerings.
	TypePrayerReceived Type = "prayer_received"

	// TypeGuidanceReceived - someone left guidance on one of the user's offerings.
	TypeGuidanceReceived Type = "guidance_received"

	// TypeEnteredTopN - one of the user's offerings entered the top of a board.
	TypeEnteredTopN Type = "entered_top_n"
)

// IsValid checks that the type is a known value.
func (t Type) IsValid() bool {
	switch t {
	case TypePrayerReceived, TypeGuidanceReceived, TypeEnteredTopN:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t Type) String() string {
	return string(t)
}

// Notification is a single in-app notice.
type Notification struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// UserID is the recipient.
	UserID string

	// Type classifies the notice.
	Type Type

	// OfferingID is the offering the notice concerns.
	OfferingID string

	// ActorID is the user whose action triggered the notice (optional).
	ActorID string

	// Message is the rendered notice text.
	Message string

	// Read marks whether the user has seen the notice.
	Read bool

	// CreatedAt is when the notice was created.
	CreatedAt time.Time
}

// NewNotification creates a notice with validation.
func NewNotification(id, userID string, typ Type, offeringID, actorID, message string) (*Notification, error) {
	if id == "" || userID == "" {
		return nil, shared.NewDomainError("notification", "Create", shared.ErrInvalidID, "notification ids are required")
	}
	if !typ.IsValid() {
		return nil, shared.NewDomainError("notification", "Create", shared.ErrInvalidInput, "unknown notification type")
	}
	return &Notification{
		ID:         id,
		UserID:     userID,
		Type:       typ,
		OfferingID: offeringID,
		ActorID:    actorID,
		Message:    message,
		Read:       false,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// MarkRead marks the notice as seen.
func (n *Notification) MarkRead() {
	n.Read = true
}

// String returns a representation for logging.
func (n *Notification) String() string {
	return fmt.Sprintf("Notification{ID: %s, User: %s, Type: %s}", n.ID, n.UserID, n.Type)
}

// Repository stores notifications. Implementations live in
// infrastructure/persistence.
type Repository interface {
	// Create stores a new notice.
	Create(ctx context.Context, n *Notification) error

	// ListByUser returns the user's notices, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Notification, error)

	// CountUnread returns the number of unseen notices for the user.
	CountUnread(ctx context.Context, userID string) (int, error)

	// MarkRead marks the user's notice as seen. Notices belonging to
	// other users are treated as not found.
	// Returns shared.ErrNotificationNotFound when absent.
	MarkRead(ctx context.Context, userID, id string) error

	// MarkAllRead marks every notice of the user as seen.
	MarkAllRead(ctx context.Context, userID string) error
}
