package query

import (
	"context"
	"errors"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET NOTIFICATIONS QUERY
// Returns a user's in-app notices, newest first, with the unread count.
// ══════════════════════════════════════════════════════════════════════════════

// GetNotificationsQuery contains parameters for a notifications request.
type GetNotificationsQuery struct {
	// UserID is the recipient.
	UserID string

	// Limit is the number of notices (default 20, max 100).
	Limit int
}

// Validate checks the query parameters and applies defaults.
func (q *GetNotificationsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	return nil
}

// NotificationDTO is a single notice for API responses.
type NotificationDTO struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OfferingID string    `json:"offering_id,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	Message    string    `json:"message"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// GetNotificationsResult contains the notices.
type GetNotificationsResult struct {
	// Notifications newest first.
	Notifications []NotificationDTO `json:"notifications"`

	// UnreadCount is the number of unseen notices.
	UnreadCount int `json:"unread_count"`
}

// GetNotificationsHandler handles notifications requests.
type GetNotificationsHandler struct {
	notificationRepo notification.Repository
}

// NewGetNotificationsHandler creates a new GetNotificationsHandler.
func NewGetNotificationsHandler(notificationRepo notification.Repository) *GetNotificationsHandler {
	return &GetNotificationsHandler{notificationRepo: notificationRepo}
}

// Handle executes the notifications query.
func (h *GetNotificationsHandler) Handle(ctx context.Context, q GetNotificationsQuery) (*GetNotificationsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	notices, err := h.notificationRepo.ListByUser(ctx, q.UserID, q.Limit)
	if err != nil {
		return nil, err
	}

	unread, err := h.notificationRepo.CountUnread(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	dtos := make([]NotificationDTO, len(notices))
	for i, n := range notices {
		dtos[i] = NotificationDTO{
			ID:         n.ID,
			Type:       n.Type.String(),
			OfferingID: n.OfferingID,
			ActorID:    n.ActorID,
			Message:    n.Message,
			Read:       n.Read,
			CreatedAt:  n.CreatedAt,
		}
	}

	return &GetNotificationsResult{
		Notifications: dtos,
		UnreadCount:   unread,
	}, nil
}
