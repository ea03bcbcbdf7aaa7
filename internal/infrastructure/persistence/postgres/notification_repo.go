package postgres

import (
	"context"
	"fmt"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/notification"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// NotificationRepository implements notification.Repository on PostgreSQL.
type NotificationRepository struct {
	conn *Connection
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

// Create stores a new notice.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, offering_id, actor_id, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.conn.Exec(ctx, query,
		n.ID, n.UserID, n.Type.String(), nullableID(n.OfferingID), nullableID(n.ActorID),
		n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByUser returns the user's notices, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, type, offering_id, actor_id, message, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notices := make([]*notification.Notification, 0, limit)
	for rows.Next() {
		var (
			n          notification.Notification
			typ        string
			offeringID *string
			actorID    *string
		)
		err := rows.Scan(&n.ID, &n.UserID, &typ, &offeringID, &actorID, &n.Message, &n.Read, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = notification.Type(typ)
		if offeringID != nil {
			n.OfferingID = *offeringID
		}
		if actorID != nil {
			n.ActorID = *actorID
		}
		notices = append(notices, &n)
	}

	return notices, rows.Err()
}

// CountUnread returns the number of unseen notices for the user.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE", userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// MarkRead marks the user's notice as seen. The user filter keeps one user
// from acknowledging another's notices.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	tag, err := r.conn.Exec(ctx,
		"UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every notice of the user as seen.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.conn.Exec(ctx,
		"UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE", userID)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

// nullableID maps an empty ID to NULL for optional UUID columns.
func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
