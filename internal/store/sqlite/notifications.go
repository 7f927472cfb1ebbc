package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kopa-app/kopa-server/internal/domain"
	"github.com/kopa-app/kopa-server/internal/store"
)

const notificationColumns = `id, user_id, type, title, message, link, read_at, created_at`

func scanNotification(sc scanner) (*domain.Notification, error) {
	var (
		n         domain.Notification
		typ       string
		readAt    sql.NullString
		createdAt string
	)

	err := sc.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &n.Link, &readAt, &createdAt)
	if err != nil {
		return nil, err
	}

	n.Type = domain.NotificationType(typ)
	if n.ReadAt, err = parseNullableTime(readAt); err != nil {
		return nil, err
	}
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNotification inserts a notification row.
func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, link, read_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		n.UserID,
		string(n.Type),
		n.Title,
		n.Message,
		n.Link,
		nullTimeString(n.ReadAt),
		formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, f store.NotificationFilter) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	args := []any{f.UserID}
	if f.UnreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead sets read_at on one of the user's notifications.
// Marking an already read notification keeps the first timestamp.
// Returns store.ErrNotFound if the user has no such notification.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, notificationID string, at time.Time) error {
	return s.execOne(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, ?)
		WHERE id = ? AND user_id = ?`,
		formatTime(at), notificationID, userID)
}
