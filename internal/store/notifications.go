package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/boro/internal/id"
	"github.com/erazemk/boro/internal/model"
)

// DefaultNotificationLimit bounds how many notifications a listing returns.
const DefaultNotificationLimit = 50

// CreateNotification stores a notification for its recipient.
func CreateNotification(ctx context.Context, db *sql.DB, n model.Notification) (*model.Notification, error) {
	if err := insertNotification(ctx, db, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// insertNotification writes n inside the caller's transaction. A notification
// without a recipient is skipped.
func insertNotification(ctx context.Context, q querier, n *model.Notification) error {
	if n.UserID == "" {
		return nil
	}

	notificationID, err := id.Generate(id.PrefixNotification)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}

	n.ID = notificationID
	_, err = q.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, actor_id, item_id, type, message) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.ActorID, n.ItemID, n.Type, n.Message,
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's most recent notifications, newest first.
func ListNotifications(ctx context.Context, db *sql.DB, userID string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, actor_id, item_id, type, message, read, created_at
		 FROM notifications WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.ActorID, &n.ItemID, &n.Type, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead marks one of the user's notifications as read.
func MarkNotificationRead(ctx context.Context, db *sql.DB, userID, notificationID string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	return expectOne(res)
}

// MarkAllNotificationsRead marks every unread notification of the user as read.
func MarkAllNotificationsRead(ctx context.Context, db *sql.DB, userID string) (int64, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return res.RowsAffected()
}
