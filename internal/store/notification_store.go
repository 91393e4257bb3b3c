package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/nhle/garden-reminders/internal/model"
)

// InsertNotification stores n and returns its id. A UUID is generated
// when n.ID is empty.
func (s *SQLiteStore) InsertNotification(ctx context.Context, n model.Notification) (string, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	var readAt any
	if n.ReadAt != nil {
		readAt = n.ReadAt.UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, user_id, task_id, type, title, message,
			garden, plant, priority, timestamp, created_at, read, read_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.TaskID, string(n.Type), n.Title, n.Message,
		n.Garden, n.Plant, string(n.Priority), n.Timestamp.UTC(), n.CreatedAt.UTC(),
		boolToInt(n.Read), readAt,
	)
	if err != nil {
		return "", classify("creating notification", err)
	}

	return n.ID, nil
}

// QueryNotifications returns a user's notifications ordered by timestamp
// descending.
func (s *SQLiteStore) QueryNotifications(
	ctx context.Context,
	q NotificationQuery,
) ([]model.Notification, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var notifications []model.Notification
	err := s.db.SelectContext(ctx, &notifications, `
		SELECT id, user_id, task_id, type, title, message,
			garden, plant, priority, timestamp, created_at, read, read_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY timestamp DESC, created_at DESC
		LIMIT ?`,
		q.UserID, limit,
	)
	if err != nil {
		return nil, classify("querying notifications", err)
	}

	return notifications, nil
}

// UpdateNotification applies patch to the notification with the given id.
func (s *SQLiteStore) UpdateNotification(
	ctx context.Context,
	id string,
	patch NotificationPatch,
) error {
	var (
		sets []string
		args []any
	)
	if patch.Read != nil {
		sets = append(sets, "read = ?")
		args = append(args, boolToInt(*patch.Read))
	}
	if patch.ReadAt != nil {
		sets = append(sets, "read_at = ?")
		args = append(args, patch.ReadAt.UTC())
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET "+strings.Join(sets, ", ")+" WHERE id = ?",
		args...,
	)
	if err != nil {
		return classify("updating notification "+id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("updating notification " + id)
	}
	return nil
}

// DeleteNotification removes a notification by id.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = ?", id)
	if err != nil {
		return classify("deleting notification "+id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("deleting notification " + id)
	}
	return nil
}
