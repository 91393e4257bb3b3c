package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/garden-reminders/internal/model"
)

const taskColumns = `id, user_id, title, type, due_date, completed,
	enable_notification, notification_timing, notification_type,
	garden_name, plant_name, notes, created_at, updated_at`

// UpsertTask inserts or updates a task. Generates a UUID if ID is empty.
func (s *SQLiteStore) UpsertTask(ctx context.Context, t model.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.NotificationType == "" {
		t.NotificationType = model.ChannelEmail
	}
	if t.Type == "" {
		t.Type = model.TaskTypeOther
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	y, m, d := t.DueDate.Date()
	due := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			title = excluded.title,
			type = excluded.type,
			due_date = excluded.due_date,
			completed = excluded.completed,
			enable_notification = excluded.enable_notification,
			notification_timing = excluded.notification_timing,
			notification_type = excluded.notification_type,
			garden_name = excluded.garden_name,
			plant_name = excluded.plant_name,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		t.ID, t.UserID, t.Title, string(t.Type), due, boolToInt(t.Completed),
		boolToInt(t.EnableNotification), t.NotificationTiming, string(t.NotificationType),
		t.GardenName, t.PlantName, t.Notes, t.CreatedAt.UTC(), t.UpdatedAt,
	)
	if err != nil {
		return classify("upserting task "+t.ID, err)
	}
	return nil
}

// DeleteTask removes a task by ID.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return classify("deleting task "+id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("deleting task " + id)
	}
	return nil
}

// GetTaskByID retrieves a single task by its ID.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	err := s.db.GetContext(ctx, &t, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("getting task " + id)
	}
	if err != nil {
		return nil, classify("getting task "+id, err)
	}
	return &t, nil
}

// ListOpenTasks returns every task that is not completed, ordered by due
// date.
func (s *SQLiteStore) ListOpenTasks(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	err := s.db.SelectContext(ctx, &tasks,
		"SELECT "+taskColumns+" FROM tasks WHERE completed = 0 ORDER BY due_date, id")
	if err != nil {
		return nil, classify("listing open tasks", err)
	}
	return tasks, nil
}

// UpsertUserPreferences inserts or replaces a user's notification
// preferences.
func (s *SQLiteStore) UpsertUserPreferences(ctx context.Context, p model.UserPreferences) error {
	if p.ID == "" {
		return fmt.Errorf("user id must not be empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO user_preferences (
			id, email, email_notifications, web_push_notifications, updated_at
		) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Email, boolToInt(p.EmailNotifications),
		boolToInt(p.WebPushNotifications), time.Now().UTC(),
	)
	if err != nil {
		return classify("upserting preferences for "+p.ID, err)
	}
	return nil
}

// GetUserPreferences retrieves a user's notification preferences.
func (s *SQLiteStore) GetUserPreferences(
	ctx context.Context,
	userID string,
) (*model.UserPreferences, error) {
	var p model.UserPreferences
	err := s.db.GetContext(ctx, &p, `
		SELECT id, email, email_notifications, web_push_notifications, updated_at
		FROM user_preferences WHERE id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("getting preferences for " + userID)
	}
	if err != nil {
		return nil, classify("getting preferences for "+userID, err)
	}
	return &p, nil
}
