package store

import (
	"context"
	"time"

	"github.com/nhle/garden-reminders/internal/model"
)

// DefaultListLimit caps notification queries that pass no limit.
const DefaultListLimit = 50

// NotificationQuery selects a user's notifications, newest timestamp
// first, capped at Limit.
type NotificationQuery struct {
	UserID string
	Limit  int
}

// NotificationPatch is a partial update. Nil fields are left unchanged.
type NotificationPatch struct {
	Read   *bool
	ReadAt *time.Time
}

// NotificationRepository is the document-store contract for notification
// records: insert returning an id, query by user ordered by timestamp,
// partial update by id and delete by id.
type NotificationRepository interface {
	InsertNotification(ctx context.Context, n model.Notification) (string, error)
	QueryNotifications(ctx context.Context, q NotificationQuery) ([]model.Notification, error)
	UpdateNotification(ctx context.Context, id string, patch NotificationPatch) error
	DeleteNotification(ctx context.Context, id string) error
}

// VerificationRepository is a keyed store of live verification records,
// one per email.
type VerificationRepository interface {
	// PutVerification stores rec, replacing any record for the same email.
	PutVerification(ctx context.Context, rec model.VerificationRecord) error

	// GetVerification returns ErrNotFound when no record exists.
	GetVerification(ctx context.Context, email string) (*model.VerificationRecord, error)

	// IncrementAttempts atomically bumps the attempt counter and returns
	// the new value.
	IncrementAttempts(ctx context.Context, email string) (int, error)

	// DeleteVerification is a no-op when no record exists.
	DeleteVerification(ctx context.Context, email string) error
}

// TaskRepository persists tasks and user preferences owned by the
// surrounding application. The reminder dispatcher reads from it.
type TaskRepository interface {
	UpsertTask(ctx context.Context, t model.Task) error
	DeleteTask(ctx context.Context, id string) error
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	ListOpenTasks(ctx context.Context) ([]model.Task, error)

	UpsertUserPreferences(ctx context.Context, p model.UserPreferences) error
	GetUserPreferences(ctx context.Context, userID string) (*model.UserPreferences, error)
}
