// Package notification is the CRUD façade over the notification store.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/nhle/garden-reminders/internal/model"
	"github.com/nhle/garden-reminders/internal/store"
)

// DefaultTimeout bounds every store call made by the Service.
const DefaultTimeout = 5 * time.Second

// Service maps notification operations onto a store.NotificationRepository.
// It keeps no cache: every read goes to the store and every store failure
// is returned to the caller.
type Service struct {
	repo    store.NotificationRepository
	clock   clockwork.Clock
	timeout time.Duration
	logger  zerolog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithTimeout sets the per-call store timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service backed by repo.
func NewService(repo store.NotificationRepository, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		clock:   clockwork.NewRealClock(),
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "notifications").Logger()
	return s
}

// Create stores n for userID and returns the new id. Timestamp defaults
// to now; CreatedAt is always now; Read starts false. A zero Priority is
// derived from the task type.
func (s *Service) Create(ctx context.Context, userID string, n model.Notification) (string, error) {
	if userID == "" {
		return "", errors.New("creating notification: user id is required")
	}

	now := s.clock.Now()
	n.ID = ""
	n.UserID = userID
	if n.Timestamp.IsZero() {
		n.Timestamp = now
	}
	n.CreatedAt = now
	n.Read = false
	n.ReadAt = nil
	if n.Type == "" {
		n.Type = model.TaskTypeOther
	}
	if n.Priority == "" {
		n.Priority = model.PriorityFor(n.Type)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := s.repo.InsertNotification(ctx, n)
	if err != nil {
		return "", fmt.Errorf("creating notification for user %s: %w", userID, err)
	}
	s.logger.Debug().Str("id", id).Str("user_id", userID).Msg("notification created")
	return id, nil
}

// List returns the newest notifications for userID. A limit of zero or
// less means store.DefaultListLimit. A timeout is an error, not an empty
// list.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, err := s.repo.QueryNotifications(ctx, store.NotificationQuery{UserID: userID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("listing notifications for user %s: %w", userID, err)
	}
	return items, nil
}

// MarkRead flags a notification as read now.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	read := true
	now := s.clock.Now()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.UpdateNotification(ctx, id, store.NotificationPatch{Read: &read, ReadAt: &now}); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead marks each of the user's unread notifications (within the
// default list window) read with one update per notification.
//
// The updates are independent. A failure does not stop the remaining
// updates; updated counts the successes and err joins every failure, so
// a non-nil err with updated > 0 means a partial result.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (updated int, err error) {
	items, err := s.List(ctx, userID, store.DefaultListLimit)
	if err != nil {
		return 0, err
	}

	var errs []error
	for _, n := range items {
		if n.Read {
			continue
		}
		if err := s.MarkRead(ctx, n.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		updated++
	}

	if len(errs) > 0 {
		s.logger.Warn().Str("user_id", userID).Int("updated", updated).Int("failed", len(errs)).
			Msg("mark all read partially failed")
	}
	return updated, errors.Join(errs...)
}

// Delete removes a notification.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.DeleteNotification(ctx, id); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}
