// Package scheduler turns garden tasks into reminder notifications.
//
// A Scheduler decides when a task's reminder should fire, creates the
// notification through the notification service and remembers which
// notification belongs to which task so it can cancel it later. The
// mapping lives in memory only; the notification store stays the source
// of truth for what exists.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/moby/locker"
	"github.com/rs/zerolog"

	"github.com/nhle/garden-reminders/internal/model"
	"github.com/nhle/garden-reminders/internal/store"
)

// DefaultReminderHour is the local hour reminders fire at.
const DefaultReminderHour = 9

// Notifications is the part of the notification service the scheduler
// writes through.
type Notifications interface {
	Create(ctx context.Context, userID string, n model.Notification) (string, error)
	Delete(ctx context.Context, id string) error
}

// Options configures a Scheduler.
type Options struct {
	// Location is the calendar reminders are computed in. Defaults to UTC.
	Location *time.Location

	// ReminderHour is the hour of day a reminder fires at. Values outside
	// 0-23 fall back to DefaultReminderHour.
	ReminderHour int

	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// Scheduler creates and cancels task reminders. Operations on the same
// task id are serialized.
type Scheduler struct {
	notes  Notifications
	loc    *time.Location
	hour   int
	clock  clockwork.Clock
	logger zerolog.Logger

	locks *locker.Locker

	mu     sync.Mutex
	byTask map[string]string
}

// New creates a Scheduler writing through notes.
func New(notes Notifications, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.ReminderHour < 0 || opts.ReminderHour > 23 {
		opts.ReminderHour = DefaultReminderHour
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		notes:  notes,
		loc:    opts.Location,
		hour:   opts.ReminderHour,
		clock:  opts.Clock,
		logger: opts.Logger.With().Str("component", "scheduler").Logger(),
		locks:  locker.New(),
		byTask: make(map[string]string),
	}
}

// ScheduledFor returns when the reminder for task fires, evaluated at now.
//
// A timing of zero anchors to the current day, not the due date, so an
// overdue task with same-day timing is scheduled for today every time it
// is evaluated. Any other timing counts back from the due date; negative
// values count forward.
func (s *Scheduler) ScheduledFor(task model.Task, now time.Time) time.Time {
	if task.NotificationTiming == 0 {
		y, m, d := now.In(s.loc).Date()
		return time.Date(y, m, d, s.hour, 0, 0, 0, s.loc)
	}
	y, m, d := task.DueDate.Date()
	return time.Date(y, m, d-task.NotificationTiming, s.hour, 0, 0, 0, s.loc)
}

// CreateForTask schedules a reminder for task and returns the new
// notification id. It returns "" with a nil error when no reminder is due:
// reminders are off for the task, the user has no channel enabled, or the
// reminder day is already in the past.
func (s *Scheduler) CreateForTask(ctx context.Context, task model.Task, prefs model.UserPreferences) (string, error) {
	s.locks.Lock(task.ID)
	defer s.locks.Unlock(task.ID)
	return s.create(ctx, task, prefs)
}

// CancelForTask deletes the reminder recorded for taskID. Unknown tasks
// and reminders already gone from the store are not errors. On any other
// store failure the mapping is kept so a later cancel can retry.
func (s *Scheduler) CancelForTask(ctx context.Context, taskID string) error {
	s.locks.Lock(taskID)
	defer s.locks.Unlock(taskID)
	return s.cancel(ctx, taskID)
}

// UpdateForTask replaces the task's reminder: it cancels the current one
// and, if reminders are enabled, creates a fresh one. When the cancel
// fails nothing new is created.
func (s *Scheduler) UpdateForTask(ctx context.Context, task model.Task, prefs model.UserPreferences) (string, error) {
	s.locks.Lock(task.ID)
	defer s.locks.Unlock(task.ID)

	if err := s.cancel(ctx, task.ID); err != nil {
		return "", err
	}
	if !task.EnableNotification {
		return "", nil
	}
	return s.create(ctx, task, prefs)
}

// NotificationFor returns the notification id recorded for taskID.
func (s *Scheduler) NotificationFor(taskID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byTask[taskID]
	return id, ok
}

func (s *Scheduler) create(ctx context.Context, task model.Task, prefs model.UserPreferences) (string, error) {
	log := s.logger.With().Str("task_id", task.ID).Logger()

	if !task.EnableNotification {
		log.Debug().Msg("reminders disabled for task")
		return "", nil
	}
	if !prefs.AnyChannel() {
		log.Debug().Str("user_id", prefs.ID).Msg("user has no notification channel enabled")
		return "", nil
	}

	now := s.clock.Now().In(s.loc)
	at := s.ScheduledFor(task, now)
	if beforeDay(at, now) {
		log.Debug().Time("scheduled_for", at).Msg("reminder day already passed")
		return "", nil
	}

	taskID := task.ID
	id, err := s.notes.Create(ctx, task.UserID, model.Notification{
		TaskID:    &taskID,
		Type:      task.Type,
		Title:     "Reminder: " + task.Title,
		Message:   ReminderMessage(task),
		Garden:    task.GardenName,
		Plant:     task.PlantName,
		Priority:  model.PriorityFor(task.Type),
		Timestamp: at,
	})
	if err != nil {
		return "", fmt.Errorf("scheduling reminder for task %s: %w", task.ID, err)
	}

	s.mu.Lock()
	if prev, ok := s.byTask[task.ID]; ok && prev != id {
		log.Warn().Str("previous_id", prev).Msg("replacing reminder mapping without cancel")
	}
	s.byTask[task.ID] = id
	s.mu.Unlock()

	log.Info().Str("notification_id", id).Time("scheduled_for", at).Msg("reminder scheduled")
	return id, nil
}

func (s *Scheduler) cancel(ctx context.Context, taskID string) error {
	id, ok := s.NotificationFor(taskID)
	if !ok {
		return nil
	}

	err := s.notes.Delete(ctx, id)
	if err != nil && !store.IsNotFound(err) {
		return fmt.Errorf("cancelling reminder for task %s: %w", taskID, err)
	}

	s.mu.Lock()
	delete(s.byTask, taskID)
	s.mu.Unlock()

	s.logger.Info().Str("task_id", taskID).Str("notification_id", id).Msg("reminder cancelled")
	return nil
}

// beforeDay reports whether a falls on a calendar day strictly before b.
// Both are compared in a's location.
func beforeDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}

// ReminderMessage describes the task for a reminder body.
func ReminderMessage(t model.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is due on %s", taskLabel(t.Type), t.DueDate.Format(model.DateLayout))
	switch {
	case t.PlantName != "" && t.GardenName != "":
		fmt.Fprintf(&b, " for %s in %s", t.PlantName, t.GardenName)
	case t.PlantName != "":
		fmt.Fprintf(&b, " for %s", t.PlantName)
	case t.GardenName != "":
		fmt.Fprintf(&b, " in %s", t.GardenName)
	}
	b.WriteString(".")
	if notes := strings.TrimSpace(t.Notes); notes != "" {
		b.WriteString(" Notes: ")
		b.WriteString(notes)
	}
	return b.String()
}

func taskLabel(t model.TaskType) string {
	switch t {
	case model.TaskTypeWatering:
		return "Watering"
	case model.TaskTypeHarvest:
		return "Harvest"
	case model.TaskTypePlanting:
		return "Planting"
	case model.TaskTypeFertilizing:
		return "Fertilizing"
	case model.TaskTypePruning:
		return "Pruning"
	default:
		return "Garden task"
	}
}
