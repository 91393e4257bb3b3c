package model

import (
	"fmt"
	"time"
)

// TaskType is the garden task category. It drives notification priority.
type TaskType string

const (
	TaskTypeWatering    TaskType = "watering"
	TaskTypeHarvest     TaskType = "harvest"
	TaskTypePlanting    TaskType = "planting"
	TaskTypeFertilizing TaskType = "fertilizing"
	TaskTypePruning     TaskType = "pruning"
	TaskTypeOther       TaskType = "other"
)

// Channel identifies how a task reminder should reach the user.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelWeb   Channel = "web"
	ChannelBoth  Channel = "both"
)

// Includes reports whether c covers the single channel other.
func (c Channel) Includes(other Channel) bool {
	return c == other || c == ChannelBoth
}

// DateLayout is the wire format for calendar dates such as Task.DueDate.
const DateLayout = "2006-01-02"

// Task is a garden task owned by the surrounding application. The
// reminder core reads it but never mutates it.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id" db:"id"`

	// UserID is the owner of the task.
	UserID string `json:"user_id" db:"user_id"`

	// Title is the human-readable summary of the task.
	Title string `json:"title" db:"title"`

	// Type is the task category (use TaskType* constants).
	Type TaskType `json:"type" db:"type"`

	// DueDate is the calendar day the task is due. Only the year, month
	// and day are meaningful; the clock part is ignored.
	DueDate time.Time `json:"due_date" db:"due_date"`

	// Completed marks tasks the user has finished.
	Completed bool `json:"completed" db:"completed"`

	// EnableNotification turns reminders on for this task.
	EnableNotification bool `json:"enable_notification" db:"enable_notification"`

	// NotificationTiming is how many days before DueDate the reminder
	// fires. Zero means "today".
	NotificationTiming int `json:"notification_timing" db:"notification_timing"`

	// NotificationType selects the delivery channel.
	NotificationType Channel `json:"notification_type" db:"notification_type"`

	// GardenName and PlantName are display context for the reminder.
	GardenName string `json:"garden_name" db:"garden_name"`
	PlantName  string `json:"plant_name" db:"plant_name"`

	// Notes is free text appended to reminder messages.
	Notes string `json:"notes" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DueDay returns the task's due date as midnight in loc.
func (t Task) DueDay(loc *time.Location) time.Time {
	y, m, d := t.DueDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return d, nil
}
