package model

import "time"

// Priority ranks a notification for display and delivery.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// PriorityFor maps a task category to its notification priority.
// Unknown categories fall back to low.
func PriorityFor(t TaskType) Priority {
	switch t {
	case TaskTypeWatering, TaskTypeHarvest:
		return PriorityHigh
	case TaskTypePlanting, TaskTypeFertilizing:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Notification is an in-app reminder or alert surfaced to a user.
type Notification struct {
	// ID is assigned by the store on insert.
	ID string `json:"id" db:"id"`

	// UserID is the recipient.
	UserID string `json:"user_id" db:"user_id"`

	// TaskID links the notification to the task that produced it. Nil for
	// notifications that are not task-bound. Never changes after creation.
	TaskID *string `json:"task_id,omitempty" db:"task_id"`

	// Type is the task category tag.
	Type TaskType `json:"type" db:"type"`

	// Title and Message are the human-readable notification text.
	Title   string `json:"title" db:"title"`
	Message string `json:"message" db:"message"`

	// Garden and Plant are optional display context.
	Garden string `json:"garden,omitempty" db:"garden"`
	Plant  string `json:"plant,omitempty" db:"plant"`

	Priority Priority `json:"priority" db:"priority"`

	// Timestamp is when the notification becomes active. For task
	// reminders this is the scheduled-for time. Lists sort on it.
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Read is false at creation. ReadAt is set only when Read turns true.
	Read   bool       `json:"read" db:"read"`
	ReadAt *time.Time `json:"read_at,omitempty" db:"read_at"`
}
