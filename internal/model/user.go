package model

import "time"

// UserPreferences holds a user's notification opt-ins.
type UserPreferences struct {
	ID string `json:"id" db:"id"`

	// Email is the destination for the email channel.
	Email string `json:"email" db:"email"`

	EmailNotifications   bool `json:"email_notifications" db:"email_notifications"`
	WebPushNotifications bool `json:"web_push_notifications" db:"web_push_notifications"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Accepts reports whether the user has opted in to channel c.
func (p UserPreferences) Accepts(c Channel) bool {
	switch c {
	case ChannelEmail:
		return p.EmailNotifications
	case ChannelWeb:
		return p.WebPushNotifications
	case ChannelBoth:
		return p.EmailNotifications || p.WebPushNotifications
	}
	return false
}

// AnyChannel reports whether at least one delivery channel is enabled.
func (p UserPreferences) AnyChannel() bool {
	return p.EmailNotifications || p.WebPushNotifications
}
