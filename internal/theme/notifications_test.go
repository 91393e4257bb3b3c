package theme

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/garden-reminders/internal/model"
)

func TestRenderNotifications(t *testing.T) {
	items := []model.Notification{
		{
			Title: "Reminder: Water tomatoes", Message: "Watering is due on 2025-01-10.",
			Priority: model.PriorityHigh, Garden: "Backyard", Plant: "Tomato",
			Timestamp: time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC),
		},
		{
			Title: "Welcome", Priority: model.PriorityLow, Read: true,
			Timestamp: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		},
	}

	out := RenderNotifications("u1", items)
	assert.Contains(t, out, "Notifications for u1")
	assert.Contains(t, out, "Reminder: Water tomatoes")
	assert.Contains(t, out, "Tomato · Backyard: Watering is due on 2025-01-10.")
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "Welcome")
	assert.Contains(t, out, "2 shown, 1 unread")
}

func TestRenderNotificationsEmpty(t *testing.T) {
	out := RenderNotifications("u1", nil)
	assert.Contains(t, out, "Nothing here yet.")
}
