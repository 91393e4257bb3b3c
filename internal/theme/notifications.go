package theme

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/garden-reminders/internal/model"
)

const timestampLayout = "2006-01-02 15:04"

// RenderNotifications draws a user's notifications as a bordered list,
// newest first as given.
func RenderNotifications(userID string, items []model.Notification) string {
	header := HeaderStyle.Render(fmt.Sprintf("Notifications for %s", userID))

	if len(items) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, PanelStyle.Render(HelpStyle.Render("Nothing here yet.")))
	}

	unread := 0
	rows := make([]string, 0, len(items))
	for _, n := range items {
		if !n.Read {
			unread++
		}
		rows = append(rows, renderRow(n))
	}

	summary := HelpStyle.Render(fmt.Sprintf("%d shown, %d unread", len(items), unread))
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		PanelStyle.Render(strings.Join(rows, "\n")),
		summary,
	)
}

func renderRow(n model.Notification) string {
	marker := "•"
	title := UnreadStyle.Render(n.Title)
	if n.Read {
		marker = " "
		title = ReadStyle.Render(n.Title)
	}

	line := lipgloss.JoinHorizontal(lipgloss.Top,
		marker, " ",
		PriorityStyle(n.Priority).Render(string(n.Priority)),
		ReadStyle.Render(n.Timestamp.Local().Format(timestampLayout)), "  ",
		title,
	)

	var context []string
	if n.Plant != "" {
		context = append(context, n.Plant)
	}
	if n.Garden != "" {
		context = append(context, n.Garden)
	}
	detail := n.Message
	if len(context) > 0 {
		detail = strings.Join(context, " · ") + ": " + detail
	}
	if detail == "" {
		return line
	}
	return line + "\n" + HelpStyle.PaddingLeft(12).Render(detail)
}
