package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nhle/garden-reminders/internal/model"
	"github.com/nhle/garden-reminders/internal/store"
)

type taskRequest struct {
	UserID             string `json:"user_id" validate:"required"`
	Title              string `json:"title" validate:"required,max=200"`
	Type               string `json:"type" validate:"omitempty,oneof=watering harvest planting fertilizing pruning other"`
	DueDate            string `json:"due_date" validate:"required,datetime=2006-01-02"`
	Completed          bool   `json:"completed"`
	EnableNotification bool   `json:"enable_notification"`
	NotificationTiming int    `json:"notification_timing"`
	NotificationType   string `json:"notification_type" validate:"omitempty,oneof=email web both"`
	GardenName         string `json:"garden_name"`
	PlantName          string `json:"plant_name"`
	Notes              string `json:"notes"`
}

type taskResponse struct {
	Task              *model.Task `json:"task,omitempty"`
	Deleted           bool        `json:"deleted,omitempty"`
	NotificationID    string      `json:"notification_id,omitempty"`
	NotificationError string      `json:"notification_error,omitempty"`
}

type preferencesRequest struct {
	Email                string `json:"email" validate:"omitempty,email"`
	EmailNotifications   bool   `json:"email_notifications"`
	WebPushNotifications bool   `json:"web_push_notifications"`
}

// putTask stores the task, then brings its reminder in line. A reminder
// failure does not undo the task write; it is reported alongside it.
func (s *Server) putTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !s.decode(w, r, &req) {
		return
	}
	due, err := model.ParseDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	ctx := r.Context()
	taskID := chi.URLParam(r, "taskID")
	task := model.Task{
		ID:                 taskID,
		UserID:             req.UserID,
		Title:              req.Title,
		Type:               model.TaskType(req.Type),
		DueDate:            due,
		Completed:          req.Completed,
		EnableNotification: req.EnableNotification,
		NotificationTiming: req.NotificationTiming,
		NotificationType:   model.Channel(req.NotificationType),
		GardenName:         req.GardenName,
		PlantName:          req.PlantName,
		Notes:              req.Notes,
	}
	if err := s.tasks.UpsertTask(ctx, task); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	saved, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := taskResponse{Task: saved}

	prefs, err := s.tasks.GetUserPreferences(ctx, saved.UserID)
	switch {
	case store.IsNotFound(err):
		prefs = &model.UserPreferences{ID: saved.UserID}
	case err != nil:
		s.logger.Warn().Err(err).Str("task_id", taskID).Msg("loading preferences for reminder failed")
		resp.NotificationError = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}

	reminder := *saved
	if reminder.Completed {
		reminder.EnableNotification = false
	}
	id, err := s.reminders.UpdateForTask(ctx, reminder, *prefs)
	if err != nil {
		s.logger.Warn().Err(err).Str("task_id", taskID).Msg("updating task reminder failed")
		resp.NotificationError = err.Error()
	}
	resp.NotificationID = id

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	taskID := chi.URLParam(r, "taskID")

	if err := s.tasks.DeleteTask(ctx, taskID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := taskResponse{Deleted: true}
	if err := s.reminders.CancelForTask(ctx, taskID); err != nil {
		s.logger.Warn().Err(err).Str("task_id", taskID).Msg("cancelling task reminder failed")
		resp.NotificationError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) putPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !s.decode(w, r, &req) {
		return
	}

	userID := chi.URLParam(r, "userID")
	prefs := model.UserPreferences{
		ID:                   userID,
		Email:                req.Email,
		EmailNotifications:   req.EmailNotifications,
		WebPushNotifications: req.WebPushNotifications,
	}
	if err := s.tasks.UpsertUserPreferences(r.Context(), prefs); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	saved, err := s.tasks.GetUserPreferences(r.Context(), userID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
