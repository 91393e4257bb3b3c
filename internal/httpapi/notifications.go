package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nhle/garden-reminders/internal/model"
)

type listResponse struct {
	Notifications []model.Notification `json:"notifications"`
}

type markAllResponse struct {
	Updated int    `json:"updated"`
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || s.validate.Var(n, "min=1,max=500") != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	items, err := s.notifications.List(r.Context(), userID, limit)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, listResponse{Notifications: items})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	if err := s.notifications.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	updated, err := s.notifications.MarkAllRead(r.Context(), userID)
	if err == nil {
		writeJSON(w, http.StatusOK, markAllResponse{Updated: updated})
		return
	}

	// A joined error carries the individual update failures. Anything else
	// means the list itself failed and nothing was attempted.
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.Warn().Err(err).Str("user_id", userID).Msg("mark all read partially failed")
	writeJSON(w, http.StatusOK, markAllResponse{
		Updated: updated,
		Failed:  len(joined.Unwrap()),
		Error:   "some notifications could not be updated",
	})
}

func (s *Server) deleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.notifications.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
