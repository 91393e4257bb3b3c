// Package httpapi exposes verification, notifications and task hooks over
// HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/nhle/garden-reminders/internal/model"
	"github.com/nhle/garden-reminders/internal/store"
	"github.com/nhle/garden-reminders/internal/verification"
)

// Verifier issues and checks email verification codes.
type Verifier interface {
	Issue(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, code string) (verification.Result, error)
}

// Notifications is the notification service.
type Notifications interface {
	List(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// Reminders keeps task reminders in step with task writes.
type Reminders interface {
	UpdateForTask(ctx context.Context, task model.Task, prefs model.UserPreferences) (string, error)
	CancelForTask(ctx context.Context, taskID string) error
}

// Server holds the handlers' collaborators.
type Server struct {
	verifier      Verifier
	notifications Notifications
	reminders     Reminders
	tasks         store.TaskRepository
	validate      *validator.Validate
	logger        zerolog.Logger
}

// New creates a Server.
func New(
	v Verifier,
	n Notifications,
	r Reminders,
	tasks store.TaskRepository,
	logger zerolog.Logger,
) *Server {
	return &Server{
		verifier:      v,
		notifications: n,
		reminders:     r,
		tasks:         tasks,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger.With().Str("component", "http").Logger(),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/verification/codes", s.issueCode)
		r.Post("/verification/codes/verify", s.verifyCode)

		r.Get("/users/{userID}/notifications", s.listNotifications)
		r.Post("/users/{userID}/notifications/read-all", s.markAllRead)
		r.Put("/users/{userID}/preferences", s.putPreferences)

		r.Post("/notifications/{id}/read", s.markRead)
		r.Delete("/notifications/{id}", s.deleteNotification)

		r.Put("/tasks/{taskID}", s.putTask)
		r.Delete("/tasks/{taskID}", s.deleteTask)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeStoreError maps a classified store failure to a response.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case store.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "")
	case store.IsTransient(err):
		s.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("store unavailable")
		writeError(w, http.StatusServiceUnavailable, "unavailable", "try again later")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("store failure")
		writeError(w, http.StatusInternalServerError, "internal", "something went wrong")
	}
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		msg := err.Error()
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg = fmt.Sprintf("field %s failed %s", verrs[0].Field(), verrs[0].Tag())
		}
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", msg)
		return false
	}
	return true
}
