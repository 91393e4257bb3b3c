package httpapi

import (
	"errors"
	"net/http"

	"github.com/nhle/garden-reminders/internal/verification"
)

type issueRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type issueResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,numeric,len=6"`
}

type verifyResponse struct {
	Verified          bool   `json:"verified"`
	Error             string `json:"error,omitempty"`
	Message           string `json:"message"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
}

func (s *Server) issueCode(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if !s.decode(w, r, &req) {
		return
	}

	code, err := s.verifier.Issue(r.Context(), req.Email)
	if errors.Is(err, verification.ErrValidation) {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "a valid email is required")
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, issueResponse{
		Message: "If the address can receive mail, a code is on its way.",
		Code:    code,
	})
}

func (s *Server) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.verifier.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := verifyResponse{Verified: res.OK(), Message: res.Message}
	status := http.StatusOK
	switch res.Status {
	case verification.StatusVerified:
	case verification.StatusInvalidInput:
		status = http.StatusUnprocessableEntity
	case verification.StatusInvalidCode:
		status = http.StatusBadRequest
		remaining := res.RemainingAttempts
		resp.RemainingAttempts = &remaining
	case verification.StatusExpired:
		status = http.StatusGone
	default:
		// Not found and locked share one response.
		status = http.StatusUnauthorized
		resp.Message = verification.GenericFailureMessage
	}
	if !res.OK() {
		resp.Error = res.Status.String()
		if status == http.StatusUnauthorized {
			resp.Error = "verification_failed"
		}
	}

	writeJSON(w, status, resp)
}
