package verification

import (
	"errors"
	"fmt"
)

// Status is the outcome of a Verify call.
type Status int

const (
	StatusVerified Status = iota
	StatusInvalidInput
	StatusNotFound
	StatusExpired
	StatusLocked
	StatusInvalidCode
)

func (s Status) String() string {
	switch s {
	case StatusVerified:
		return "verified"
	case StatusInvalidInput:
		return "invalid_input"
	case StatusNotFound:
		return "not_found"
	case StatusExpired:
		return "expired"
	case StatusLocked:
		return "locked"
	case StatusInvalidCode:
		return "invalid_code"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

var (
	ErrValidation  = errors.New("verification: malformed email or code")
	ErrNotFound    = errors.New("verification: no live code for email")
	ErrExpired     = errors.New("verification: code expired")
	ErrLocked      = errors.New("verification: too many attempts")
	ErrInvalidCode = errors.New("verification: code does not match")
)

// GenericFailureMessage is shown to end users for both the not-found and
// the locked outcomes so a caller cannot tell whether an email ever
// requested a code.
const GenericFailureMessage = "Verification failed. Please request a new code."

// Result describes a Verify outcome. Failures are values, not errors, so
// callers can render the remaining attempt count.
type Result struct {
	Status Status

	// RemainingAttempts is set for StatusInvalidCode.
	RemainingAttempts int

	// Message is a user-presentable description.
	Message string
}

// OK reports whether the code was accepted.
func (r Result) OK() bool { return r.Status == StatusVerified }

// Err maps the result to its sentinel error, or nil on success.
func (r Result) Err() error {
	switch r.Status {
	case StatusVerified:
		return nil
	case StatusInvalidInput:
		return ErrValidation
	case StatusNotFound:
		return ErrNotFound
	case StatusExpired:
		return ErrExpired
	case StatusLocked:
		return ErrLocked
	default:
		return ErrInvalidCode
	}
}

func verified() Result {
	return Result{Status: StatusVerified, Message: "Email verified."}
}

func invalidInput() Result {
	return Result{Status: StatusInvalidInput, Message: "Enter a valid email address and 6-digit code."}
}

func notFound() Result {
	return Result{Status: StatusNotFound, Message: GenericFailureMessage}
}

func expired() Result {
	return Result{Status: StatusExpired, Message: "This code has expired. Please request a new one."}
}

func locked() Result {
	return Result{Status: StatusLocked, Message: GenericFailureMessage}
}

func invalidCode(remaining int) Result {
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Status:            StatusInvalidCode,
		RemainingAttempts: remaining,
		Message:           fmt.Sprintf("Invalid code. %d attempts remaining.", remaining),
	}
}
