package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by every store error about a missing record.
var ErrNotFound = errors.New("not found")

// ErrorKind classifies store failures for retry decisions.
type ErrorKind int

const (
	// KindPermanent covers schema, permission and encoding failures.
	// Callers surface them and do not retry.
	KindPermanent ErrorKind = iota

	// KindTransient covers timeouts and connectivity failures. Callers
	// may retry.
	KindTransient

	// KindNotFound means the addressed record does not exist.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	default:
		return "permanent"
	}
}

// Error is a classified store failure.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound builds a KindNotFound error for op.
func NotFound(op string) error {
	return &Error{Op: op, Kind: KindNotFound, Err: ErrNotFound}
}

// Classify wraps err as a store Error. Context deadline and cancellation
// errors and anything transient reports true for are transient;
// everything else is permanent. Already classified errors pass through.
func Classify(op string, err error, transient func(error) bool) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	kind := KindPermanent
	switch {
	case errors.Is(err, ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = KindTransient
	case transient != nil && transient(err):
		kind = KindTransient
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// IsNotFound reports whether err (or any error in its chain) is a
// missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient reports whether err (or any error in its chain) is a
// retryable store failure.
func IsTransient(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == KindTransient
	}
	return errors.Is(err, context.DeadlineExceeded)
}
