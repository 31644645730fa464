package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidValue is returned when a candidate entry fails domain
	// validation (e.g. non-positive quantity)
	ErrInvalidValue = errors.New("invalid value")

	// ErrNotAuthenticated is returned when no owner context is available
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrSessionInvalid signals that the refresh token itself was
	// rejected. Fatal: triggers a process-wide logout, never retried.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrDuplicateRegistration signals an attempt to insert a second
	// in-memory representation of an already-tracked logical key. This
	// is a defect class, prevented structurally by fetch-before-insert
	// in the writer, never handled reactively.
	ErrDuplicateRegistration = errors.New("duplicate registration")
)

// StatusError carries an HTTP status code and raw response body for
// diagnostics
type StatusError struct {
	StatusCode int
	Body       string
	Transient  bool
}

func (e *StatusError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("remote error (%s): status=%d body=%s", kind, e.StatusCode, e.Body)
}

// NewTransientError wraps a retryable remote failure (timeout, 5xx, 429)
func NewTransientError(status int, body string) *StatusError {
	return &StatusError{StatusCode: status, Body: body, Transient: true}
}

// NewPermanentError wraps a non-retryable remote failure (4xx other
// than 401)
func NewPermanentError(status int, body string) *StatusError {
	return &StatusError{StatusCode: status, Body: body, Transient: false}
}

// IsNotFound reports whether err wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient reports whether err should be retried with backoff.
// Plain network errors (no HTTP response at all) count as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSessionInvalid) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient
	}
	return true
}

// IsPermanent reports whether err is a non-retryable remote rejection
func IsPermanent(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return !se.Transient
	}
	return false
}
