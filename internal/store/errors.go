package store

import (
	"errors"
	"fmt"
)

// Error is a persistence-level error. Services translate these into
// domain errors; callers match them with errors.Is against the sentinels.
type Error struct {
	Message string // Stable description, also the identity used by Is
	Err     error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same message, so sentinels still match
// after WithCause.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Message == t.Message
	}
	return false
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Message: e.Message,
		Err:     err,
	}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{Message: "resource not found"}

	ErrAlreadyExists = &Error{Message: "resource already exists"}

	// ErrNotPending is returned when a suggestion was resolved by someone else
	// between the read and the compare-and-set write.
	ErrNotPending = &Error{Message: "suggestion is not pending"}

	// ErrQuotaExceeded is returned when the guarded counter increment finds
	// the user already at the limit.
	ErrQuotaExceeded = &Error{Message: "pending suggestion quota exceeded"}
)
