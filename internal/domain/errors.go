package domain

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ValidationError is a business-rule rejection from the card API (4xx with a
// message). The message is surfaced to the user verbatim and the draft is left
// untouched so they can correct and resubmit.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

// TransientError wraps a network or 5xx failure. Non-fatal: state is left
// as-is so a retry can succeed without data loss.
type TransientError struct {
	Err error
}

func (e TransientError) Error() string { return fmt.Sprintf("temporarily unavailable: %v", e.Err) }
func (e TransientError) Unwrap() error { return e.Err }

func (e TransientError) Is(target error) bool {
	_, ok := target.(TransientError)
	if ok {
		return true
	}
	_, ok = target.(*TransientError)
	return ok
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	return errors.Is(err, TransientError{})
}

var (
	// ErrMissingOwner means a save was attempted without an owner id. Auth
	// gating upstream should make this unreachable; it is a programming
	// error, never a user-facing message.
	ErrMissingOwner = errors.New("save attempted without owner id")

	// ErrPublishInFlight rejects overlapping publishes for the same draft.
	ErrPublishInFlight = errors.New("publish already in progress")

	// ErrNoChanges gates no-op publishes.
	ErrNoChanges = errors.New("nothing to publish")

	// ErrNoSession means no editing session is attached to the request.
	ErrNoSession = errors.New("no active session")
)
