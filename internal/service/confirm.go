package service

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrConfirmNotRequested = errors.New("confirmation was not requested")
	ErrConfirmExpired      = errors.New("confirmation window expired")
)

// Clock abstracts wall time so the cooldown can be tested without sleeping.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type confirmState int

const (
	confirmIdle confirmState = iota
	confirmAwaiting
	confirmConfirmed
)

// ConfirmFlow drives the delayed-confirmation pattern for destructive actions
// (account deletion, subscription cancel): the first request opens a
// confirmation window, and only a second call inside that window commits.
type ConfirmFlow struct {
	mu       sync.Mutex
	clock    Clock
	window   time.Duration
	state    confirmState
	deadline time.Time
}

func NewConfirmFlow(window time.Duration) *ConfirmFlow {
	return NewConfirmFlowWithClock(window, realClock{})
}

func NewConfirmFlowWithClock(window time.Duration, clock Clock) *ConfirmFlow {
	return &ConfirmFlow{clock: clock, window: window}
}

// Request opens (or re-opens) the confirmation window and returns its
// deadline.
func (f *ConfirmFlow) Request() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = confirmAwaiting
	f.deadline = f.clock.Now().Add(f.window)
	return f.deadline
}

// Confirm commits the action if the window is still open. An expired window
// resets to idle so the user has to start over.
func (f *ConfirmFlow) Confirm() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case confirmIdle, confirmConfirmed:
		return ErrConfirmNotRequested
	}
	if f.clock.Now().After(f.deadline) {
		f.state = confirmIdle
		return ErrConfirmExpired
	}
	f.state = confirmConfirmed
	return nil
}

// Cancel aborts a pending confirmation.
func (f *ConfirmFlow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = confirmIdle
}

// Pending reports whether a confirmation window is currently open.
func (f *ConfirmFlow) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == confirmAwaiting && !f.clock.Now().After(f.deadline)
}

// Confirmed reports whether the action was committed.
func (f *ConfirmFlow) Confirmed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == confirmConfirmed
}
