package service

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestConfirmRequiresRequest(t *testing.T) {
	f := NewConfirmFlow(30 * time.Second)
	if err := f.Confirm(); !errors.Is(err, ErrConfirmNotRequested) {
		t.Fatalf("expected ErrConfirmNotRequested, got %v", err)
	}
}

func TestConfirmInsideWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	f := NewConfirmFlowWithClock(30*time.Second, clock)

	f.Request()
	clock.Advance(10 * time.Second)

	if err := f.Confirm(); err != nil {
		t.Fatalf("confirm inside window failed: %v", err)
	}
	if !f.Confirmed() {
		t.Fatalf("flow must report confirmed")
	}
}

func TestConfirmAfterDeadlineResets(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	f := NewConfirmFlowWithClock(30*time.Second, clock)

	f.Request()
	clock.Advance(31 * time.Second)

	if err := f.Confirm(); !errors.Is(err, ErrConfirmExpired) {
		t.Fatalf("expected ErrConfirmExpired, got %v", err)
	}
	// expired window drops back to idle, a retry needs a fresh request
	if err := f.Confirm(); !errors.Is(err, ErrConfirmNotRequested) {
		t.Fatalf("expected idle after expiry, got %v", err)
	}
}

func TestConfirmCancel(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	f := NewConfirmFlowWithClock(30*time.Second, clock)

	f.Request()
	f.Cancel()

	if f.Pending() {
		t.Fatalf("cancel must close the window")
	}
	if err := f.Confirm(); !errors.Is(err, ErrConfirmNotRequested) {
		t.Fatalf("cancelled flow must require a new request, got %v", err)
	}
}

func TestConfirmRepeatRequestExtendsDeadline(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	f := NewConfirmFlowWithClock(30*time.Second, clock)

	first := f.Request()
	clock.Advance(20 * time.Second)
	second := f.Request()

	if !second.After(first) {
		t.Fatalf("re-request must extend the deadline")
	}
	clock.Advance(25 * time.Second)
	if err := f.Confirm(); err != nil {
		t.Fatalf("confirm within extended window failed: %v", err)
	}
}
