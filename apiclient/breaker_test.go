package apiclient

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_Transitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newBreaker(3, 10*time.Second)
	b.now = func() time.Time { return now }

	var changes []string
	b.onChange = func(from, to BreakerState) {
		changes = append(changes, from.String()+"->"+to.String())
	}

	for range 2 {
		if err := b.allow(); err != nil {
			t.Fatalf("allow() error = %v", err)
		}
		b.record(true)
	}
	if b.State() != BreakerClosed {
		t.Fatalf("State() = %s, want closed below threshold", b.State())
	}

	_ = b.allow()
	b.record(true)
	if b.State() != BreakerOpen {
		t.Fatalf("State() = %s, want open", b.State())
	}
	if err := b.allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("allow() while open = %v, want %v", err, ErrCircuitOpen)
	}

	now = now.Add(10 * time.Second)
	if err := b.allow(); err != nil {
		t.Fatalf("probe allow() error = %v", err)
	}
	if err := b.allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second allow() during probe = %v, want %v", err, ErrCircuitOpen)
	}
	b.record(false)
	if b.State() != BreakerClosed {
		t.Errorf("State() after successful probe = %s, want closed", b.State())
	}

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("changes[%d] = %q, want %q", i, changes[i], want[i])
		}
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newBreaker(1, time.Second)
	b.now = func() time.Time { return now }

	_ = b.allow()
	b.record(true)
	now = now.Add(time.Second)

	_ = b.allow()
	b.record(true)
	if b.State() != BreakerOpen {
		t.Errorf("State() after failed probe = %s, want open", b.State())
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := newBreaker(2, time.Second)

	_ = b.allow()
	b.record(true)
	_ = b.allow()
	b.record(false)
	_ = b.allow()
	b.record(true)

	if b.State() != BreakerClosed {
		t.Errorf("State() = %s, want closed (failures are consecutive)", b.State())
	}
}
