package policy

import (
	"testing"

	"github.com/octorelay/blesync-engine/internal/domain"
)

func TestBreakerPolicy_ClosedToOpenToHalfOpenToClosed(t *testing.T) {
	p := NewBreakerPolicy(1, 500)
	state := domain.NewBreakerState()

	if !p.IsCallAllowed(0, state) {
		t.Fatal("Closed breaker should allow calls")
	}

	state = p.OnFailure(1000, state, domain.TransportError("boom", nil))
	if state.Phase != domain.BreakerOpen {
		t.Fatalf("want Open after one failure with failuresToOpen=1, got %v", state.Phase)
	}

	if p.IsCallAllowed(1200, state) {
		t.Fatal("Open breaker within cool-down should deny calls")
	}

	if !p.IsCallAllowed(1500, state) {
		t.Fatal("Open breaker after cool-down should allow calls (HalfOpen probe)")
	}

	state = p.MoveToHalfOpenIfCooled(1500, state)
	if state.Phase != domain.BreakerHalfOpen {
		t.Fatalf("want HalfOpen after cool-down, got %v", state.Phase)
	}

	state = p.OnSuccess(1500, state)
	if state.Phase != domain.BreakerClosed {
		t.Fatalf("want Closed after successful probe, got %v", state.Phase)
	}
	if state.OpenedAt != nil || state.LastFailure != nil {
		t.Fatal("Closed state should clear openedAt/lastFailure")
	}
}

func TestBreakerPolicy_HalfOpenFailureReturnsToOpen(t *testing.T) {
	p := NewBreakerPolicy(1, 500)
	state := domain.BreakerState{Phase: domain.BreakerHalfOpen}

	state = p.OnFailure(2000, state, domain.TransportError("still broken", nil))
	if state.Phase != domain.BreakerOpen {
		t.Fatalf("want Open after half-open failure, got %v", state.Phase)
	}
	if state.OpenedAt == nil || *state.OpenedAt != 2000 {
		t.Fatalf("want openedAt reset to 2000, got %+v", state.OpenedAt)
	}
}

func TestBreakerPolicy_ClosedStaysClosedWhenThresholdAboveOne(t *testing.T) {
	p := NewBreakerPolicy(3, 500)
	state := domain.NewBreakerState()

	state = p.OnFailure(10, state, domain.TransportError("first", nil))
	if state.Phase != domain.BreakerClosed {
		t.Fatalf("want Closed to persist below threshold, got %v", state.Phase)
	}
	if state.LastFailure == nil {
		t.Fatal("want lastFailure recorded")
	}
}
