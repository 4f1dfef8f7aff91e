// Package policy — breaker.go
//
// Three-phase circuit breaker (Closed/Open/HalfOpen), see spec §4.3.
//
// State transition graph:
//
//	Closed ──failure(failuresToOpen ≤ 1)──→ Open ──cooldown elapsed──→ HalfOpen
//	   ↑                                                                 │
//	   └──────────────────────success────────────────────────────────────┘
//	                    (failure while HalfOpen → back to Open)
//
// Unlike the escalation ladder this is adapted from, a breaker decays in
// one hop (HalfOpen success → Closed) rather than one level at a time. A
// failure while Closed opens the gate only when failuresToOpen <= 1; with
// a higher threshold the breaker records lastFailure and stays Closed,
// since BreakerState keeps no failure count.
// All transitions are pure: the caller holds the BreakerState value
// (typically embedded in a SyncAggregate) and replaces it with the
// function's result — there is no mutex, because the domain layer never
// runs two goroutines against the same aggregate.

package policy

import "github.com/octorelay/blesync-engine/internal/domain"

// BreakerPolicy gates calls behind a per-stage circuit breaker.
type BreakerPolicy struct {
	FailuresToOpen int // >= 1
	CoolDownMs     int64
}

// NewBreakerPolicy constructs a BreakerPolicy.
func NewBreakerPolicy(failuresToOpen int, coolDownMs int64) BreakerPolicy {
	return BreakerPolicy{FailuresToOpen: failuresToOpen, CoolDownMs: coolDownMs}
}

// IsCallAllowed reports whether a call may proceed given the current
// state, moving Open -> HalfOpen first if the cool-down has elapsed.
func (p BreakerPolicy) IsCallAllowed(now domain.TimestampMs, state domain.BreakerState) bool {
	state = p.MoveToHalfOpenIfCooled(now, state)
	switch state.Phase {
	case domain.BreakerClosed, domain.BreakerHalfOpen:
		return true
	case domain.BreakerOpen:
		return false
	default:
		return false
	}
}

// MoveToHalfOpenIfCooled transitions Open -> HalfOpen once the cool-down
// period has elapsed since openedAt. No-op for Closed/HalfOpen.
func (p BreakerPolicy) MoveToHalfOpenIfCooled(now domain.TimestampMs, state domain.BreakerState) domain.BreakerState {
	if state.Phase != domain.BreakerOpen || state.OpenedAt == nil {
		return state
	}
	if now-*state.OpenedAt >= domain.TimestampMs(p.CoolDownMs) {
		state.Phase = domain.BreakerHalfOpen
	}
	return state
}

// OnSuccess transitions to Closed from any phase, clearing openedAt and
// lastFailure.
func (p BreakerPolicy) OnSuccess(now domain.TimestampMs, state domain.BreakerState) domain.BreakerState {
	return domain.BreakerState{Phase: domain.BreakerClosed}
}

// OnFailure records a failure and transitions the breaker:
//   - Closed: opens immediately if FailuresToOpen <= 1, otherwise stays
//     Closed and only records lastFailure (no running failure count is
//     kept in BreakerState itself).
//   - Open: the cool-down window resets from now.
//   - HalfOpen: the probe failed, back to Open.
func (p BreakerPolicy) OnFailure(now domain.TimestampMs, state domain.BreakerState, err domain.DomainError) domain.BreakerState {
	switch state.Phase {
	case domain.BreakerClosed:
		if p.FailuresToOpen <= 1 {
			at := now
			return domain.BreakerState{Phase: domain.BreakerOpen, OpenedAt: &at, LastFailure: &err}
		}
		return domain.BreakerState{Phase: domain.BreakerClosed, LastFailure: &err}
	case domain.BreakerOpen:
		at := now
		return domain.BreakerState{Phase: domain.BreakerOpen, OpenedAt: &at, LastFailure: &err}
	case domain.BreakerHalfOpen:
		at := now
		return domain.BreakerState{Phase: domain.BreakerOpen, OpenedAt: &at, LastFailure: &err}
	default:
		at := now
		return domain.BreakerState{Phase: domain.BreakerOpen, OpenedAt: &at, LastFailure: &err}
	}
}
