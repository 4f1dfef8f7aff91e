// Package saga decides what should happen next for a device's sync. It
// is the single source of truth for ordering bond/connect/read/deliver/
// ack — the actor only executes what Decide returns (see spec §4.5).
package saga

import (
	"github.com/octorelay/blesync-engine/internal/domain"
	"github.com/octorelay/blesync-engine/internal/policy"
)

// Saga holds the policy implementations the decision table consults.
// It carries no mutable state of its own — Decide is a pure function of
// its arguments.
type Saga struct {
	ConnectBreaker policy.BreakerPolicy
	ConnectRetry   policy.RetryPolicy
	PageSizing     policy.PageSizingPolicy
}

// New constructs a Saga from its policy dependencies.
func New(connectBreaker policy.BreakerPolicy, connectRetry policy.RetryPolicy, pageSizing policy.PageSizingPolicy) Saga {
	return Saga{ConnectBreaker: connectBreaker, ConnectRetry: connectRetry, PageSizing: pageSizing}
}

// Decide returns the ordered commands to execute given the current
// aggregate, the event that produced it (nil at bootstrap), and now.
// Precedence rules are applied in order and the first matching rule
// wins — see spec §4.5.
func (s Saga) Decide(a domain.SyncAggregate, lastEvent *domain.Event, now domain.TimestampMs) []domain.Command {
	if a.BondStatus != domain.BondBonded {
		return []domain.Command{domain.BondDevice(a.DeviceId)}
	}

	if a.ConnectionStatus != domain.ConnConnected {
		return s.connectOrBackoff(a, now)
	}

	if a.TotalOnDevice == 0 && a.LastAckedExclusive == 0 {
		return []domain.Command{domain.ReadEventCount(a.DeviceId)}
	}

	return s.dispatchOnLastEvent(a, lastEvent, now)
}

func (s Saga) connectOrBackoff(a domain.SyncAggregate, now domain.TimestampMs) []domain.Command {
	if s.ConnectBreaker.IsCallAllowed(now, a.ConnectBreaker) {
		return []domain.Command{domain.ConnectGatt(a.DeviceId)}
	}
	return s.retryOrGiveUp(a, now, domain.AttemptConnectGatt, domain.RetryReason{Kind: domain.RetryBackoffAfterFailure})
}

func (s Saga) dispatchOnLastEvent(a domain.SyncAggregate, lastEvent *domain.Event, now domain.TimestampMs) []domain.Command {
	if lastEvent == nil {
		return []domain.Command{domain.ReadEventCount(a.DeviceId)}
	}

	switch lastEvent.Kind {
	case domain.EvDeviceBonded:
		return []domain.Command{domain.ConnectGatt(a.DeviceId)}

	case domain.EvDeviceConnected:
		return []domain.Command{domain.ReadEventCount(a.DeviceId)}

	case domain.EvEventCountLoaded:
		if a.IsFullyAcked() {
			return []domain.Command{domain.ReadEventCount(a.DeviceId)}
		}
		return []domain.Command{domain.ReadEvents(a.DeviceId, a.LastAckedExclusive, domain.EventCount(a.PageSize))}

	case domain.EvEventsRead:
		return []domain.Command{domain.DeliverToApp(a.DeviceId, lastEvent.Range)}

	case domain.EvEventsDelivered:
		return []domain.Command{domain.Acknowledge(a.DeviceId, lastEvent.Range.End)}

	case domain.EvEventsAcked:
		if domain.EventOffset(a.LastAckedExclusive) < domain.EventOffset(a.TotalOnDevice) {
			outcome := policy.PageMostlyStable
			if a.LastError == nil {
				outcome = policy.PageStable
			}
			nextPage := s.PageSizing.Next(a.PageSize, outcome)
			return []domain.Command{domain.ReadEvents(a.DeviceId, a.LastAckedExclusive, domain.EventCount(nextPage))}
		}
		return []domain.Command{domain.ReadEventCount(a.DeviceId)}

	case domain.EvDisconnected:
		return s.connectOrBackoffWithReason(a, now, domain.RetryReason{Kind: domain.RetryTemporaryGattError})

	default:
		return nil
	}
}

// connectOrBackoffWithReason mirrors connectOrBackoff but uses the given
// retry reason instead of BackoffAfterFailure — used for the Disconnected
// dispatch, which per spec §4.5 step 4 follows the same shape as step 2
// but tags the retry as TemporaryGattError.
func (s Saga) connectOrBackoffWithReason(a domain.SyncAggregate, now domain.TimestampMs, reason domain.RetryReason) []domain.Command {
	if s.ConnectBreaker.IsCallAllowed(now, a.ConnectBreaker) {
		return []domain.Command{domain.ConnectGatt(a.DeviceId)}
	}
	return s.retryOrGiveUp(a, now, domain.AttemptConnectGatt, reason)
}

// retryOrGiveUp consults the retry policy; an empty slice means give up.
func (s Saga) retryOrGiveUp(a domain.SyncAggregate, now domain.TimestampMs, key domain.AttemptKey, reason domain.RetryReason) []domain.Command {
	outcome := s.ConnectRetry.Decide(now, a.AttemptsFor(key), reason)
	if !outcome.ShouldSchedule {
		return nil
	}
	return []domain.Command{domain.ScheduleRetry(a.DeviceId, outcome.At, reason)}
}
