// Package domain — reducer.go
//
// Apply is the single pure event-application function: one clause per
// event variant, total and deterministic, no I/O. See spec §4.1.

package domain

import "fmt"

// Apply folds one event into an aggregate, returning a new aggregate. It
// never panics on an unrecognized Kind — per §7, unknown events are
// no-ops, not faults.
func Apply(a SyncAggregate, e Event) SyncAggregate {
	next := a.clone()

	switch e.Kind {
	case EvDeviceBonded:
		next.BondStatus = BondBonded
		next.SagaCursor = "Bonded"

	case EvDeviceConnected:
		next.ConnectionStatus = ConnConnected
		next = next.WithAttempt(AttemptConnectGatt, 0)
		next.SagaCursor = "Connected"

	case EvEventCountLoaded:
		next.TotalOnDevice = e.Total
		next.SagaCursor = "CountLoaded"

	case EvEventsRead:
		start := e.Range.Start
		next.InFlightOffset = &start
		next.inFlightCount = e.Range.Count()
		next.SagaCursor = fmt.Sprintf("Read:%d-%d", e.Range.Start, e.Range.End)

	case EvEventsDelivered:
		// Does not advance the high-water mark — only Acknowledge does.
		next.SagaCursor = fmt.Sprintf("Delivered:%d-%d", e.Range.Start, e.Range.End)

	case EvEventsAcked:
		newAck := a.LastAckedExclusive
		if e.UpTo > newAck {
			newAck = e.UpTo
		}
		next.LastAckedExclusive = newAck
		// Clear the in-flight marker once the ack reaches the end of the
		// page that was in flight (spec Open Question (a): intent is "ack
		// reached the in-flight page end", not a redundant self-compare).
		if a.InFlightOffset != nil && newAck >= (*a.InFlightOffset).Add(a.inFlightCount) {
			next.InFlightOffset = nil
			next.inFlightCount = 0
		}
		next.SagaCursor = fmt.Sprintf("Acked:%d", newAck)

	case EvDisconnected:
		next.ConnectionStatus = ConnDisconnected
		err := TransportError(e.Disconnect.String(), e.GattCode)
		next.LastError = &err
		// Disconnected always follows a failed or dropped ConnectGatt call —
		// count it so retryOrGiveUp's cap is actually reachable (spec §4.2,
		// §8.5 "Retry cap").
		next = next.WithAttempt(AttemptConnectGatt, next.AttemptsFor(AttemptConnectGatt)+1)
		next.SagaCursor = "Disconnected"

	case EvRetryScheduled:
		next.SagaCursor = fmt.Sprintf("RetryScheduled@%d", e.RetryAt)

	case EvSyncCompleted:
		next.SagaCursor = "Completed"

	case EvSyncFailed:
		err := e.Err
		next.LastError = &err
		next.SagaCursor = "Failed"

	default:
		// Unrecognized event: no-op.
		return a
	}

	return next
}
