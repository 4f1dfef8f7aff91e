// Package domain — aggregate.go
//
// SyncAggregate is the authoritative per-device state value. It is
// immutable: the reducer in reducer.go always returns a new value rather
// than mutating fields in place, so the actor can hand the "before" value
// to telemetry/tests without it shifting underneath them.

package domain

// SyncAggregate is the per-device snapshot of sync progress.
type SyncAggregate struct {
	DeviceId DeviceId

	BondStatus       BondStatus
	ConnectionStatus ConnectionStatus

	// LastAckedExclusive is the exactly-once high-water mark: all offsets
	// below it are durably delivered. Monotonic non-decreasing — see the
	// EvEventsAcked clause of Apply.
	LastAckedExclusive EventOffset

	// InFlightOffset is the start of the currently-read page, or nil when
	// no read is outstanding.
	InFlightOffset *EventOffset
	// inFlightCount is the count requested for the current in-flight page;
	// needed to compute the "ack reached the in-flight page end" clearing
	// rule without the redundant self-comparison the reference reducer
	// used (see spec Open Question (a)).
	inFlightCount EventCount

	TotalOnDevice EventCount
	PageSize      PageSize

	Attempts map[AttemptKey]int

	BondBreaker    BreakerState
	ConnectBreaker BreakerState
	ReadBreaker    BreakerState
	DeliverBreaker BreakerState
	AckBreaker     BreakerState

	LastError *DomainError

	SagaCursor string
}

// NewSyncAggregate returns the zero-value aggregate for a freshly-started
// actor: unbonded, disconnected, nothing acked, default page size.
func NewSyncAggregate(dev DeviceId, defaultPageSize PageSize) SyncAggregate {
	return SyncAggregate{
		DeviceId:         dev,
		BondStatus:       BondUnknown,
		ConnectionStatus: ConnDisconnected,
		PageSize:         defaultPageSize,
		Attempts:         map[AttemptKey]int{},
		BondBreaker:      NewBreakerState(),
		ConnectBreaker:   NewBreakerState(),
		ReadBreaker:      NewBreakerState(),
		DeliverBreaker:   NewBreakerState(),
		AckBreaker:       NewBreakerState(),
		SagaCursor:       "Init",
	}
}

// IsFullyAcked reports whether every event the device has ever reported is
// durably delivered.
func (a SyncAggregate) IsFullyAcked() bool {
	return a.LastAckedExclusive >= EventOffset(a.TotalOnDevice)
}

// HasInFlight reports whether a page read is outstanding.
func (a SyncAggregate) HasInFlight() bool {
	return a.InFlightOffset != nil
}

// AttemptsFor returns the recorded attempt count for an operation family,
// defaulting to 0.
func (a SyncAggregate) AttemptsFor(key AttemptKey) int {
	return a.Attempts[key]
}

// clone performs the shallow copy every reducer clause starts from. Maps
// are copied explicitly (Go map assignment aliases); breaker/error pointers
// are plain values or replaced wholesale, never mutated in place.
func (a SyncAggregate) clone() SyncAggregate {
	next := a
	next.Attempts = make(map[AttemptKey]int, len(a.Attempts))
	for k, v := range a.Attempts {
		next.Attempts[k] = v
	}
	return next
}

// WithAttempt returns a copy with the attempt counter for key set to n.
// The reducer calls this from the clauses that bound an operation family's
// failure/success (e.g. Disconnected increments AttemptConnectGatt,
// DeviceConnected resets it) so retryOrGiveUp's cap reads a counter that
// actually moves.
func (a SyncAggregate) WithAttempt(key AttemptKey, n int) SyncAggregate {
	next := a.clone()
	next.Attempts[key] = n
	return next
}

// SyncSnapshot is the minimal durable record written to the StateStorePort.
// Deliberately excludes payloads, breaker state, and attempt counters —
// those are rebuilt from the device's own behaviour after a crash restart.
type SyncSnapshot struct {
	DeviceId           DeviceId
	LastAckedExclusive EventOffset
	PageSize           PageSize
	SagaCursor         string
}

// ToSnapshot projects the persisted subset of the aggregate.
func (a SyncAggregate) ToSnapshot() SyncSnapshot {
	return SyncSnapshot{
		DeviceId:           a.DeviceId,
		LastAckedExclusive: a.LastAckedExclusive,
		PageSize:           a.PageSize,
		SagaCursor:         a.SagaCursor,
	}
}

// RestoreFromSnapshot overlays a restored snapshot onto a freshly
// constructed aggregate. Per §4.6.1, only LastAckedExclusive, PageSize, and
// SagaCursor are taken from the snapshot — everything else (bond/connection
// status, breakers, attempts) starts fresh because the process and its
// transport state did not survive the crash.
func (a SyncAggregate) RestoreFromSnapshot(s SyncSnapshot) SyncAggregate {
	next := a.clone()
	next.LastAckedExclusive = s.LastAckedExclusive
	next.PageSize = s.PageSize
	next.SagaCursor = s.SagaCursor
	return next
}

// SyncStatus is a read-only projection of a SyncAggregate for
// introspection/metrics consumers. It is derived purely from the
// aggregate and is never fed back into the reducer or saga.
type SyncStatus struct {
	DeviceId           DeviceId
	BondStatus         BondStatus
	ConnectionStatus   ConnectionStatus
	LastAckedExclusive EventOffset
	TotalOnDevice      EventCount
	PercentComplete    float64
	LastError          *DomainError
	SagaCursor         string
	BondBreakerPhase   BreakerPhase
	ConnectBreakerPhase BreakerPhase
	ReadBreakerPhase   BreakerPhase
	DeliverBreakerPhase BreakerPhase
	AckBreakerPhase    BreakerPhase
}

// Project builds a SyncStatus view of an aggregate.
func Project(a SyncAggregate) SyncStatus {
	var pct float64
	if a.TotalOnDevice > 0 {
		pct = float64(a.LastAckedExclusive) / float64(a.TotalOnDevice) * 100.0
		if pct > 100.0 {
			pct = 100.0
		}
	}
	return SyncStatus{
		DeviceId:            a.DeviceId,
		BondStatus:          a.BondStatus,
		ConnectionStatus:    a.ConnectionStatus,
		LastAckedExclusive:  a.LastAckedExclusive,
		TotalOnDevice:       a.TotalOnDevice,
		PercentComplete:     pct,
		LastError:           a.LastError,
		SagaCursor:          a.SagaCursor,
		BondBreakerPhase:    a.BondBreaker.Phase,
		ConnectBreakerPhase: a.ConnectBreaker.Phase,
		ReadBreakerPhase:    a.ReadBreaker.Phase,
		DeliverBreakerPhase: a.DeliverBreaker.Phase,
		AckBreakerPhase:     a.AckBreaker.Phase,
	}
}
