// Package ports — the boundary between the pure domain/saga layers and
// everything that talks to a real peripheral, clock, disk, or metrics
// sink (see spec §4.7). Every method here either blocks and returns
// synchronously from the actor's point of view, or is fire-and-forget;
// none of them touch SyncAggregate state directly.
package ports

import (
	"context"

	"github.com/octorelay/blesync-engine/internal/domain"
)

// BlePort talks to a single peripheral's GATT surface. Each method
// returns exactly one event chosen from a documented subset — callers
// never need to inspect an error return on top of the event.
type BlePort interface {
	Bond(ctx context.Context, dev domain.DeviceId) domain.Event
	Connect(ctx context.Context, dev domain.DeviceId) domain.Event
	Disconnect(ctx context.Context, dev domain.DeviceId) domain.Event
	ReadCount(ctx context.Context, dev domain.DeviceId) domain.Event
	// ReadPage returns EventsRead, Disconnected, or SyncFailed.
	ReadPage(ctx context.Context, dev domain.DeviceId, offset domain.EventOffset, count domain.EventCount) domain.Event
	Ack(ctx context.Context, dev domain.DeviceId, upTo domain.EventOffset) domain.Event
}

// DeliveryPort hands a range of already-read events to the app side.
type DeliveryPort interface {
	// Deliver returns EventsDelivered, SyncFailed, or Disconnected.
	Deliver(ctx context.Context, dev domain.DeviceId, r domain.EventRange) domain.Event
}

// TimerToken identifies a scheduled callback so it can be cancelled.
type TimerToken uint64

// ClockPort is the actor's only source of time and deferred execution.
// The callback passed to Schedule must post TimerFired to the actor's
// own mailbox — it must never touch aggregate state directly, since it
// may run on a different goroutine than the mailbox loop.
type ClockPort interface {
	Now() domain.TimestampMs
	Schedule(at domain.TimestampMs, onFire func()) TimerToken
	Cancel(token TimerToken)
}

// StateStorePort durably persists and restores a SyncSnapshot keyed by
// deviceId.
type StateStorePort interface {
	Read(ctx context.Context, dev domain.DeviceId) (domain.SyncSnapshot, bool, error)
	Write(ctx context.Context, dev domain.DeviceId, snap domain.SyncSnapshot) error
}

// TelemetryEvent is one fire-and-forget observation emitted by the actor
// or by a port adapter.
type TelemetryEvent struct {
	Name     string
	At       domain.TimestampMs
	DeviceId domain.DeviceId
	Data     map[string]string
}

// TelemetryPort records TelemetryEvent occurrences. Emit must never
// block the mailbox loop or return an error the actor needs to act on.
type TelemetryPort interface {
	Emit(e TelemetryEvent)
}
