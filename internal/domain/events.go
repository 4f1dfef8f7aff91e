// Package domain — events.go
//
// Events are facts: something that already happened, produced by executing
// a command or observed externally. The reducer folds events into the
// aggregate; the saga reads the last event (plus the resulting aggregate)
// to decide what happens next. Events never carry behaviour, only data.

package domain

// EventKind tags which variant an Event carries. The reducer and saga
// switch over EventKind; Go does not check those switches for
// exhaustiveness, so a new variant falls into their default branches
// until a case is added for it.
type EventKind int

const (
	EvDeviceBonded EventKind = iota
	EvDeviceConnected
	EvEventCountLoaded
	EvEventsRead
	EvEventsDelivered
	EvEventsAcked
	EvDisconnected
	EvRetryScheduled
	EvSyncCompleted
	EvSyncFailed
)

func (k EventKind) String() string {
	switch k {
	case EvDeviceBonded:
		return "DeviceBonded"
	case EvDeviceConnected:
		return "DeviceConnected"
	case EvEventCountLoaded:
		return "EventCountLoaded"
	case EvEventsRead:
		return "EventsRead"
	case EvEventsDelivered:
		return "EventsDelivered"
	case EvEventsAcked:
		return "EventsAcked"
	case EvDisconnected:
		return "Disconnected"
	case EvRetryScheduled:
		return "RetryScheduled"
	case EvSyncCompleted:
		return "SyncCompleted"
	case EvSyncFailed:
		return "SyncFailed"
	default:
		return "Unknown"
	}
}

// Event is the tagged union of everything the reducer can apply. Only the
// fields relevant to Kind are populated; callers construct Events via the
// constructors below rather than building the struct literal directly, so
// stray fields can't leak between variants.
type Event struct {
	Kind     EventKind
	DeviceId DeviceId
	At       TimestampMs

	Total        EventCount        // EvEventCountLoaded
	Range        EventRange        // EvEventsRead, EvEventsDelivered
	UpTo         EventOffset       // EvEventsAcked
	Disconnect   DisconnectReason  // EvDisconnected
	GattCode     *int              // EvDisconnected
	RetryAt      TimestampMs       // EvRetryScheduled
	Err          DomainError       // EvSyncFailed
}

func DeviceBonded(dev DeviceId, at TimestampMs) Event {
	return Event{Kind: EvDeviceBonded, DeviceId: dev, At: at}
}

func DeviceConnected(dev DeviceId, at TimestampMs) Event {
	return Event{Kind: EvDeviceConnected, DeviceId: dev, At: at}
}

func EventCountLoaded(dev DeviceId, at TimestampMs, total EventCount) Event {
	return Event{Kind: EvEventCountLoaded, DeviceId: dev, At: at, Total: total}
}

func EventsRead(dev DeviceId, at TimestampMs, r EventRange) Event {
	return Event{Kind: EvEventsRead, DeviceId: dev, At: at, Range: r}
}

func EventsDelivered(dev DeviceId, at TimestampMs, r EventRange) Event {
	return Event{Kind: EvEventsDelivered, DeviceId: dev, At: at, Range: r}
}

func EventsAcked(dev DeviceId, at TimestampMs, upTo EventOffset) Event {
	return Event{Kind: EvEventsAcked, DeviceId: dev, At: at, UpTo: upTo}
}

func Disconnected(dev DeviceId, at TimestampMs, reason DisconnectReason, gattCode *int) Event {
	return Event{Kind: EvDisconnected, DeviceId: dev, At: at, Disconnect: reason, GattCode: gattCode}
}

func RetryScheduled(dev DeviceId, at TimestampMs, fireAt TimestampMs) Event {
	return Event{Kind: EvRetryScheduled, DeviceId: dev, At: at, RetryAt: fireAt}
}

func SyncCompleted(dev DeviceId, at TimestampMs) Event {
	return Event{Kind: EvSyncCompleted, DeviceId: dev, At: at}
}

func SyncFailed(dev DeviceId, at TimestampMs, err DomainError) Event {
	return Event{Kind: EvSyncFailed, DeviceId: dev, At: at, Err: err}
}
