// Package domain — types.go
//
// Core value types for the BLE sync engine: identifiers, offsets, ranges,
// and the closed error taxonomy. Everything in this file is a plain value
// — no I/O, no concurrency primitives, no clocks.

package domain

import "fmt"

// DeviceId is a non-empty opaque identifier for a peripheral, used as the
// storage key for its sync state.
type DeviceId string

// EventOffset is a non-negative position in a device's append-only event
// log.
type EventOffset uint64

// Add returns the offset advanced by count.
func (o EventOffset) Add(count EventCount) EventOffset {
	return o + EventOffset(count)
}

// EventCount is a non-negative count of events.
type EventCount uint64

// PageSize is a strictly positive page size used for paged reads.
type PageSize uint32

// TimestampMs is milliseconds since the Unix epoch.
type TimestampMs int64

// AttemptKey buckets retry attempt counters by operation family, e.g.
// "ConnectGatt".
type AttemptKey string

const (
	AttemptConnectGatt AttemptKey = "ConnectGatt"
	AttemptBondDevice  AttemptKey = "BondDevice"
	AttemptReadCount   AttemptKey = "ReadEventCount"
	AttemptReadEvents  AttemptKey = "ReadEvents"
	AttemptDeliver     AttemptKey = "DeliverToApp"
	AttemptAcknowledge AttemptKey = "Acknowledge"
)

// EventRange is a half-open interval [Start, End) over a device's event
// log. End must be >= Start.
type EventRange struct {
	Start EventOffset
	End   EventOffset
}

// NewEventRange constructs a range of the given count starting at offset.
func NewEventRange(start EventOffset, count EventCount) EventRange {
	return EventRange{Start: start, End: start.Add(count)}
}

// Count returns End - Start.
func (r EventRange) Count() EventCount {
	if r.End < r.Start {
		return 0
	}
	return EventCount(r.End - r.Start)
}

// String renders the range as "[start,end)".
func (r EventRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// BondStatus is the pairing state of a peripheral.
type BondStatus int

const (
	BondUnknown BondStatus = iota
	BondNotBonded
	BondBonding
	BondBonded
)

func (s BondStatus) String() string {
	switch s {
	case BondUnknown:
		return "Unknown"
	case BondNotBonded:
		return "NotBonded"
	case BondBonding:
		return "Bonding"
	case BondBonded:
		return "Bonded"
	default:
		return fmt.Sprintf("BondStatus(%d)", int(s))
	}
}

// ConnectionStatus is the GATT link state of a peripheral.
type ConnectionStatus int

const (
	ConnDisconnected ConnectionStatus = iota
	ConnConnecting
	ConnConnected
)

func (s ConnectionStatus) String() string {
	switch s {
	case ConnDisconnected:
		return "Disconnected"
	case ConnConnecting:
		return "Connecting"
	case ConnConnected:
		return "Connected"
	default:
		return fmt.Sprintf("ConnectionStatus(%d)", int(s))
	}
}

// BreakerPhase is the three-state gate of a circuit breaker.
type BreakerPhase int

const (
	BreakerClosed BreakerPhase = iota
	BreakerOpen
	BreakerHalfOpen
)

func (p BreakerPhase) String() string {
	switch p {
	case BreakerClosed:
		return "Closed"
	case BreakerOpen:
		return "Open"
	case BreakerHalfOpen:
		return "HalfOpen"
	default:
		return fmt.Sprintf("BreakerPhase(%d)", int(p))
	}
}

// ErrorKind identifies which branch of the error taxonomy a DomainError
// belongs to. Kept as a distinct type (rather than reusing string message
// matching) so the saga and policies can switch on it exhaustively.
type ErrorKind int

const (
	ErrPermissionRequired ErrorKind = iota
	ErrUserActionRequired
	ErrTransport
	ErrProtocol
	ErrUnexpected
)

func (k ErrorKind) String() string {
	switch k {
	case ErrPermissionRequired:
		return "PermissionRequired"
	case ErrUserActionRequired:
		return "UserActionRequired"
	case ErrTransport:
		return "Transport"
	case ErrProtocol:
		return "Protocol"
	case ErrUnexpected:
		return "Unexpected"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// DomainError is the closed sum type for everything that can go wrong
// talking to a peripheral. It is a value, never a wrapped stdlib error —
// ports convert transport failures into a DomainError at the boundary.
type DomainError struct {
	Kind       ErrorKind
	Message    string
	Permission string // set when Kind == ErrPermissionRequired
	Action     string // set when Kind == ErrUserActionRequired
	Code       *int   // set when Kind == ErrTransport and a GATT status code is known
}

func (e DomainError) Error() string {
	switch e.Kind {
	case ErrPermissionRequired:
		return fmt.Sprintf("permission required: %s", e.Permission)
	case ErrUserActionRequired:
		return fmt.Sprintf("user action required: %s", e.Action)
	case ErrTransport:
		if e.Code != nil {
			return fmt.Sprintf("transport error: %s (code=%d)", e.Message, *e.Code)
		}
		return fmt.Sprintf("transport error: %s", e.Message)
	case ErrProtocol:
		return fmt.Sprintf("protocol error: %s", e.Message)
	default:
		return fmt.Sprintf("unexpected error: %s", e.Message)
	}
}

// PermissionRequiredError constructs a PermissionRequired DomainError.
func PermissionRequiredError(permission string) DomainError {
	return DomainError{Kind: ErrPermissionRequired, Permission: permission}
}

// UserActionRequiredError constructs a UserActionRequired DomainError.
func UserActionRequiredError(action string) DomainError {
	return DomainError{Kind: ErrUserActionRequired, Action: action}
}

// TransportError constructs a Transport DomainError, optionally carrying a
// GATT status code.
func TransportError(message string, code *int) DomainError {
	return DomainError{Kind: ErrTransport, Message: message, Code: code}
}

// ProtocolError constructs a Protocol DomainError.
func ProtocolError(message string) DomainError {
	return DomainError{Kind: ErrProtocol, Message: message}
}

// UnexpectedError constructs an Unexpected DomainError.
func UnexpectedError(message string) DomainError {
	return DomainError{Kind: ErrUnexpected, Message: message}
}

// RetryReasonKind identifies a RetryReason variant.
type RetryReasonKind int

const (
	RetryTemporaryGattError RetryReasonKind = iota
	RetryRadioBusy
	RetryBackoffAfterFailure
	RetryCustom
)

// RetryReason explains why a retry was scheduled.
type RetryReason struct {
	Kind   RetryReasonKind
	Custom string // set when Kind == RetryCustom
}

func (r RetryReason) String() string {
	switch r.Kind {
	case RetryTemporaryGattError:
		return "TemporaryGattError"
	case RetryRadioBusy:
		return "RadioBusy"
	case RetryBackoffAfterFailure:
		return "BackoffAfterFailure"
	case RetryCustom:
		return r.Custom
	default:
		return fmt.Sprintf("RetryReason(%d)", int(r.Kind))
	}
}

// DisconnectReasonKind identifies a DisconnectReason variant.
type DisconnectReasonKind int

const (
	DisconnectPeerClosed DisconnectReasonKind = iota
	DisconnectTimeout
	DisconnectGattError
	DisconnectCustom
)

// DisconnectReason explains why the GATT link dropped.
type DisconnectReason struct {
	Kind   DisconnectReasonKind
	Custom string // set when Kind == DisconnectCustom
}

func (r DisconnectReason) String() string {
	switch r.Kind {
	case DisconnectPeerClosed:
		return "PeerClosed"
	case DisconnectTimeout:
		return "Timeout"
	case DisconnectGattError:
		return "GattError"
	case DisconnectCustom:
		return r.Custom
	default:
		return fmt.Sprintf("DisconnectReason(%d)", int(r.Kind))
	}
}

// BreakerState is the persisted state of one circuit breaker stage. One
// instance exists per stage (bond, connect, read, deliver, ack) inside a
// SyncAggregate. It is a plain value — policy.BreakerPolicy holds the pure
// functions that transition it.
type BreakerState struct {
	Phase       BreakerPhase
	OpenedAt    *TimestampMs
	LastFailure *DomainError
}

// NewBreakerState returns a breaker starting Closed.
func NewBreakerState() BreakerState {
	return BreakerState{Phase: BreakerClosed}
}
