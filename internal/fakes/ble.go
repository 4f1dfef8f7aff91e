package fakes

import (
	"context"
	"sync"

	"github.com/octorelay/blesync-engine/internal/domain"
	"github.com/octorelay/blesync-engine/internal/ports"
	"github.com/octorelay/blesync-engine/internal/wire"
)

// BleScript is one scripted outcome for a BlePort call. Exactly one of
// the Event-producing fields should be relevant for the call it answers;
// tests build a FIFO queue per method and BlePort pops one entry per
// invocation.
type BleScript struct {
	// Total is used by ReadCount scripts.
	Total domain.EventCount
	// GattCode, when non-zero, causes the call to fail with the
	// corresponding transport classification instead of succeeding.
	GattCode int
	// Disconnect, when set, makes the call return Disconnected instead
	// of its normal success event.
	Disconnect *domain.DisconnectReason
}

// BlePort is an in-memory, fully scriptable ports.BlePort. Each method
// pops the next queued BleScript (or synthesizes a plain success if the
// queue for that method is empty).
type BlePort struct {
	mu sync.Mutex

	bondScripts    []BleScript
	connectScripts []BleScript
	readCount      []BleScript
	readPage       []BleScript
	ackScripts     []BleScript

	Clock ports.ClockPort
}

// NewBlePort constructs an empty BlePort. Populate its per-method script
// queues via the Queue* helpers before wiring it to an actor.
func NewBlePort(clock ports.ClockPort) *BlePort {
	return &BlePort{Clock: clock}
}

func (b *BlePort) QueueBond(s BleScript)       { b.mu.Lock(); b.bondScripts = append(b.bondScripts, s); b.mu.Unlock() }
func (b *BlePort) QueueConnect(s BleScript)    { b.mu.Lock(); b.connectScripts = append(b.connectScripts, s); b.mu.Unlock() }
func (b *BlePort) QueueReadCount(s BleScript)  { b.mu.Lock(); b.readCount = append(b.readCount, s); b.mu.Unlock() }
func (b *BlePort) QueueReadPage(s BleScript)   { b.mu.Lock(); b.readPage = append(b.readPage, s); b.mu.Unlock() }
func (b *BlePort) QueueAck(s BleScript)        { b.mu.Lock(); b.ackScripts = append(b.ackScripts, s); b.mu.Unlock() }

func pop(q *[]BleScript) BleScript {
	if len(*q) == 0 {
		return BleScript{}
	}
	s := (*q)[0]
	*q = (*q)[1:]
	return s
}

func (b *BlePort) Bond(ctx context.Context, dev domain.DeviceId) domain.Event {
	b.mu.Lock()
	s := pop(&b.bondScripts)
	b.mu.Unlock()
	now := b.Clock.Now()
	if s.Disconnect != nil {
		return domain.Disconnected(dev, now, *s.Disconnect, nil)
	}
	if s.GattCode != 0 {
		return domain.SyncFailed(dev, now, classify(s.GattCode, "bond failed"))
	}
	return domain.DeviceBonded(dev, now)
}

func (b *BlePort) Connect(ctx context.Context, dev domain.DeviceId) domain.Event {
	b.mu.Lock()
	s := pop(&b.connectScripts)
	b.mu.Unlock()
	now := b.Clock.Now()
	if s.Disconnect != nil {
		return domain.Disconnected(dev, now, *s.Disconnect, nil)
	}
	if s.GattCode != 0 {
		return domain.SyncFailed(dev, now, classify(s.GattCode, "connect failed"))
	}
	return domain.DeviceConnected(dev, now)
}

func (b *BlePort) Disconnect(ctx context.Context, dev domain.DeviceId) domain.Event {
	now := b.Clock.Now()
	return domain.Disconnected(dev, now, domain.DisconnectReason{Kind: domain.DisconnectPeerClosed}, nil)
}

func (b *BlePort) ReadCount(ctx context.Context, dev domain.DeviceId) domain.Event {
	b.mu.Lock()
	s := pop(&b.readCount)
	b.mu.Unlock()
	now := b.Clock.Now()
	if s.Disconnect != nil {
		return domain.Disconnected(dev, now, *s.Disconnect, nil)
	}
	if s.GattCode != 0 {
		return domain.SyncFailed(dev, now, classify(s.GattCode, "read count failed"))
	}
	return domain.EventCountLoaded(dev, now, s.Total)
}

func (b *BlePort) ReadPage(ctx context.Context, dev domain.DeviceId, offset domain.EventOffset, count domain.EventCount) domain.Event {
	b.mu.Lock()
	s := pop(&b.readPage)
	b.mu.Unlock()
	now := b.Clock.Now()
	if s.Disconnect != nil {
		return domain.Disconnected(dev, now, *s.Disconnect, nil)
	}
	if s.GattCode != 0 {
		return domain.SyncFailed(dev, now, classify(s.GattCode, "read page failed"))
	}
	return domain.EventsRead(dev, now, domain.NewEventRange(offset, count))
}

func (b *BlePort) Ack(ctx context.Context, dev domain.DeviceId, upTo domain.EventOffset) domain.Event {
	b.mu.Lock()
	s := pop(&b.ackScripts)
	b.mu.Unlock()
	now := b.Clock.Now()
	if s.Disconnect != nil {
		return domain.Disconnected(dev, now, *s.Disconnect, nil)
	}
	if s.GattCode != 0 {
		return domain.SyncFailed(dev, now, classify(s.GattCode, "ack failed"))
	}
	return domain.EventsAcked(dev, now, upTo)
}

// classify reuses the same codec table a real adapter would: the fake
// exercises wire.ClassifyTransportCodeError rather than inventing its
// own mapping.
func classify(code int, message string) domain.DomainError {
	return *wire.ClassifyTransportCodeError(code, message)
}
