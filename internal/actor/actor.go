// Package actor is the single-threaded mailbox runtime that drives one
// device's sync. It owns the SyncAggregate, executes the saga's
// commands against the ports, and re-enters every port result as an
// event rather than applying it directly — see spec §4.6.
package actor

import (
	"context"

	"github.com/octorelay/blesync-engine/internal/domain"
	"github.com/octorelay/blesync-engine/internal/ports"
	"github.com/octorelay/blesync-engine/internal/saga"
)

// messageKind tags the mailbox message union.
type messageKind int

const (
	msgStart messageKind = iota
	msgDomainEvent
	msgTimerFired
	msgStop
)

type message struct {
	kind  messageKind
	event domain.Event
}

// Deps bundles the ports and saga an Actor needs. All fields are
// required.
type Deps struct {
	Ble       ports.BlePort
	Delivery  ports.DeliveryPort
	Clock     ports.ClockPort
	Store     ports.StateStorePort
	Telemetry ports.TelemetryPort
	Saga      saga.Saga
}

// Actor runs the mailbox loop for a single device. Start it with Run in
// its own goroutine; feed it via Post* methods from any goroutine.
type Actor struct {
	dev  domain.DeviceId
	deps Deps

	aggregate   domain.SyncAggregate
	retryToken  *ports.TimerToken
	readInFlight bool

	mailbox chan message
}

// New constructs an Actor for dev, seeded with a fresh aggregate at
// defaultPageSize. Call Run to start the mailbox loop.
func New(dev domain.DeviceId, defaultPageSize domain.PageSize, deps Deps) *Actor {
	return &Actor{
		dev:       dev,
		deps:      deps,
		aggregate: domain.NewSyncAggregate(dev, defaultPageSize),
		mailbox:   make(chan message, 256),
	}
}

// PostStart enqueues the bootstrap message. Must be the first message
// posted.
func (a *Actor) PostStart() { a.mailbox <- message{kind: msgStart} }

// PostEvent enqueues a DomainEvent.
func (a *Actor) PostEvent(e domain.Event) { a.mailbox <- message{kind: msgDomainEvent, event: e} }

// PostTimerFired enqueues a TimerFired message.
func (a *Actor) PostTimerFired() { a.mailbox <- message{kind: msgTimerFired} }

// PostStop enqueues a Stop message; the actor drains after the message
// ahead of it in FIFO order.
func (a *Actor) PostStop() { a.mailbox <- message{kind: msgStop} }

// Snapshot returns a read-only projection of the current aggregate. Safe
// to call from any goroutine only after Run has returned (the mailbox
// loop is the sole writer); callers that need a live view while Run is
// active should instead observe telemetry or snapshot writes.
func (a *Actor) Snapshot() domain.SyncStatus { return domain.Project(a.aggregate) }

// Run drains the mailbox until a Stop message is processed or ctx is
// cancelled. It is meant to be the entire body of the actor's goroutine.
func (a *Actor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			a.cancelTimer()
			return
		case msg := <-a.mailbox:
			switch msg.kind {
			case msgStart:
				a.handleStart(ctx)
			case msgDomainEvent:
				a.handleDomainEvent(ctx, msg.event)
			case msgTimerFired:
				a.handleTimerFired(ctx)
			case msgStop:
				a.cancelTimer()
				return
			}
		}
	}
}

func (a *Actor) handleStart(ctx context.Context) {
	if snap, ok, err := a.deps.Store.Read(ctx, a.dev); err == nil && ok {
		a.aggregate = a.aggregate.RestoreFromSnapshot(snap)
		a.emitTelemetry("snapshot_restored", map[string]string{
			"lastAckedExclusive": offsetString(snap.LastAckedExclusive),
			"cursor":             snap.SagaCursor,
		})
	}
	a.decideAndExecute(ctx, nil)
}

func (a *Actor) handleDomainEvent(ctx context.Context, e domain.Event) {
	a.aggregate = domain.Apply(a.aggregate, e)

	switch e.Kind {
	case domain.EvEventsRead:
		a.readInFlight = true
	case domain.EvEventsAcked:
		if !a.aggregate.HasInFlight() {
			a.readInFlight = false
		}
		a.snapshot(ctx, "acked")
	case domain.EvDisconnected:
		a.snapshot(ctx, "disconnected")
	case domain.EvSyncFailed:
		a.emitTelemetry("sync_failed", map[string]string{"kind": e.Err.Kind.String()})
	}

	a.decideAndExecute(ctx, &e)
}

func (a *Actor) handleTimerFired(ctx context.Context) {
	a.retryToken = nil
	now := a.deps.Clock.Now()
	e := domain.RetryScheduled(a.dev, now, now)
	a.aggregate = domain.Apply(a.aggregate, e)
	a.decideAndExecute(ctx, &e)
}

func (a *Actor) decideAndExecute(ctx context.Context, lastEvent *domain.Event) {
	now := a.deps.Clock.Now()
	cmds := a.deps.Saga.Decide(a.aggregate, lastEvent, now)
	for _, cmd := range cmds {
		a.execute(ctx, cmd)
	}
}

// execute runs one command in-line on the mailbox consumer, preserving
// strict serialization. Port results are posted back as DomainEvents,
// never applied directly.
func (a *Actor) execute(ctx context.Context, cmd domain.Command) {
	switch cmd.Kind {
	case domain.CmdScheduleRetry:
		a.cancelTimer()
		token := a.deps.Clock.Schedule(cmd.RetryAt, func() { a.PostTimerFired() })
		a.retryToken = &token
		a.emitTelemetry("retry_scheduled", map[string]string{"reason": cmd.Reason.String(), "at": msString(cmd.RetryAt)})

	case domain.CmdBondDevice:
		a.PostEvent(a.deps.Ble.Bond(ctx, a.dev))

	case domain.CmdConnectGatt:
		a.PostEvent(a.deps.Ble.Connect(ctx, a.dev))

	case domain.CmdReadEventCount:
		a.PostEvent(a.deps.Ble.ReadCount(ctx, a.dev))

	case domain.CmdAcknowledge:
		a.PostEvent(a.deps.Ble.Ack(ctx, a.dev, cmd.UpTo))

	case domain.CmdReadEvents:
		if a.readInFlight {
			a.emitTelemetry("read_skipped_backpressure", map[string]string{"offset": offsetString(cmd.Offset)})
			return
		}
		a.readInFlight = true
		a.PostEvent(a.deps.Ble.ReadPage(ctx, a.dev, cmd.Offset, cmd.Count))

	case domain.CmdDeliverToApp:
		a.PostEvent(a.deps.Delivery.Deliver(ctx, a.dev, cmd.Range))

	case domain.CmdStop:
		a.PostStop()

	default:
		a.emitTelemetry("unknown_command_ignored", map[string]string{"kind": cmd.Kind.String()})
	}
}

// snapshot writes the durable subset of the aggregate and emits the
// snapshot_saved telemetry event. Triggered on EventsAcked and
// opportunistically on Disconnected — see spec §4.6.4.
func (a *Actor) snapshot(ctx context.Context, reason string) {
	snap := a.aggregate.ToSnapshot()
	if err := a.deps.Store.Write(ctx, a.dev, snap); err != nil {
		a.emitTelemetry("sync_failed", map[string]string{"stage": "snapshot_write", "error": err.Error()})
		return
	}
	a.emitTelemetry("snapshot_saved", map[string]string{
		"reason": reason,
		"acked":  offsetString(snap.LastAckedExclusive),
		"pageSize": pageSizeString(snap.PageSize),
		"cursor": snap.SagaCursor,
	})
}

func (a *Actor) cancelTimer() {
	if a.retryToken != nil {
		a.deps.Clock.Cancel(*a.retryToken)
		a.retryToken = nil
	}
}

func (a *Actor) emitTelemetry(name string, data map[string]string) {
	a.deps.Telemetry.Emit(ports.TelemetryEvent{
		Name:     name,
		At:       a.deps.Clock.Now(),
		DeviceId: a.dev,
		Data:     data,
	})
}
