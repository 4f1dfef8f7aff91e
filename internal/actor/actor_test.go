package actor

import (
	"context"
	"testing"
	"time"

	"github.com/octorelay/blesync-engine/internal/domain"
	"github.com/octorelay/blesync-engine/internal/fakes"
	"github.com/octorelay/blesync-engine/internal/policy"
	"github.com/octorelay/blesync-engine/internal/ports"
	"github.com/octorelay/blesync-engine/internal/saga"
)

const testDev domain.DeviceId = "dev-actor"

func newTestDeps(clock *fakes.VirtualClock, ble *fakes.BlePort, delivery *fakes.DeliveryPort, store *fakes.StateStorePort, telemetry *fakes.TelemetryPort) Deps {
	s := saga.New(
		policy.NewBreakerPolicy(3, 1000),
		policy.NewRetryPolicy(3, 100, 5000, 0, nil),
		policy.NewPageSizingPolicy(10, 200, 20, 10),
	)
	return Deps{Ble: ble, Delivery: delivery, Clock: clock, Store: store, Telemetry: telemetry, Saga: s}
}

// drain waits, for at most 2 seconds, until the mailbox of an actor whose
// Run loop executes in another goroutine is empty. It does not wait for a
// message that Run has already taken and is still handling.
func drain(t *testing.T, a *Actor, cancel context.CancelFunc) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(a.mailbox) > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}

func TestActor_CrashRestartResumesAtHighWaterMark(t *testing.T) {
	clock := fakes.NewVirtualClock(0)
	ble := fakes.NewBlePort(clock)
	delivery := fakes.NewDeliveryPort(clock)
	store := fakes.NewStateStorePort()
	telemetry := fakes.NewTelemetryPort()

	store.Seed(testDev, domain.SyncSnapshot{DeviceId: testDev, LastAckedExclusive: 50, PageSize: 50, SagaCursor: "Acked:50"})

	ble.QueueReadCount(fakes.BleScript{Total: 120})

	a := New(testDev, 50, newTestDeps(clock, ble, delivery, store, telemetry))
	a.aggregate.BondStatus = domain.BondBonded
	a.aggregate.ConnectionStatus = domain.ConnConnected

	// Bootstrap is driven synchronously: a free-running Run loop would keep
	// paging through the always-succeeding fakes past the restored mark.
	ctx := context.Background()
	a.handleStart(ctx)

	if !telemetry.HasName("snapshot_restored") {
		t.Fatal("want snapshot_restored telemetry on restart")
	}
	if a.aggregate.LastAckedExclusive != 50 {
		t.Fatalf("want restored lastAckedExclusive=50, got %d", a.aggregate.LastAckedExclusive)
	}

	// Start's ReadEventCount result is waiting in the mailbox; applying it
	// must issue the first page read at the restored high-water mark.
	a.handleDomainEvent(ctx, (<-a.mailbox).event)
	if read := (<-a.mailbox).event; read.Kind != domain.EvEventsRead || read.Range != domain.NewEventRange(50, 50) {
		t.Fatalf("want first read [50,100) after restart, got %v %v", read.Kind, read.Range)
	}
}

func TestActor_BackpressureAllowsAtMostOneReadInFlight(t *testing.T) {
	clock := fakes.NewVirtualClock(0)
	ble := fakes.NewBlePort(clock)
	delivery := fakes.NewDeliveryPort(clock)
	store := fakes.NewStateStorePort()
	telemetry := fakes.NewTelemetryPort()

	a := New(testDev, 50, newTestDeps(clock, ble, delivery, store, telemetry))
	a.aggregate.BondStatus = domain.BondBonded
	a.aggregate.ConnectionStatus = domain.ConnConnected
	a.aggregate.TotalOnDevice = 120
	a.readInFlight = true

	ctx := context.Background()
	a.execute(ctx, domain.ReadEvents(testDev, 0, 50))

	if !telemetry.HasName("read_skipped_backpressure") {
		t.Fatal("want read_skipped_backpressure when a read is already in flight")
	}
}

func TestActor_SnapshotWrittenOnAck(t *testing.T) {
	clock := fakes.NewVirtualClock(0)
	ble := fakes.NewBlePort(clock)
	delivery := fakes.NewDeliveryPort(clock)
	store := fakes.NewStateStorePort()
	telemetry := fakes.NewTelemetryPort()

	a := New(testDev, 50, newTestDeps(clock, ble, delivery, store, telemetry))
	a.aggregate.BondStatus = domain.BondBonded
	a.aggregate.ConnectionStatus = domain.ConnConnected
	a.aggregate.TotalOnDevice = 120

	ctx := context.Background()
	a.handleDomainEvent(ctx, domain.EventsAcked(testDev, 0, 50))

	snap, ok, err := store.Read(ctx, testDev)
	if err != nil || !ok {
		t.Fatalf("want snapshot written, ok=%v err=%v", ok, err)
	}
	if snap.LastAckedExclusive != 50 {
		t.Fatalf("want snapshot ack=50, got %d", snap.LastAckedExclusive)
	}
	if !telemetry.HasName("snapshot_saved") {
		t.Fatal("want snapshot_saved telemetry")
	}
}

func TestActor_ScheduleRetryCancelsPriorTimer(t *testing.T) {
	clock := fakes.NewVirtualClock(0)
	ble := fakes.NewBlePort(clock)
	delivery := fakes.NewDeliveryPort(clock)
	store := fakes.NewStateStorePort()
	telemetry := fakes.NewTelemetryPort()

	a := New(testDev, 50, newTestDeps(clock, ble, delivery, store, telemetry))
	ctx := context.Background()

	a.execute(ctx, domain.ScheduleRetry(testDev, 100, domain.RetryReason{Kind: domain.RetryBackoffAfterFailure}))
	first := a.retryToken

	a.execute(ctx, domain.ScheduleRetry(testDev, 200, domain.RetryReason{Kind: domain.RetryBackoffAfterFailure}))
	second := a.retryToken

	if first == nil || second == nil || *first == *second {
		t.Fatalf("want a fresh token replacing the prior one, got %v -> %v", first, second)
	}
}

func TestActor_SyncFailedEventEmitsTelemetry(t *testing.T) {
	clock := fakes.NewVirtualClock(0)
	ble := fakes.NewBlePort(clock)
	delivery := fakes.NewDeliveryPort(clock)
	store := fakes.NewStateStorePort()
	telemetry := fakes.NewTelemetryPort()

	a := New(testDev, 50, newTestDeps(clock, ble, delivery, store, telemetry))
	ctx := context.Background()

	a.handleDomainEvent(ctx, domain.SyncFailed(testDev, 0, domain.ProtocolError("bad payload")))

	if !telemetry.HasName("sync_failed") {
		t.Fatal("want sync_failed telemetry for a SyncFailed domain event")
	}
}

var _ ports.ClockPort = (*fakes.VirtualClock)(nil)
