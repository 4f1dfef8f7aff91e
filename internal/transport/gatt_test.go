package transport

import (
	"context"
	"testing"

	"github.com/octorelay/blesync-engine/internal/domain"
	"github.com/octorelay/blesync-engine/internal/fakes"
	"github.com/octorelay/blesync-engine/internal/wire"
)

const testDev domain.DeviceId = "dev-transport"

// stubGattClient is a minimal GattClient fake that always succeeds with
// GATT status code 0, returning canned payloads for characteristic reads.
type stubGattClient struct {
	countPayload []byte
}

func (s *stubGattClient) ReadCharacteristic(ctx context.Context, uuid string) ([]byte, int, error) {
	if uuid == CharCount {
		return s.countPayload, 0, nil
	}
	return nil, 0, nil
}

func (s *stubGattClient) WriteCharacteristic(ctx context.Context, uuid string, payload []byte) (int, error) {
	return 0, nil
}

func (s *stubGattClient) Bond(ctx context.Context) (int, error)       { return 0, nil }
func (s *stubGattClient) Connect(ctx context.Context) (int, error)    { return 0, nil }
func (s *stubGattClient) Disconnect(ctx context.Context) (int, error) { return 0, nil }

func fixedNow() domain.TimestampMs { return 0 }

func TestReferenceBlePort_EmitsPortLevelTelemetryOnSuccess(t *testing.T) {
	telemetry := fakes.NewTelemetryPort()
	client := &stubGattClient{countPayload: wire.EncodeAck(120)}
	port := NewReferenceBlePort(client, fixedNow, telemetry)
	ctx := context.Background()

	if e := port.Bond(ctx, testDev); e.Kind != domain.EvDeviceBonded {
		t.Fatalf("Bond: want DeviceBonded, got %v", e.Kind)
	}
	if !telemetry.HasName("bonded") {
		t.Fatal("want bonded telemetry")
	}

	if e := port.Connect(ctx, testDev); e.Kind != domain.EvDeviceConnected {
		t.Fatalf("Connect: want DeviceConnected, got %v", e.Kind)
	}
	if !telemetry.HasName("gatt_connected") {
		t.Fatal("want gatt_connected telemetry")
	}

	if e := port.ReadCount(ctx, testDev); e.Kind != domain.EvEventCountLoaded {
		t.Fatalf("ReadCount: want EventCountLoaded, got %v", e.Kind)
	}
	if !telemetry.HasName("count_read") {
		t.Fatal("want count_read telemetry")
	}

	if e := port.ReadPage(ctx, testDev, 0, 10); e.Kind != domain.EvEventsRead {
		t.Fatalf("ReadPage: want EventsRead, got %v", e.Kind)
	}
	if !telemetry.HasName("page_read") {
		t.Fatal("want page_read telemetry")
	}

	if e := port.Ack(ctx, testDev, 10); e.Kind != domain.EvEventsAcked {
		t.Fatalf("Ack: want EventsAcked, got %v", e.Kind)
	}
	if !telemetry.HasName("ack_sent") {
		t.Fatal("want ack_sent telemetry")
	}

	if e := port.Disconnect(ctx, testDev); e.Kind != domain.EvDisconnected {
		t.Fatalf("Disconnect: want Disconnected, got %v", e.Kind)
	}
	if !telemetry.HasName("gatt_disconnected") {
		t.Fatal("want gatt_disconnected telemetry")
	}
}

func TestReferenceBlePort_NilTelemetryIsSafe(t *testing.T) {
	client := &stubGattClient{countPayload: wire.EncodeAck(5)}
	port := NewReferenceBlePort(client, fixedNow, nil)

	if e := port.Bond(context.Background(), testDev); e.Kind != domain.EvDeviceBonded {
		t.Fatalf("want DeviceBonded even with nil telemetry, got %v", e.Kind)
	}
}
