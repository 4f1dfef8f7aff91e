// Package transport provides a reference (non-hardened) ports.BlePort
// adapter layered on top of the wire codec. It is generic over any
// GattClient — a real platform radio driver or a fake — and is
// deliberately not a platform driver itself: no permission prompts, no
// GATT callback demuxing. Those remain an external collaborator's job.
package transport

import (
	"context"
	"fmt"
	"strconv"

	"github.com/octorelay/blesync-engine/internal/domain"
	"github.com/octorelay/blesync-engine/internal/ports"
	"github.com/octorelay/blesync-engine/internal/wire"
)

// Characteristic UUIDs the reference adapter expects the peripheral to
// expose. Left as plain strings rather than a byte-oriented UUID type —
// the GattClient implementation owns whatever representation its
// platform SDK requires.
const (
	CharCount = "count"
	CharPage  = "page"
	CharAck   = "ack"
)

// GattClient is the narrow abstraction ReferenceBlePort needs from an
// actual radio stack: read/write a named characteristic, returning a
// GATT status code alongside any payload.
type GattClient interface {
	ReadCharacteristic(ctx context.Context, uuid string) (payload []byte, code int, err error)
	WriteCharacteristic(ctx context.Context, uuid string, payload []byte) (code int, err error)
	Bond(ctx context.Context) (code int, err error)
	Connect(ctx context.Context) (code int, err error)
	Disconnect(ctx context.Context) (code int, err error)
}

// ReferenceBlePort implements ports.BlePort against a GattClient, using
// the wire codec to build/parse payloads and classify transport codes. It
// emits the port-level half of spec §6.3's telemetry vocabulary (bonded,
// gatt_connected, gatt_disconnected, count_read, page_read, ack_sent) on
// every successful call.
type ReferenceBlePort struct {
	Client    GattClient
	Now       func() domain.TimestampMs
	Telemetry ports.TelemetryPort
}

// NewReferenceBlePort constructs a ReferenceBlePort. now supplies the
// timestamp recorded on every produced event (normally ClockPort.Now).
// telemetry may be nil, in which case port-level events are dropped.
func NewReferenceBlePort(client GattClient, now func() domain.TimestampMs, telemetry ports.TelemetryPort) *ReferenceBlePort {
	return &ReferenceBlePort{Client: client, Now: now, Telemetry: telemetry}
}

func (r *ReferenceBlePort) emit(dev domain.DeviceId, name string, data map[string]string) {
	if r.Telemetry == nil {
		return
	}
	r.Telemetry.Emit(ports.TelemetryEvent{Name: name, At: r.Now(), DeviceId: dev, Data: data})
}

func (r *ReferenceBlePort) Bond(ctx context.Context, dev domain.DeviceId) domain.Event {
	code, err := r.Client.Bond(ctx)
	if err != nil {
		return domain.SyncFailed(dev, r.Now(), domain.UnexpectedError(err.Error()))
	}
	if domErr := wire.ClassifyTransportCodeError(code, "bond failed"); domErr != nil {
		return domain.SyncFailed(dev, r.Now(), *domErr)
	}
	r.emit(dev, "bonded", nil)
	return domain.DeviceBonded(dev, r.Now())
}

func (r *ReferenceBlePort) Connect(ctx context.Context, dev domain.DeviceId) domain.Event {
	code, err := r.Client.Connect(ctx)
	if err != nil {
		return domain.SyncFailed(dev, r.Now(), domain.UnexpectedError(err.Error()))
	}
	if domErr := wire.ClassifyTransportCodeError(code, "connect failed"); domErr != nil {
		return domain.SyncFailed(dev, r.Now(), *domErr)
	}
	r.emit(dev, "gatt_connected", nil)
	return domain.DeviceConnected(dev, r.Now())
}

func (r *ReferenceBlePort) Disconnect(ctx context.Context, dev domain.DeviceId) domain.Event {
	code, err := r.Client.Disconnect(ctx)
	_ = code
	if err != nil {
		return domain.SyncFailed(dev, r.Now(), domain.UnexpectedError(err.Error()))
	}
	r.emit(dev, "gatt_disconnected", nil)
	return domain.Disconnected(dev, r.Now(), domain.DisconnectReason{Kind: domain.DisconnectPeerClosed}, nil)
}

func (r *ReferenceBlePort) ReadCount(ctx context.Context, dev domain.DeviceId) domain.Event {
	payload, code, err := r.Client.ReadCharacteristic(ctx, CharCount)
	if err != nil {
		return domain.SyncFailed(dev, r.Now(), domain.UnexpectedError(err.Error()))
	}
	if domErr := wire.ClassifyTransportCodeError(code, "read count failed"); domErr != nil {
		return domain.SyncFailed(dev, r.Now(), *domErr)
	}
	total, decErr := wire.DecodeCount(payload)
	if decErr != nil {
		return domain.SyncFailed(dev, r.Now(), domain.ProtocolError(decErr.Error()))
	}
	r.emit(dev, "count_read", map[string]string{"total": strconv.FormatUint(uint64(total), 10)})
	return domain.EventCountLoaded(dev, r.Now(), domain.EventCount(total))
}

func (r *ReferenceBlePort) ReadPage(ctx context.Context, dev domain.DeviceId, offset domain.EventOffset, count domain.EventCount) domain.Event {
	req := wire.EncodePageRequest(uint32(offset), uint32(count))
	if code, err := r.Client.WriteCharacteristic(ctx, CharPage, req); err != nil {
		return domain.SyncFailed(dev, r.Now(), domain.UnexpectedError(err.Error()))
	} else if domErr := wire.ClassifyTransportCodeError(code, "page request failed"); domErr != nil {
		return domain.SyncFailed(dev, r.Now(), *domErr)
	}

	_, code, err := r.Client.ReadCharacteristic(ctx, CharPage)
	if err != nil {
		return domain.SyncFailed(dev, r.Now(), domain.UnexpectedError(err.Error()))
	}
	if domErr := wire.ClassifyTransportCodeError(code, "page read failed"); domErr != nil {
		return domain.SyncFailed(dev, r.Now(), *domErr)
	}
	// Page response length is informational only (§6.2): the engine
	// assumes the device returned exactly `count` events.
	r.emit(dev, "page_read", map[string]string{
		"offset": strconv.FormatUint(uint64(offset), 10),
		"count":  strconv.FormatUint(uint64(count), 10),
	})
	return domain.EventsRead(dev, r.Now(), domain.NewEventRange(offset, count))
}

func (r *ReferenceBlePort) Ack(ctx context.Context, dev domain.DeviceId, upTo domain.EventOffset) domain.Event {
	if upTo > domain.EventOffset(^uint32(0)) {
		return domain.SyncFailed(dev, r.Now(), domain.ProtocolError(fmt.Sprintf("ack offset %d overflows wire uint32", upTo)))
	}
	payload := wire.EncodeAck(uint32(upTo))
	code, err := r.Client.WriteCharacteristic(ctx, CharAck, payload)
	if err != nil {
		return domain.SyncFailed(dev, r.Now(), domain.UnexpectedError(err.Error()))
	}
	if domErr := wire.ClassifyTransportCodeError(code, "ack failed"); domErr != nil {
		return domain.SyncFailed(dev, r.Now(), *domErr)
	}
	r.emit(dev, "ack_sent", map[string]string{"upTo": strconv.FormatUint(uint64(upTo), 10)})
	return domain.EventsAcked(dev, r.Now(), upTo)
}
