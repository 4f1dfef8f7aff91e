// Package delivery provides a reference ports.DeliveryPort that hands
// delivered ranges to an in-process bounded channel and logs the
// handoff via zap. A real app-side sink (UI list, local database) is
// the excluded external collaborator this stands in for.
package delivery

import (
	"context"

	"go.uber.org/zap"

	"github.com/octorelay/blesync-engine/internal/domain"
)

// LogDeliveryPort implements ports.DeliveryPort by pushing each range
// onto a bounded channel and logging it. If the channel is full, the
// range is dropped and logged as a warning rather than blocking the
// actor's mailbox indefinitely.
type LogDeliveryPort struct {
	log   *zap.Logger
	sink  chan domain.EventRange
	clock func() domain.TimestampMs
}

// NewLogDeliveryPort constructs a LogDeliveryPort with a bounded sink of
// the given capacity. now supplies the timestamp recorded on produced
// events (normally ClockPort.Now).
func NewLogDeliveryPort(log *zap.Logger, sinkCapacity int, now func() domain.TimestampMs) *LogDeliveryPort {
	return &LogDeliveryPort{
		log:   log.Named("delivery"),
		sink:  make(chan domain.EventRange, sinkCapacity),
		clock: now,
	}
}

// Sink exposes the channel a consumer (e.g. a UI list adapter) drains.
func (d *LogDeliveryPort) Sink() <-chan domain.EventRange { return d.sink }

func (d *LogDeliveryPort) Deliver(ctx context.Context, dev domain.DeviceId, r domain.EventRange) domain.Event {
	select {
	case d.sink <- r:
		d.log.Info("delivered range", zap.String("deviceId", string(dev)), zap.String("range", r.String()))
		return domain.EventsDelivered(dev, d.clock(), r)
	default:
		d.log.Warn("delivery sink full, dropping range", zap.String("deviceId", string(dev)), zap.String("range", r.String()))
		return domain.SyncFailed(dev, d.clock(), domain.UnexpectedError("delivery sink full"))
	}
}
