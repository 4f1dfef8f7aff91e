package fakes

import (
	"context"
	"sync"

	"github.com/octorelay/blesync-engine/internal/domain"
	"github.com/octorelay/blesync-engine/internal/ports"
)

// DeliveryPort is an in-memory ports.DeliveryPort that always succeeds
// and records every delivered range for assertions, unless a failure is
// queued via QueueFailure.
type DeliveryPort struct {
	mu        sync.Mutex
	Delivered []domain.EventRange
	failures  []domain.DomainError

	Clock ports.ClockPort
}

func NewDeliveryPort(clock ports.ClockPort) *DeliveryPort {
	return &DeliveryPort{Clock: clock}
}

// QueueFailure makes the next Deliver call return SyncFailed(err)
// instead of succeeding.
func (d *DeliveryPort) QueueFailure(err domain.DomainError) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = append(d.failures, err)
}

func (d *DeliveryPort) Deliver(ctx context.Context, dev domain.DeviceId, r domain.EventRange) domain.Event {
	d.mu.Lock()
	var failure *domain.DomainError
	if len(d.failures) > 0 {
		failure = &d.failures[0]
		d.failures = d.failures[1:]
	} else {
		d.Delivered = append(d.Delivered, r)
	}
	d.mu.Unlock()

	now := d.Clock.Now()
	if failure != nil {
		return domain.SyncFailed(dev, now, *failure)
	}
	return domain.EventsDelivered(dev, now, r)
}
