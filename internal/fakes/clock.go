// Package fakes provides in-memory port implementations used by the
// engine's own tests: a virtual clock, scriptable BlePort/DeliveryPort
// doubles, an in-memory state store, and a recording telemetry sink.
// None of these talk to real I/O.
package fakes

import (
	"sort"
	"sync"

	"github.com/octorelay/blesync-engine/internal/domain"
	"github.com/octorelay/blesync-engine/internal/ports"
)

// VirtualClock is a manually-advanced ClockPort. Nothing fires until the
// test calls Advance; there is no wall-clock goroutine.
type VirtualClock struct {
	mu      sync.Mutex
	now     domain.TimestampMs
	nextTok ports.TimerToken
	timers  map[ports.TimerToken]pendingTimer
}

type pendingTimer struct {
	at     domain.TimestampMs
	onFire func()
}

// NewVirtualClock returns a clock starting at startAt.
func NewVirtualClock(startAt domain.TimestampMs) *VirtualClock {
	return &VirtualClock{now: startAt, timers: map[ports.TimerToken]pendingTimer{}}
}

func (c *VirtualClock) Now() domain.TimestampMs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *VirtualClock) Schedule(at domain.TimestampMs, onFire func()) ports.TimerToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextTok++
	tok := c.nextTok
	c.timers[tok] = pendingTimer{at: at, onFire: onFire}
	return tok
}

func (c *VirtualClock) Cancel(token ports.TimerToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.timers, token)
}

// Advance moves now forward by delta and fires, in ascending-at order,
// every timer whose deadline has been reached. Firing happens outside
// the lock so callbacks may re-enter Schedule/Cancel.
func (c *VirtualClock) Advance(delta domain.TimestampMs) {
	c.mu.Lock()
	c.now += delta
	due := c.dueLocked()
	c.mu.Unlock()

	for _, t := range due {
		t.onFire()
	}
}

func (c *VirtualClock) dueLocked() []pendingTimer {
	var due []pendingTimer
	for tok, t := range c.timers {
		if t.at <= c.now {
			due = append(due, t)
			delete(c.timers, tok)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	return due
}
