package fakes

import (
	"sync"

	"github.com/octorelay/blesync-engine/internal/ports"
)

// TelemetryPort records every emitted event in order, for assertions
// like "snapshot_restored was emitted before the first command".
type TelemetryPort struct {
	mu     sync.Mutex
	events []ports.TelemetryEvent
}

func NewTelemetryPort() *TelemetryPort { return &TelemetryPort{} }

func (t *TelemetryPort) Emit(e ports.TelemetryEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

func (t *TelemetryPort) Events() []ports.TelemetryEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ports.TelemetryEvent, len(t.events))
	copy(out, t.events)
	return out
}

// HasName reports whether any recorded event has the given name.
func (t *TelemetryPort) HasName(name string) bool {
	for _, e := range t.Events() {
		if e.Name == name {
			return true
		}
	}
	return false
}
