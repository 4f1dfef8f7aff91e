package fakes

import (
	"context"
	"sync"

	"github.com/octorelay/blesync-engine/internal/domain"
)

// StateStorePort is an in-memory ports.StateStorePort keyed by
// deviceId. Safe for concurrent use.
type StateStorePort struct {
	mu   sync.Mutex
	data map[domain.DeviceId]domain.SyncSnapshot
}

func NewStateStorePort() *StateStorePort {
	return &StateStorePort{data: map[domain.DeviceId]domain.SyncSnapshot{}}
}

func (s *StateStorePort) Read(ctx context.Context, dev domain.DeviceId) (domain.SyncSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.data[dev]
	return snap, ok, nil
}

func (s *StateStorePort) Write(ctx context.Context, dev domain.DeviceId, snap domain.SyncSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[dev] = snap
	return nil
}

// Seed pre-populates the store, used to set up crash-restart scenarios
// in tests without going through Write.
func (s *StateStorePort) Seed(dev domain.DeviceId, snap domain.SyncSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[dev] = snap
}
