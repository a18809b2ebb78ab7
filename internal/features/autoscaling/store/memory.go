package store

import (
	"context"
	"sync"

	"searchscaler/internal/features/autoscaling/domain"
)

// MemoryStore is an in-process StateStore. State does not survive a restart;
// it backs standalone deployments and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]domain.TriggerState
}

// NewMemoryStore creates an empty in-memory state store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]domain.TriggerState),
	}
}

// Save writes the state snapshot for a trigger
func (s *MemoryStore) Save(_ context.Context, triggerName string, state domain.TriggerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[triggerName] = state
	return nil
}

// Load reads the state snapshot for a trigger
func (s *MemoryStore) Load(_ context.Context, triggerName string) (domain.TriggerState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[triggerName]
	return state, ok, nil
}
