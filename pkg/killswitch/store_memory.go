package killswitch

import (
	"context"
	"sync"
)

// MemoryStore holds the record in memory. It does not survive restarts;
// intended for tests and throwaway demos.
type MemoryStore struct {
	mu    sync.Mutex
	state State
	// FailSave and FailLoad inject errors for tests.
	FailSave error
	FailLoad error
}

// NewMemoryStore starts in the active (unfrozen) state.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the current record.
func (s *MemoryStore) Load(_ context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailLoad != nil {
		return State{}, s.FailLoad
	}
	return s.state, nil
}

// Save replaces the record.
func (s *MemoryStore) Save(_ context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	s.state = state
	return nil
}
