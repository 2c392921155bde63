package storage

import (
	"context"
	"sort"
	"sync"

	"hyperprior/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	sessions    map[string]model.SessionState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.sessions = make(map[string]model.SessionState)
	return nil
}

func (s *MemoryStore) SaveSession(_ context.Context, state model.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.SchemaVersion = CurrentSchemaVersion
	state.CodecVersion = CurrentCodecVersion
	s.sessions[state.RunID] = state
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, runID string) (model.SessionState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[runID]
	return state, ok, nil
}

func (s *MemoryStore) ListSessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, runID)
	return nil
}
