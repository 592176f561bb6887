package memory

import (
	"context"
	"sync"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

// StateStore holds the scan resume state in memory.
type StateStore struct {
	mu    sync.RWMutex
	state *release.ScanState
}

// NewStateStore constructs an empty StateStore.
func NewStateStore() *StateStore {
	return &StateStore{}
}

// Load implements release.StateStore.
func (s *StateStore) Load(_ context.Context) (release.ScanState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil || !s.state.Valid() {
		return release.ScanState{}, false, nil
	}
	return *s.state, true, nil
}

// Save implements release.StateStore.
func (s *StateStore) Save(_ context.Context, state release.ScanState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &state
	return nil
}

// BatchStore holds the latest collected batch in memory.
type BatchStore struct {
	mu    sync.RWMutex
	batch []release.Release
	saved bool
}

// NewBatchStore constructs an empty BatchStore.
func NewBatchStore() *BatchStore {
	return &BatchStore{}
}

// SaveBatch implements release.BatchStore.
func (s *BatchStore) SaveBatch(_ context.Context, releases []release.Release) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch = cloneReleases(releases)
	s.saved = true
	return nil
}

// LoadBatch implements release.BatchStore.
func (s *BatchStore) LoadBatch(_ context.Context) ([]release.Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.saved {
		return nil, release.ErrNoBatch
	}
	return cloneReleases(s.batch), nil
}
