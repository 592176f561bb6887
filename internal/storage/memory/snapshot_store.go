package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

// SnapshotStore is an append-only in-memory snapshot history.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots []release.Snapshot
}

// NewSnapshotStore constructs an empty SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Append implements release.SnapshotStore.
func (s *SnapshotStore) Append(_ context.Context, snap release.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, cloneSnapshot(snap))
	return nil
}

// ListByPrefix implements release.SnapshotStore, matching prefix against the
// UTC timestamp rendered as "YYYY-MM-DD hh:mm:ss".
func (s *SnapshotStore) ListByPrefix(_ context.Context, prefix string) ([]release.Snapshot, error) {
	s.mu.RLock()
	out := make([]release.Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		if strings.HasPrefix(snap.Timestamp.UTC().Format(release.SnapshotTimeLayout), prefix) {
			out = append(out, cloneSnapshot(snap))
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func cloneSnapshot(snap release.Snapshot) release.Snapshot {
	snap.Genres = append([]string(nil), snap.Genres...)
	snap.Counts = append([]int(nil), snap.Counts...)
	return snap
}
