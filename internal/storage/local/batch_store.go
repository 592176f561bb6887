package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

// BatchStore keeps the latest collected batch in a JSON file.
type BatchStore struct {
	path string
}

// NewBatchStore creates a BatchStore backed by path.
func NewBatchStore(path string) (*BatchStore, error) {
	clean, err := requirePath(path)
	if err != nil {
		return nil, err
	}
	return &BatchStore{path: clean}, nil
}

// SaveBatch implements release.BatchStore.
func (s *BatchStore) SaveBatch(_ context.Context, releases []release.Release) error {
	if releases == nil {
		releases = []release.Release{}
	}
	if err := writeJSONAtomic(s.path, releases); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	return nil
}

// LoadBatch implements release.BatchStore.
func (s *BatchStore) LoadBatch(_ context.Context) ([]release.Release, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, release.ErrNoBatch
	}
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	var releases []release.Release
	if err := json.Unmarshal(data, &releases); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if releases == nil {
		return nil, release.ErrNoBatch
	}
	return releases, nil
}
