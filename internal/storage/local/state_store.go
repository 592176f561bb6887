package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

// StateStore persists the scan resume state as a small JSON file.
type StateStore struct {
	path   string
	logger *zap.Logger
}

// stateFile also accepts the older {"SteamParser":{"StartPage":N}} layout.
type stateFile struct {
	StartPage int `json:"start_page"`
	Legacy    *struct {
		StartPage int `json:"StartPage"`
	} `json:"SteamParser,omitempty"`
}

// NewStateStore creates a StateStore backed by path.
func NewStateStore(path string, logger *zap.Logger) (*StateStore, error) {
	clean, err := requirePath(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateStore{path: clean, logger: logger}, nil
}

// Load implements release.StateStore. A missing, unreadable-as-JSON, or
// out-of-range record is reported as absent.
func (s *StateStore) Load(_ context.Context) (release.ScanState, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return release.ScanState{}, false, nil
	}
	if err != nil {
		return release.ScanState{}, false, fmt.Errorf("read scan state: %w", err)
	}
	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		s.logger.Warn("ignoring corrupt scan state", zap.String("path", s.path), zap.Error(err))
		return release.ScanState{}, false, nil
	}
	state := release.ScanState{StartPage: f.StartPage}
	if state.StartPage == 0 && f.Legacy != nil {
		state.StartPage = f.Legacy.StartPage
	}
	if !state.Valid() {
		return release.ScanState{}, false, nil
	}
	return state, true, nil
}

// Save implements release.StateStore with an atomic full overwrite.
func (s *StateStore) Save(_ context.Context, state release.ScanState) error {
	if err := writeJSONAtomic(s.path, stateFile{StartPage: state.StartPage}); err != nil {
		return fmt.Errorf("save scan state: %w", err)
	}
	return nil
}
