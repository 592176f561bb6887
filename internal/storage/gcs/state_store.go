// Package gcs keeps the scan resume state in a Google Cloud Storage object.
package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

// Config captures the object holding the state.
type Config struct {
	Bucket string
	Object string
}

type objectIO interface {
	read(ctx context.Context, bucket, object string) ([]byte, error)
	write(ctx context.Context, bucket, object string, data []byte) error
}

// StateStore implements release.StateStore on a single GCS object. A GCS
// object write only becomes visible when the writer closes successfully, so
// a save is all-or-nothing.
type StateStore struct {
	objects objectIO
	cfg     Config
	logger  *zap.Logger
}

// NewStateStore creates a GCS-backed state store.
func NewStateStore(client *storage.Client, cfg Config, logger *zap.Logger) (*StateStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	return newStateStore(clientObjects{client: client}, cfg, logger)
}

func newStateStore(objects objectIO, cfg Config, logger *zap.Logger) (*StateStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.Object == "" {
		return nil, fmt.Errorf("object name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateStore{objects: objects, cfg: cfg, logger: logger}, nil
}

type stateObject struct {
	StartPage int `json:"start_page"`
}

// Load implements release.StateStore.
func (s *StateStore) Load(ctx context.Context) (release.ScanState, bool, error) {
	data, err := s.objects.read(ctx, s.cfg.Bucket, s.cfg.Object)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return release.ScanState{}, false, nil
	}
	if err != nil {
		return release.ScanState{}, false, fmt.Errorf("read scan state: %w", err)
	}
	var obj stateObject
	if err := json.Unmarshal(data, &obj); err != nil {
		s.logger.Warn("ignoring corrupt scan state",
			zap.String("object", fmt.Sprintf("gs://%s/%s", s.cfg.Bucket, s.cfg.Object)),
			zap.Error(err),
		)
		return release.ScanState{}, false, nil
	}
	state := release.ScanState{StartPage: obj.StartPage}
	if !state.Valid() {
		return release.ScanState{}, false, nil
	}
	return state, true, nil
}

// Save implements release.StateStore.
func (s *StateStore) Save(ctx context.Context, state release.ScanState) error {
	data, err := json.Marshal(stateObject{StartPage: state.StartPage})
	if err != nil {
		return fmt.Errorf("marshal scan state: %w", err)
	}
	if err := s.objects.write(ctx, s.cfg.Bucket, s.cfg.Object, data); err != nil {
		return fmt.Errorf("save scan state: %w", err)
	}
	return nil
}

type clientObjects struct {
	client *storage.Client
}

func (c clientObjects) read(ctx context.Context, bucket, object string) ([]byte, error) {
	reader, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	defer reader.Close() //nolint:errcheck // read-only
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

func (c clientObjects) write(ctx context.Context, bucket, object string, data []byte) error {
	writer := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
