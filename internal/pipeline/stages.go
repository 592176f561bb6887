// Package pipeline sequences the ingestion stages and keeps the loop alive
// across failures.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TembulatC/mira-games-backend/internal/detail"
	"github.com/TembulatC/mira-games-backend/internal/metrics"
	"github.com/TembulatC/mira-games-backend/internal/release"
)

// Stage names, in run order.
const (
	StageCollect  = "collect"
	StagePersist  = "persist"
	StageSnapshot = "snapshot"
)

// EventSnapshotRecorded is published after every snapshot append.
const EventSnapshotRecorded = "snapshot.recorded"

// Stage is one named step of a pipeline cycle.
type Stage struct {
	Name string
	Run  func(ctx context.Context) error
}

// ListingScanner discovers target-month ids starting from a resume state.
type ListingScanner interface {
	Scan(ctx context.Context, window release.TargetWindow, state release.ScanState) ([]int, release.ScanState, error)
}

// DetailFetcher fetches detail records for ids in order.
type DetailFetcher interface {
	FetchAll(ctx context.Context, ids []int) ([]release.DetailRecord, error)
}

// DetailCache is the detail lookup cache, emptied after every completed
// collect so the next cycle requests each id again.
type DetailCache interface {
	Purge()
}

// Deps are the collaborators the default stages drive. Cache and Publisher
// are optional.
type Deps struct {
	Scanner    ListingScanner
	Details    DetailFetcher
	Cache      DetailCache
	State      release.StateStore
	Batches    release.BatchStore
	Canonical  release.CanonicalStore
	Aggregator release.GenreAggregator
	Snapshots  release.SnapshotStore
	Publisher  release.Publisher
	Clock      release.Clock
}

// StageConfig tunes the default stages.
type StageConfig struct {
	// AppURL prefixes the id to form a release's store URL.
	AppURL string
	// TopGenres is how many genres a snapshot keeps.
	TopGenres int
	// Publish enables the snapshot.recorded event.
	Publish bool
}

// SnapshotEvent is the payload of EventSnapshotRecorded.
type SnapshotEvent struct {
	RunID     string    `json:"run_id,omitempty"`
	Month     string    `json:"month"`
	Timestamp time.Time `json:"timestamp"`
	Genres    []string  `json:"genres"`
	Counts    []int     `json:"counts"`
}

// Stages implements collect, persist and snapshot.
type Stages struct {
	cfg    StageConfig
	deps   Deps
	logger *zap.Logger
}

// NewStages validates deps and returns the default stage set.
func NewStages(cfg StageConfig, deps Deps, logger *zap.Logger) (*Stages, error) {
	switch {
	case deps.Scanner == nil:
		return nil, fmt.Errorf("scanner is required")
	case deps.Details == nil:
		return nil, fmt.Errorf("detail fetcher is required")
	case deps.State == nil:
		return nil, fmt.Errorf("state store is required")
	case deps.Batches == nil:
		return nil, fmt.Errorf("batch store is required")
	case deps.Canonical == nil:
		return nil, fmt.Errorf("canonical store is required")
	case deps.Aggregator == nil:
		return nil, fmt.Errorf("genre aggregator is required")
	case deps.Snapshots == nil:
		return nil, fmt.Errorf("snapshot store is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case cfg.Publish && deps.Publisher == nil:
		return nil, fmt.Errorf("publisher is required when publishing is enabled")
	}
	if cfg.TopGenres <= 0 {
		return nil, fmt.Errorf("top genres must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stages{cfg: cfg, deps: deps, logger: logger}, nil
}

// List returns the stages in run order.
func (s *Stages) List() []Stage {
	return []Stage{
		{Name: StageCollect, Run: s.Collect},
		{Name: StagePersist, Run: s.Persist},
		{Name: StageSnapshot, Run: s.Snapshot},
	}
}

// Collect scans the listing, saves the new resume state, fetches details and
// stores the filtered batch for Persist. The target window is taken once, so
// the scan and the filter agree even when the month turns mid-run.
func (s *Stages) Collect(ctx context.Context) error {
	logger := s.stageLogger(ctx, StageCollect)
	window := release.NewTargetWindow(s.deps.Clock.Now())

	state, ok, err := s.deps.State.Load(ctx)
	if err != nil {
		return fmt.Errorf("load scan state: %w", err)
	}
	if !ok {
		logger.Info("no scan state found; starting from the first page")
		state = release.DefaultScanState()
	}

	ids, next, err := s.deps.Scanner.Scan(ctx, window, state)
	if err != nil {
		return fmt.Errorf("scan listing: %w", err)
	}
	if err := s.deps.State.Save(ctx, next); err != nil {
		return fmt.Errorf("save scan state: %w", err)
	}

	records, err := s.deps.Details.FetchAll(ctx, ids)
	if err != nil {
		logger.Warn("detail fetch aborted", zap.Int("fetched", len(records)), zap.Int("requested", len(ids)))
		return fmt.Errorf("fetch details: %w", err)
	}

	batch := detail.Filter(records, window.Target, s.cfg.AppURL)
	if err := s.deps.Batches.SaveBatch(ctx, batch); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	if s.deps.Cache != nil {
		s.deps.Cache.Purge()
	}
	logger.Info("collect finished",
		zap.Int("ids", len(ids)),
		zap.Int("records", len(records)),
		zap.Int("kept", len(batch)),
		zap.Int("next_start_page", next.StartPage),
		zap.Stringer("target_month", window.Target),
	)
	return nil
}

// Persist fully syncs the canonical store with the last collected batch.
func (s *Stages) Persist(ctx context.Context) error {
	batch, err := s.deps.Batches.LoadBatch(ctx)
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}
	res, err := s.deps.Canonical.Sync(ctx, batch)
	if err != nil {
		return fmt.Errorf("sync canonical store: %w", err)
	}
	s.stageLogger(ctx, StagePersist).Info("canonical store synced",
		zap.Int("upserted", res.Upserted),
		zap.Int("deleted", res.Deleted),
	)
	return nil
}

// Snapshot records the target month's top genres in the history.
func (s *Stages) Snapshot(ctx context.Context) error {
	now := s.deps.Clock.Now()
	target := release.MonthOf(now).Add(1)

	rows, err := s.deps.Aggregator.TopGenres(ctx, target, s.cfg.TopGenres)
	if err != nil {
		return fmt.Errorf("aggregate genres: %w", err)
	}
	snap := release.NewSnapshot(now, rows)
	if err := s.deps.Snapshots.Append(ctx, snap); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	metrics.IncSnapshotsRecorded()

	logger := s.stageLogger(ctx, StageSnapshot)
	logger.Info("snapshot recorded", zap.Stringer("month", target), zap.Strings("genres", snap.Genres))

	if !s.cfg.Publish {
		return nil
	}
	event := SnapshotEvent{
		RunID:     RunID(ctx),
		Month:     target.String(),
		Timestamp: snap.Timestamp,
		Genres:    snap.Genres,
		Counts:    snap.Counts,
	}
	if _, err := s.deps.Publisher.Publish(ctx, EventSnapshotRecorded, event); err != nil {
		// Publish failures do not fail the stage; the snapshot is already stored.
		logger.Warn("snapshot event publish failed", zap.Error(err))
	}
	return nil
}

func (s *Stages) stageLogger(ctx context.Context, stage string) *zap.Logger {
	return s.logger.With(zap.String("stage", stage), zap.String("run_id", RunID(ctx)))
}
