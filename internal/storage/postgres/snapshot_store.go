package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

const insertSnapshotSQL = `INSERT INTO genre_snapshots (taken_at, genres, counts) VALUES ($1, $2, $3)`

const listSnapshotsSQL = `SELECT taken_at, genres, counts
FROM genre_snapshots
WHERE to_char(taken_at AT TIME ZONE 'UTC', 'YYYY-MM-DD HH24:MI:SS') LIKE $1
ORDER BY taken_at, id`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SnapshotStore is the append-only genre popularity history table.
type SnapshotStore struct {
	pool Pool
}

// NewSnapshotStoreWithPool wraps an existing pool. The caller owns the pool.
func NewSnapshotStoreWithPool(pool Pool) (*SnapshotStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &SnapshotStore{pool: pool}, nil
}

// Append inserts one snapshot row.
func (s *SnapshotStore) Append(ctx context.Context, snap release.Snapshot) error {
	if s == nil || s.pool == nil {
		return release.ErrStoreNotConfigured
	}
	if len(snap.Genres) != len(snap.Counts) {
		return fmt.Errorf("snapshot has %d genres but %d counts", len(snap.Genres), len(snap.Counts))
	}
	counts := make([]int32, len(snap.Counts))
	for i, c := range snap.Counts {
		counts[i] = int32(c)
	}
	genres := snap.Genres
	if genres == nil {
		genres = []string{}
	}
	if _, err := s.pool.Exec(ctx, insertSnapshotSQL, snap.Timestamp.UTC(), genres, counts); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ListByPrefix returns snapshots whose UTC timestamp text starts with prefix,
// oldest first.
func (s *SnapshotStore) ListByPrefix(ctx context.Context, prefix string) ([]release.Snapshot, error) {
	if s == nil || s.pool == nil {
		return nil, release.ErrStoreNotConfigured
	}
	rows, err := s.pool.Query(ctx, listSnapshotsSQL, likeEscaper.Replace(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := []release.Snapshot{}
	for rows.Next() {
		var (
			takenAt time.Time
			genres  []string
			counts  []int32
		)
		if err := rows.Scan(&takenAt, &genres, &counts); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap := release.Snapshot{
			Timestamp: takenAt.UTC(),
			Genres:    genres,
			Counts:    make([]int, len(counts)),
		}
		for i, c := range counts {
			snap.Counts[i] = int(c)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}
