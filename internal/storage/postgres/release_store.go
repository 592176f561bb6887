package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

const releaseColumns = `app_id, title, release_date, release_date_text, genres, platforms,
	short_description, image_url, store_url`

const deleteStaleSQL = `DELETE FROM releases WHERE NOT (app_id = ANY($1))`

const upsertReleaseSQL = `
INSERT INTO releases (` + releaseColumns + `, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
ON CONFLICT (app_id) DO UPDATE SET
	title = EXCLUDED.title,
	release_date = EXCLUDED.release_date,
	release_date_text = EXCLUDED.release_date_text,
	genres = EXCLUDED.genres,
	platforms = EXCLUDED.platforms,
	short_description = EXCLUDED.short_description,
	image_url = EXCLUDED.image_url,
	store_url = EXCLUDED.store_url,
	updated_at = now()`

const listByMonthSQL = `SELECT ` + releaseColumns + `
FROM releases
WHERE release_date >= $1 AND release_date < $2
ORDER BY release_date, title, app_id`

const countByDaySQL = `SELECT EXTRACT(DAY FROM release_date)::bigint AS day, COUNT(*) AS games
FROM releases
WHERE release_date >= $1 AND release_date < $2
GROUP BY day
ORDER BY day`

const searchSQL = `SELECT ` + releaseColumns + `
FROM releases
WHERE ($1 = '' OR EXISTS (SELECT 1 FROM unnest(genres) g WHERE lower(g) = lower($1)))
  AND ($2 = '' OR EXISTS (SELECT 1 FROM unnest(platforms) p WHERE lower(p) = lower($2)))
ORDER BY release_date, title, app_id`

const topGenresSQL = `SELECT genre, COUNT(*) AS games
FROM releases, unnest(genres) AS genre
WHERE release_date >= $1 AND release_date < $2
GROUP BY genre
ORDER BY games DESC, genre ASC
LIMIT $3`

// ReleaseStore is the canonical release table.
type ReleaseStore struct {
	pool Pool
}

// NewReleaseStoreWithPool wraps an existing pool. The caller owns the pool.
func NewReleaseStoreWithPool(pool Pool) (*ReleaseStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ReleaseStore{pool: pool}, nil
}

// Sync makes the table hold exactly releases. Rows whose app_id is absent from
// the batch are deleted and the rest are upserted, all in one transaction.
func (s *ReleaseStore) Sync(ctx context.Context, releases []release.Release) (res release.SyncResult, err error) {
	if s == nil || s.pool == nil {
		return res, release.ErrStoreNotConfigured
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin sync: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	ids := make([]int64, 0, len(releases))
	for _, r := range releases {
		ids = append(ids, int64(r.AppID))
	}
	tag, err := tx.Exec(ctx, deleteStaleSQL, ids)
	if err != nil {
		return res, fmt.Errorf("delete stale releases: %w", err)
	}
	res.Deleted = int(tag.RowsAffected())

	for _, r := range releases {
		if _, err = tx.Exec(ctx, upsertReleaseSQL, upsertArgs(r)...); err != nil {
			return res, fmt.Errorf("upsert release %d: %w", r.AppID, err)
		}
		res.Upserted++
	}
	if err = tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit sync: %w", err)
	}
	return res, nil
}

// ListByMonth returns the releases dated inside month.
func (s *ReleaseStore) ListByMonth(ctx context.Context, month release.Month) ([]release.Release, error) {
	return s.queryReleases(ctx, listByMonthSQL, month.Start(), month.End())
}

// Search returns releases carrying genre and platform, compared
// case-insensitively. Empty filters match everything.
func (s *ReleaseStore) Search(ctx context.Context, genre, platform string) ([]release.Release, error) {
	return s.queryReleases(ctx, searchSQL, genre, platform)
}

// CountByDay returns per-day release counts for month, omitting empty days.
func (s *ReleaseStore) CountByDay(ctx context.Context, month release.Month) ([]release.CalendarDay, error) {
	if s == nil || s.pool == nil {
		return nil, release.ErrStoreNotConfigured
	}
	rows, err := s.pool.Query(ctx, countByDaySQL, month.Start(), month.End())
	if err != nil {
		return nil, fmt.Errorf("count releases by day: %w", err)
	}
	defer rows.Close()

	days := []release.CalendarDay{}
	for rows.Next() {
		var day, count int64
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("scan calendar day: %w", err)
		}
		days = append(days, release.CalendarDay{Day: int(day), Count: int(count)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calendar days: %w", err)
	}
	return days, nil
}

// TopGenres returns up to limit genres for month ordered by game count
// descending, ties broken by genre name.
func (s *ReleaseStore) TopGenres(ctx context.Context, month release.Month, limit int) ([]release.GenreCount, error) {
	if s == nil || s.pool == nil {
		return nil, release.ErrStoreNotConfigured
	}
	if limit <= 0 {
		return []release.GenreCount{}, nil
	}
	rows, err := s.pool.Query(ctx, topGenresSQL, month.Start(), month.End(), limit)
	if err != nil {
		return nil, fmt.Errorf("aggregate genres: %w", err)
	}
	defer rows.Close()

	out := []release.GenreCount{}
	for rows.Next() {
		var (
			genre string
			games int64
		)
		if err := rows.Scan(&genre, &games); err != nil {
			return nil, fmt.Errorf("scan genre count: %w", err)
		}
		out = append(out, release.GenreCount{Genre: genre, Games: int(games)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate genre counts: %w", err)
	}
	return out, nil
}

func (s *ReleaseStore) queryReleases(ctx context.Context, query string, args ...any) ([]release.Release, error) {
	if s == nil || s.pool == nil {
		return nil, release.ErrStoreNotConfigured
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query releases: %w", err)
	}
	defer rows.Close()

	out := []release.Release{}
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate releases: %w", err)
	}
	return out, nil
}

func scanRelease(rows pgx.Rows) (release.Release, error) {
	var (
		appID int64
		day   time.Time
		r     release.Release
	)
	if err := rows.Scan(
		&appID,
		&r.Title,
		&day,
		&r.ReleaseDateText,
		&r.Genres,
		&r.Platforms,
		&r.ShortDescription,
		&r.ImageURL,
		&r.StoreURL,
	); err != nil {
		return release.Release{}, fmt.Errorf("scan release: %w", err)
	}
	r.AppID = int(appID)
	r.ReleaseDate = day.UTC()
	return r, nil
}

func upsertArgs(r release.Release) []any {
	return []any{
		int64(r.AppID),
		r.Title,
		r.ReleaseDate,
		r.ReleaseDateText,
		nonNil(r.Genres),
		nonNil(r.Platforms),
		r.ShortDescription,
		r.ImageURL,
		r.StoreURL,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
