package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

// ReleaseStore is an in-memory canonical store. It also answers the catalog
// and genre aggregation queries.
type ReleaseStore struct {
	mu       sync.RWMutex
	releases map[int]release.Release
}

// NewReleaseStore constructs an empty ReleaseStore.
func NewReleaseStore() *ReleaseStore {
	return &ReleaseStore{releases: make(map[int]release.Release)}
}

// Sync implements release.CanonicalStore.
func (s *ReleaseStore) Sync(_ context.Context, releases []release.Release) (release.SyncResult, error) {
	next := make(map[int]release.Release, len(releases))
	for _, r := range releases {
		next[r.AppID] = cloneRelease(r)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id := range s.releases {
		if _, ok := next[id]; !ok {
			deleted++
		}
	}
	s.releases = next
	return release.SyncResult{Upserted: len(next), Deleted: deleted}, nil
}

// ListByMonth implements release.Catalog.
func (s *ReleaseStore) ListByMonth(_ context.Context, month release.Month) ([]release.Release, error) {
	return s.collect(func(r release.Release) bool {
		return inMonth(r, month)
	}), nil
}

// CountByDay implements release.Catalog.
func (s *ReleaseStore) CountByDay(_ context.Context, month release.Month) ([]release.CalendarDay, error) {
	counts := make(map[int]int)
	for _, r := range s.collect(func(r release.Release) bool { return inMonth(r, month) }) {
		counts[r.ReleaseDate.Day()]++
	}
	days := make([]release.CalendarDay, 0, len(counts))
	for day, n := range counts {
		days = append(days, release.CalendarDay{Day: day, Count: n})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return days, nil
}

// Search implements release.Catalog. Empty criteria match everything.
func (s *ReleaseStore) Search(_ context.Context, genre, platform string) ([]release.Release, error) {
	return s.collect(func(r release.Release) bool {
		return (genre == "" || containsFold(r.Genres, genre)) &&
			(platform == "" || containsFold(r.Platforms, platform))
	}), nil
}

// TopGenres implements release.GenreAggregator. Ties are ordered by genre name.
func (s *ReleaseStore) TopGenres(_ context.Context, month release.Month, limit int) ([]release.GenreCount, error) {
	if limit <= 0 {
		return []release.GenreCount{}, nil
	}
	counts := make(map[string]int)
	for _, r := range s.collect(func(r release.Release) bool { return inMonth(r, month) }) {
		for _, g := range r.Genres {
			counts[g]++
		}
	}
	rows := make([]release.GenreCount, 0, len(counts))
	for genre, n := range counts {
		rows = append(rows, release.GenreCount{Genre: genre, Games: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Games != rows[j].Games {
			return rows[i].Games > rows[j].Games
		}
		return rows[i].Genre < rows[j].Genre
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// collect returns matching releases ordered by release date, then title.
func (s *ReleaseStore) collect(match func(release.Release) bool) []release.Release {
	s.mu.RLock()
	out := make([]release.Release, 0, len(s.releases))
	for _, r := range s.releases {
		if match(r) {
			out = append(out, cloneRelease(r))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReleaseDate.Equal(out[j].ReleaseDate) {
			return out[i].ReleaseDate.Before(out[j].ReleaseDate)
		}
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].AppID < out[j].AppID
	})
	return out
}

func inMonth(r release.Release, month release.Month) bool {
	return !r.ReleaseDate.Before(month.Start()) && r.ReleaseDate.Before(month.End())
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func cloneRelease(r release.Release) release.Release {
	r.Genres = append([]string(nil), r.Genres...)
	r.Platforms = append([]string(nil), r.Platforms...)
	return r
}

func cloneReleases(src []release.Release) []release.Release {
	out := make([]release.Release, 0, len(src))
	for _, r := range src {
		out = append(out, cloneRelease(r))
	}
	return out
}
