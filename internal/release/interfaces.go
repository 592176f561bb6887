package release

import (
	"context"
	"time"
)

// PageFetcher retrieves one upstream URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Pacer blocks until the next request to url may be issued.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// StateStore persists the scanner's resume offset. Load reports ok=false when
// no usable state exists.
type StateStore interface {
	Load(ctx context.Context) (state ScanState, ok bool, err error)
	Save(ctx context.Context, state ScanState) error
}

// DetailClient fetches the detail record for a single item.
type DetailClient interface {
	FetchDetail(ctx context.Context, id int) (DetailRecord, error)
}

// BatchStore hands the collected batch from the collect stage to the persist
// stage. LoadBatch returns ErrNoBatch when nothing has been saved.
type BatchStore interface {
	SaveBatch(ctx context.Context, releases []Release) error
	LoadBatch(ctx context.Context) ([]Release, error)
}

// CanonicalStore holds the authoritative set of upcoming releases. Sync
// replaces the stored set with releases, deleting ids absent from the batch.
type CanonicalStore interface {
	Sync(ctx context.Context, releases []Release) (SyncResult, error)
}

// Catalog answers read queries over the canonical store.
type Catalog interface {
	ListByMonth(ctx context.Context, month Month) ([]Release, error)
	CountByDay(ctx context.Context, month Month) ([]CalendarDay, error)
	Search(ctx context.Context, genre, platform string) ([]Release, error)
}

// GenreAggregator returns the most common genres for a month, sorted by
// count descending.
type GenreAggregator interface {
	TopGenres(ctx context.Context, month Month, limit int) ([]GenreCount, error)
}

// SnapshotStore is the append-only genre popularity history.
type SnapshotStore interface {
	Append(ctx context.Context, snap Snapshot) error
	ListByPrefix(ctx context.Context, prefix string) ([]Snapshot, error)
}

// Publisher emits notifications to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock provides time for deterministic testing.
type Clock interface {
	Now() time.Time
}

// Sleeper pauses for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces unique run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
