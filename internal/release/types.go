package release

import (
	"fmt"
	"time"
)

// ScanState is the scanner's last known useful starting offset.
type ScanState struct {
	StartPage int `json:"start_page"`
}

// DefaultScanState is the state used when nothing has been persisted yet.
func DefaultScanState() ScanState {
	return ScanState{StartPage: 1}
}

// Valid reports whether the state points at a real page.
func (s ScanState) Valid() bool {
	return s.StartPage >= 1
}

// CatalogItemStub is one listing entry extracted from a catalog page.
type CatalogItemStub struct {
	ID              int
	ReleaseDateText string
}

// Page is the raw result of fetching one upstream URL.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Platform names a desktop platform reported by the detail endpoint.
type Platform string

// Known platforms, in presentation order.
const (
	PlatformWindows Platform = "Windows"
	PlatformMac     Platform = "Mac"
	PlatformLinux   Platform = "Linux"
)

// Platforms lists every platform the detail endpoint reports a flag for.
var Platforms = []Platform{PlatformWindows, PlatformMac, PlatformLinux}

// PlatformFlags maps each known platform to its availability.
type PlatformFlags map[Platform]bool

// Supported returns the names of the flagged platforms in Platforms order.
func (f PlatformFlags) Supported() []string {
	out := make([]string, 0, len(Platforms))
	for _, p := range Platforms {
		if f[p] {
			out = append(out, string(p))
		}
	}
	return out
}

// DetailRecord is the per-item payload returned by the detail endpoint.
// Success is false when the upstream had no usable entry for the id.
type DetailRecord struct {
	Success          bool          `json:"success"`
	ID               int           `json:"id"`
	Title            string        `json:"title"`
	ReleaseDateText  string        `json:"release_date_text"`
	ComingSoon       bool          `json:"coming_soon"`
	Genres           []string      `json:"genres"`
	Platforms        PlatformFlags `json:"platforms"`
	ShortDescription string        `json:"short_description"`
	ImageURL         string        `json:"image_url"`
	// FromCache marks a record served without an upstream request.
	FromCache        bool          `json:"-"`
}

// Release is a filtered, normalized record handed to the canonical store.
type Release struct {
	AppID            int       `json:"app_id"`
	Title            string    `json:"title"`
	ReleaseDate      time.Time `json:"release_date"`
	ReleaseDateText  string    `json:"release_date_text"`
	Genres           []string  `json:"genres"`
	Platforms        []string  `json:"platforms"`
	ShortDescription string    `json:"short_description"`
	ImageURL         string    `json:"image_url"`
	StoreURL         string    `json:"store_url"`
}

// GenreCount is one row of the genre popularity aggregation.
type GenreCount struct {
	Genre string `json:"genre"`
	Games int    `json:"games"`
}

// CalendarDay counts releases on one day of a month.
type CalendarDay struct {
	Day   int `json:"day"`
	Count int `json:"count"`
}

// Snapshot is one point of the genre popularity history. Genres and Counts
// are parallel slices.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Genres    []string  `json:"genres"`
	Counts    []int     `json:"counts"`
}

// NewSnapshot builds a Snapshot from aggregation rows.
func NewSnapshot(ts time.Time, rows []GenreCount) Snapshot {
	snap := Snapshot{
		Timestamp: ts,
		Genres:    make([]string, 0, len(rows)),
		Counts:    make([]int, 0, len(rows)),
	}
	for _, row := range rows {
		snap.Genres = append(snap.Genres, row.Genre)
		snap.Counts = append(snap.Counts, row.Games)
	}
	return snap
}

// SnapshotTimeLayout is the textual form snapshot prefixes are matched against.
const SnapshotTimeLayout = "2006-01-02 15:04:05"

// MonthPrefix validates a "YYYY-MM" snapshot range prefix.
func MonthPrefix(raw string) (string, error) {
	m, err := ParseMonth(raw)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

// SyncResult summarizes a canonical store full sync.
type SyncResult struct {
	Upserted int
	Deleted  int
}

func (r SyncResult) String() string {
	return fmt.Sprintf("upserted=%d deleted=%d", r.Upserted, r.Deleted)
}
