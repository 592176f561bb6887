package detail

import (
	"strconv"
	"strings"
	"time"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

// NoGenre replaces a missing genre list so every release groups somewhere.
const NoGenre = "None"

// Select keeps the records that are upcoming releases in the target month.
func Select(records []release.DetailRecord, target release.Month) []release.DetailRecord {
	kept := make([]release.DetailRecord, 0, len(records))
	for _, r := range records {
		if r.Success && r.ComingSoon && target.Matches(r.ReleaseDateText) {
			kept = append(kept, r)
		}
	}
	return kept
}

// Normalize converts selected records into releases ready for the canonical
// store. appURL is the store page prefix the id is appended to.
func Normalize(records []release.DetailRecord, target release.Month, appURL string) []release.Release {
	out := make([]release.Release, 0, len(records))
	for _, r := range records {
		genres := r.Genres
		if len(genres) == 0 {
			genres = []string{NoGenre}
		}
		out = append(out, release.Release{
			AppID:            r.ID,
			Title:            strings.TrimSpace(r.Title),
			ReleaseDate:      ParseReleaseDate(r.ReleaseDateText, target),
			ReleaseDateText:  r.ReleaseDateText,
			Genres:           append([]string(nil), genres...),
			Platforms:        r.Platforms.Supported(),
			ShortDescription: r.ShortDescription,
			ImageURL:         r.ImageURL,
			StoreURL:         appURL + strconv.Itoa(r.ID),
		})
	}
	return out
}

// Filter selects and normalizes in one step.
func Filter(records []release.DetailRecord, target release.Month, appURL string) []release.Release {
	return Normalize(Select(records, target), target, appURL)
}

var dateLayouts = []string{
	"Jan 2, 2006",
	"2 Jan, 2006",
	"January 2, 2006",
	"2 January, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
}

var monthLayouts = []string{
	"Jan 2006",
	"January 2006",
	"Jan, 2006",
	"January, 2006",
}

// ParseReleaseDate turns storefront date text into a UTC date. Text without a
// day, or text that matches no known layout, falls back to the first day of
// the target month.
func ParseReleaseDate(text string, target release.Month) time.Time {
	text = strings.TrimSpace(text)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC()
		}
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC()
		}
	}
	return target.Start()
}
