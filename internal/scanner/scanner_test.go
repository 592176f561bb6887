package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

const listingBase = "https://store.example.com/search/?filter=comingsoon"

// October 2025: current=Oct, target=Nov, overrun=Dec.
var october = release.NewTargetWindow(time.Date(2025, time.October, 15, 9, 0, 0, 0, time.UTC))

type item struct {
	id   int
	date string
}

type pageFetcher struct {
	pages   map[int][]item
	errPage int
	fetched []int
}

func (f *pageFetcher) Fetch(_ context.Context, raw string) (release.Page, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return release.Page{}, err
	}
	page, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil {
		return release.Page{}, fmt.Errorf("missing page param in %q", raw)
	}
	f.fetched = append(f.fetched, page)
	if f.errPage == page {
		return release.Page{}, &release.StatusError{URL: raw, StatusCode: 500}
	}
	return release.Page{URL: raw, StatusCode: 200, Body: renderListing(f.pages[page])}, nil
}

func renderListing(items []item) []byte {
	var b strings.Builder
	b.WriteString(`<html><body><div id="search_resultsRows">`)
	for _, it := range items {
		fmt.Fprintf(&b, `<a data-ds-appid="%d"><div class="col search_released">%s</div></a>`, it.id, it.date)
	}
	b.WriteString(`</div></body></html>`)
	return []byte(b.String())
}

type countingPacer struct {
	calls int
	err   error
}

func (p *countingPacer) Wait(context.Context, string) error {
	p.calls++
	return p.err
}

func newScanner(t *testing.T, fetcher release.PageFetcher, pacer release.Pacer, maxPages int) *Scanner {
	t.Helper()
	s, err := New(Config{ListingURL: listingBase, DriftPages: 2, MaxPages: maxPages}, fetcher, pacer, nil)
	require.NoError(t, err)
	return s
}

func TestScanResumesWithDriftAndFindsTargetPage(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int][]item{
		3: {{1, "Oct 20, 2025"}},
		4: {{2, "Oct 22, 2025"}},
		5: {{3, "October 2025"}},
		6: {{4, "Oct 31, 2025"}},
		7: {{70, "Nov 3, 2025"}, {71, "November 2025"}, {72, "Dec 1, 2025"}},
		8: {{80, "Nov 30, 2025"}},
	}}
	s := newScanner(t, fetcher, nil, 0)

	ids, state, err := s.Scan(context.Background(), october, release.ScanState{StartPage: 5})
	require.NoError(t, err)
	assert.Equal(t, []int{70, 71}, ids)
	assert.Equal(t, 7, state.StartPage)
	assert.Equal(t, []int{3, 4, 5, 6, 7}, fetcher.fetched)
}

func TestScanNeverStartsBelowPageOne(t *testing.T) {
	t.Parallel()

	for _, start := range []int{1, 2, 3, 0, -4} {
		fetcher := &pageFetcher{pages: map[int][]item{
			1: {{1, "Dec 2025"}},
			2: {{2, "Dec 2025"}},
			3: {{3, "Dec 2025"}},
		}}
		s := newScanner(t, fetcher, nil, 0)
		_, _, err := s.Scan(context.Background(), october, release.ScanState{StartPage: start})
		require.NoError(t, err)
		require.NotEmpty(t, fetcher.fetched)
		assert.Equal(t, 1, fetcher.fetched[0], "start page %d", start)
	}
}

func TestScanContinuesPastEmptyPages(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int][]item{
		3: {{30, "Nov 5, 2025"}},
		5: {{50, "Dec 2, 2025"}},
	}}
	s := newScanner(t, fetcher, nil, 0)

	ids, state, err := s.Scan(context.Background(), october, release.DefaultScanState())
	require.NoError(t, err)
	assert.Equal(t, []int{30}, ids)
	assert.Equal(t, 3, state.StartPage)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, fetcher.fetched)
}

func TestScanFinishesPageAfterOverrun(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int][]item{
		1: {{10, "Nov 1, 2025"}, {11, "Dec 2025"}, {12, "Nov 29, 2025"}, {13, "Oct 31, 2025"}},
		2: {{20, "Nov 30, 2025"}},
	}}
	s := newScanner(t, fetcher, nil, 0)

	ids, state, err := s.Scan(context.Background(), october, release.DefaultScanState())
	require.NoError(t, err)
	assert.Equal(t, []int{10, 12}, ids)
	assert.Equal(t, 1, state.StartPage)
	assert.Equal(t, []int{1}, fetcher.fetched)
}

func TestScanWithoutTargetItemsResetsToPageOne(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int][]item{
		8:  {{1, "Oct 30, 2025"}},
		9:  {{2, "To be announced"}},
		10: {{3, "Dec 24, 2025"}},
	}}
	s := newScanner(t, fetcher, nil, 0)

	ids, state, err := s.Scan(context.Background(), october, release.ScanState{StartPage: 10})
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, 1, state.StartPage)
}

func TestScanDeduplicatesIDs(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int][]item{
		1: {{5, "Nov 2025"}, {6, "Nov 2025"}},
		2: {{6, "Nov 2025"}, {7, "Nov 2025"}, {8, "Dec 2025"}},
	}}
	s := newScanner(t, fetcher, nil, 0)

	ids, _, err := s.Scan(context.Background(), october, release.DefaultScanState())
	require.NoError(t, err)
	assert.Equal(t, []int{5, 6, 7}, ids)
}

func TestScanPageErrorIsFatal(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{
		pages:   map[int][]item{1: {{1, "Nov 2025"}}},
		errPage: 2,
	}
	s := newScanner(t, fetcher, nil, 0)

	ids, _, err := s.Scan(context.Background(), october, release.DefaultScanState())
	require.Error(t, err)
	assert.Nil(t, ids)
	assert.Contains(t, err.Error(), "listing page 2")
	var statusErr *release.StatusError
	assert.ErrorAs(t, err, &statusErr)
}

func TestScanPageLimit(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int][]item{}}
	s := newScanner(t, fetcher, nil, 4)

	_, _, err := s.Scan(context.Background(), october, release.ScanState{StartPage: 10})
	require.ErrorIs(t, err, release.ErrPageLimitExceeded)
	assert.Equal(t, []int{8, 9, 10, 11}, fetcher.fetched)
}

func TestScanPacesEveryPage(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int][]item{3: {{1, "Dec 2025"}}}}
	pacer := &countingPacer{}
	s := newScanner(t, fetcher, pacer, 0)

	_, _, err := s.Scan(context.Background(), october, release.DefaultScanState())
	require.NoError(t, err)
	assert.Equal(t, 3, pacer.calls)
}

func TestScanPacerCancellation(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{}
	pacer := &countingPacer{err: context.Canceled}
	s := newScanner(t, fetcher, pacer, 0)

	_, _, err := s.Scan(context.Background(), october, release.DefaultScanState())
	require.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, fetcher.fetched)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{ListingURL: listingBase}, nil, nil, nil)
	require.Error(t, err)
	_, err = New(Config{}, &pageFetcher{}, nil, nil)
	require.Error(t, err)
	_, err = New(Config{ListingURL: listingBase, MaxPages: -1}, &pageFetcher{}, nil, nil)
	require.Error(t, err)
}

func TestScanClassifiesAgainstGivenWindow(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int][]item{
		1: {{1, "Nov 30, 2025"}, {2, "Dec 3, 2025"}, {3, "Jan 5, 2026"}},
	}}
	s := newScanner(t, fetcher, nil, 0)
	november := release.NewTargetWindow(time.Date(2025, time.November, 1, 0, 20, 0, 0, time.UTC))

	ids, state, err := s.Scan(context.Background(), november, release.DefaultScanState())
	require.NoError(t, err)
	assert.Equal(t, []int{2}, ids)
	assert.Equal(t, 1, state.StartPage)
}
