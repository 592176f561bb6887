package storefront

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collyfetcher "github.com/TembulatC/mira-games-backend/internal/fetcher/colly"
	"github.com/TembulatC/mira-games-backend/internal/release"
)

const detailFixture = `{"730":{"success":true,"data":{
  "type":"game","name":"Space Trader","steam_appid":730,
  "short_description":"Trade among the stars.",
  "header_image":"https://cdn.example.com/730/header.jpg",
  "platforms":{"windows":true,"mac":false,"linux":true},
  "genres":[{"id":"1","description":"Action"},{"id":"25","description":"Adventure"}],
  "release_date":{"coming_soon":true,"date":"Nov 12, 2025"}}}}`

type fakeFetcher struct {
	pages map[string]release.Page
	err   error
	urls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (release.Page, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return release.Page{}, f.err
	}
	return f.pages[url], nil
}

func TestClientFetchDetailDecodes(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]release.Page{
		"https://store.example.com/api/appdetails?appids=730": {StatusCode: 200, Body: []byte(detailFixture)},
	}}
	client, err := NewClient(fetcher, "https://store.example.com/api/appdetails")
	require.NoError(t, err)

	record, err := client.FetchDetail(context.Background(), 730)
	require.NoError(t, err)
	assert.Equal(t, release.DetailRecord{
		Success:          true,
		ID:               730,
		Title:            "Space Trader",
		ReleaseDateText:  "Nov 12, 2025",
		ComingSoon:       true,
		Genres:           []string{"Action", "Adventure"},
		Platforms:        release.PlatformFlags{release.PlatformWindows: true, release.PlatformMac: false, release.PlatformLinux: true},
		ShortDescription: "Trade among the stars.",
		ImageURL:         "https://cdn.example.com/730/header.jpg",
	}, record)
	assert.Equal(t, []string{"Windows", "Linux"}, record.Platforms.Supported())
}

func TestClientFetchDetailMissingOrUnsuccessful(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]release.Page{
		"https://store.example.com/api/appdetails?appids=1": {Body: []byte(`{"1":{"success":false}}`)},
		"https://store.example.com/api/appdetails?appids=2": {Body: []byte(`{}`)},
		"https://store.example.com/api/appdetails?appids=3": {Body: []byte(`{"3":{"success":true,"data":{"name":"No Genres","release_date":{"coming_soon":true,"date":"Nov 2025"}}}}`)},
	}}
	client, err := NewClient(fetcher, "https://store.example.com/api/appdetails")
	require.NoError(t, err)

	record, err := client.FetchDetail(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, release.DetailRecord{ID: 1}, record)

	record, err = client.FetchDetail(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, release.DetailRecord{ID: 2}, record)

	record, err = client.FetchDetail(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, record.Success)
	assert.Nil(t, record.Genres)
	assert.Empty(t, record.Platforms.Supported())
}

func TestClientFetchDetailErrors(t *testing.T) {
	t.Parallel()

	throttled := &fakeFetcher{err: &release.StatusError{StatusCode: http.StatusBadGateway}}
	client, err := NewClient(throttled, "https://store.example.com/api/appdetails")
	require.NoError(t, err)
	_, err = client.FetchDetail(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, release.IsThrottling(err))

	garbage := &fakeFetcher{pages: map[string]release.Page{
		"https://store.example.com/api/appdetails?appids=9": {Body: []byte(`<html>maintenance</html>`)},
	}}
	client, err = NewClient(garbage, "https://store.example.com/api/appdetails")
	require.NoError(t, err)
	_, err = client.FetchDetail(context.Background(), 9)
	require.Error(t, err)
	assert.False(t, release.IsThrottling(err))
}

func TestNewClientValidates(t *testing.T) {
	t.Parallel()

	_, err := NewClient(nil, "https://store.example.com/api/appdetails")
	require.Error(t, err)
	_, err = NewClient(&fakeFetcher{}, "")
	require.Error(t, err)
}

func TestClientOverCollyFetcher(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "https://store.example.com/api/appdetails?appids=730",
		httpmock.NewStringResponder(http.StatusOK, detailFixture))
	transport.RegisterResponder(http.MethodGet, "https://store.example.com/api/appdetails?appids=731",
		httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"))

	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: time.Second, Transport: transport})
	client, err := NewClient(fetcher, "https://store.example.com/api/appdetails")
	require.NoError(t, err)

	record, err := client.FetchDetail(context.Background(), 730)
	require.NoError(t, err)
	assert.Equal(t, "Space Trader", record.Title)

	_, err = client.FetchDetail(context.Background(), 731)
	require.Error(t, err)
	assert.True(t, release.IsThrottling(err))
}

type countingClient struct {
	calls   map[int]int
	records map[int]release.DetailRecord
	err     error
}

func (c *countingClient) FetchDetail(_ context.Context, id int) (release.DetailRecord, error) {
	c.calls[id]++
	if c.err != nil {
		return release.DetailRecord{}, c.err
	}
	return c.records[id], nil
}

func TestCachedClient(t *testing.T) {
	t.Parallel()

	next := &countingClient{
		calls: map[int]int{},
		records: map[int]release.DetailRecord{
			1: {Success: true, ID: 1, Title: "Cached"},
			2: {ID: 2},
		},
	}
	client, err := NewCachedClient(next, 16, time.Hour)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		record, err := client.FetchDetail(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Cached", record.Title)
		assert.Equal(t, i > 0, record.FromCache)
		missing, err := client.FetchDetail(context.Background(), 2)
		require.NoError(t, err)
		assert.False(t, missing.FromCache)
	}
	assert.Equal(t, 1, next.calls[1])
	assert.Equal(t, 3, next.calls[2])
	assert.Equal(t, 1, client.Len())
}

func TestCachedClientPurgeForcesRefetch(t *testing.T) {
	t.Parallel()

	next := &countingClient{
		calls: map[int]int{},
		records: map[int]release.DetailRecord{
			7: {Success: true, ID: 7, ReleaseDateText: "Nov 12, 2025"},
		},
	}
	client, err := NewCachedClient(next, 1024, 3*time.Hour)
	require.NoError(t, err)

	_, err = client.FetchDetail(context.Background(), 7)
	require.NoError(t, err)
	client.Purge()
	assert.Zero(t, client.Len())

	next.records[7] = release.DetailRecord{Success: true, ID: 7, ReleaseDateText: "Q1 2026"}
	record, err := client.FetchDetail(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Q1 2026", record.ReleaseDateText)
	assert.False(t, record.FromCache)
	assert.Equal(t, 2, next.calls[7])
}

func TestCachedClientDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	next := &countingClient{calls: map[int]int{}, err: errors.New("boom")}
	client, err := NewCachedClient(next, 4, time.Hour)
	require.NoError(t, err)
	_, err = client.FetchDetail(context.Background(), 5)
	require.Error(t, err)
	_, err = client.FetchDetail(context.Background(), 5)
	require.Error(t, err)
	assert.Equal(t, 2, next.calls[5])
}

func TestNewCachedClientValidates(t *testing.T) {
	t.Parallel()

	next := &countingClient{calls: map[int]int{}}
	_, err := NewCachedClient(next, 0, time.Hour)
	require.Error(t, err)
	_, err = NewCachedClient(next, 4, 0)
	require.Error(t, err)
	_, err = NewCachedClient(nil, 4, time.Hour)
	require.Error(t, err)
}
