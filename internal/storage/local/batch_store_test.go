package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

func TestBatchStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewBatchStore(filepath.Join(t.TempDir(), "gameinfo.json"))
	require.NoError(t, err)

	_, err = store.LoadBatch(context.Background())
	require.ErrorIs(t, err, release.ErrNoBatch)

	batch := []release.Release{{
		AppID:       42,
		Title:       "Answer",
		ReleaseDate: time.Date(2025, time.November, 12, 0, 0, 0, 0, time.UTC),
		Genres:      []string{"Puzzle"},
		Platforms:   []string{"Windows"},
		StoreURL:    "https://store.example.com/app/42",
	}}
	require.NoError(t, store.SaveBatch(context.Background(), batch))

	got, err := store.LoadBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, batch, got)
}

func TestBatchStoreEmptyBatchIsValid(t *testing.T) {
	t.Parallel()

	store, err := NewBatchStore(filepath.Join(t.TempDir(), "gameinfo.json"))
	require.NoError(t, err)

	require.NoError(t, store.SaveBatch(context.Background(), nil))
	got, err := store.LoadBatch(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBatchStoreCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gameinfo.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
	store, err := NewBatchStore(path)
	require.NoError(t, err)

	_, err = store.LoadBatch(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, release.ErrNoBatch)
}
