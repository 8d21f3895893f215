package history_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provideo/provideo/internal/history"
)

func openTestStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "provideo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndLookupResumePoint(t *testing.T) {
	store := openTestStore(t)

	uri := "https://example.com/movie.m3u8"
	require.NoError(t, store.RecordProgress(uri, "Movie", 120000, 5400000))

	point, err := store.Lookup(uri)
	require.NoError(t, err)
	require.NotNil(t, point)
	assert.Equal(t, int64(120000), point.PositionMs)
	assert.Equal(t, "Movie", point.Title)
	assert.NotEmpty(t, point.ID)

	// updates overwrite, they never create a second row
	require.NoError(t, store.RecordProgress(uri, "Movie", 240000, 5400000))
	point, err = store.Lookup(uri)
	require.NoError(t, err)
	require.NotNil(t, point)
	assert.Equal(t, int64(240000), point.PositionMs)

	recent, err := store.Recent(0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestLookupUnknownMediaReturnsNil(t *testing.T) {
	store := openTestStore(t)

	point, err := store.Lookup("https://example.com/never-seen.mp4")
	require.NoError(t, err)
	assert.Nil(t, point)
}

func TestNearCompletePositionMarksCompleted(t *testing.T) {
	store := openTestStore(t)

	uri := "https://example.com/movie.mp4"
	// 97% through counts as finished, so there is nothing to resume
	require.NoError(t, store.RecordProgress(uri, "Movie", 5238000, 5400000))

	point, err := store.Lookup(uri)
	require.NoError(t, err)
	assert.Nil(t, point)
}

func TestMarkCompletedAndDelete(t *testing.T) {
	store := openTestStore(t)

	uri := "https://example.com/show.mkv"
	require.NoError(t, store.RecordProgress(uri, "Show", 60000, 2700000))

	require.NoError(t, store.MarkCompleted(uri))
	point, err := store.Lookup(uri)
	require.NoError(t, err)
	assert.Nil(t, point)

	require.NoError(t, store.Delete(uri))
	recent, err := store.Recent(0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.RecordProgress("uri-a", "A", 1000, 100000))
	require.NoError(t, store.RecordProgress("uri-b", "B", 2000, 100000))
	require.NoError(t, store.RecordProgress("uri-a", "A", 3000, 100000))

	recent, err := store.Recent(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "uri-a", recent[0].MediaURI)
}
