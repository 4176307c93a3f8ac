package cache_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixelsdb/pixels-cache-go/cache"
	"github.com/pixelsdb/pixels-cache-go/cachekey"
)

func openTestStore(t *testing.T, indexSize, dataSize int64) *cache.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := cache.Open(filepath.Join(dir, "pixels.index"), indexSize, filepath.Join(dir, "pixels.cache"), dataSize, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func fetcher(b []byte) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) { return b, nil }
}

func TestRebuildEmptyListIsNoWorkToDo(t *testing.T) {
	store := openTestStore(t, 4096, 4096)
	w := cache.NewWriter(store, nil)

	status, err := w.Rebuild(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, cache.NoWorkToDo, status)
}

func TestRebuildThenLookupHit(t *testing.T) {
	store := openTestStore(t, 4096, 4096)
	w := cache.NewWriter(store, nil)
	r := cache.NewReader(store, nil)

	key := cachekey.Key{BlockID: 1, RowGroupID: 0, ColumnID: 0}
	payload := []byte("columnlet bytes")

	status, err := w.Rebuild(context.Background(), []cache.ColumnletInput{
		{Key: key, Fetch: fetcher(payload)},
	})
	require.NoError(t, err)
	require.Equal(t, cache.Ok, status)

	got, err := r.Lookup(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestLookupMissReturnsMiss(t *testing.T) {
	store := openTestStore(t, 4096, 4096)
	r := cache.NewReader(store, nil)

	_, err := r.Lookup(context.Background(), cachekey.Key{BlockID: 99})
	var miss *cache.Miss
	require.ErrorAs(t, err, &miss)
}

func TestRebuildOverwritesPreviousGeneration(t *testing.T) {
	store := openTestStore(t, 4096, 4096)
	w := cache.NewWriter(store, nil)
	r := cache.NewReader(store, nil)

	key1 := cachekey.Key{BlockID: 1}
	key2 := cachekey.Key{BlockID: 2}

	_, err := w.Rebuild(context.Background(), []cache.ColumnletInput{
		{Key: key1, Fetch: fetcher([]byte("gen1"))},
	})
	require.NoError(t, err)

	_, err = w.Rebuild(context.Background(), []cache.ColumnletInput{
		{Key: key2, Fetch: fetcher([]byte("gen2"))},
	})
	require.NoError(t, err)

	_, err = r.Lookup(context.Background(), key1)
	var miss *cache.Miss
	require.ErrorAs(t, err, &miss)

	got, err := r.Lookup(context.Background(), key2)
	require.NoError(t, err)
	require.Equal(t, []byte("gen2"), got)
}

func TestRebuildCapacityExceededLeavesPreviousGenerationReadable(t *testing.T) {
	store := openTestStore(t, 4096, 64)
	w := cache.NewWriter(store, nil)
	r := cache.NewReader(store, nil)

	key := cachekey.Key{BlockID: 1}
	_, err := w.Rebuild(context.Background(), []cache.ColumnletInput{
		{Key: key, Fetch: fetcher([]byte("fits"))},
	})
	require.NoError(t, err)

	tooBig := make([]byte, 1<<20)
	status, err := w.Rebuild(context.Background(), []cache.ColumnletInput{
		{Key: cachekey.Key{BlockID: 2}, Fetch: fetcher(tooBig)},
	})
	require.NoError(t, err)
	require.Equal(t, cache.CapacityExceeded, status)

	got, err := r.Lookup(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, []byte("fits"), got)
}

func TestRebuildPartialCommitOnOverflow(t *testing.T) {
	store := openTestStore(t, 4096, 10006)
	w := cache.NewWriter(store, nil)
	r := cache.NewReader(store, nil)

	key1 := cachekey.Key{BlockID: 1}
	key2 := cachekey.Key{BlockID: 2}
	key3 := cachekey.Key{BlockID: 3}

	status, err := w.Rebuild(context.Background(), []cache.ColumnletInput{
		{Key: key1, Fetch: fetcher(make([]byte, 6000))},
		{Key: key2, Fetch: fetcher(make([]byte, 3000))},
		{Key: key3, Fetch: fetcher(make([]byte, 2000))},
	})
	require.NoError(t, err)
	require.Equal(t, cache.CapacityExceeded, status)

	got1, err := r.Lookup(context.Background(), key1)
	require.NoError(t, err)
	require.Len(t, got1, 6000)

	got2, err := r.Lookup(context.Background(), key2)
	require.NoError(t, err)
	require.Len(t, got2, 3000)

	_, err = r.Lookup(context.Background(), key3)
	var miss *cache.Miss
	require.ErrorAs(t, err, &miss)
}

func TestRebuildPropagatesFetchError(t *testing.T) {
	store := openTestStore(t, 4096, 4096)
	w := cache.NewWriter(store, nil)

	wantErr := errFetch{}
	_, err := w.Rebuild(context.Background(), []cache.ColumnletInput{
		{Key: cachekey.Key{BlockID: 1}, Fetch: func(context.Context) ([]byte, error) { return nil, wantErr }},
	})
	require.ErrorIs(t, err, wantErr)
}

type errFetch struct{}

func (errFetch) Error() string { return "fetch failed" }

func TestDirectLookupCopiesBytes(t *testing.T) {
	store := openTestStore(t, 4096, 4096)
	w := cache.NewWriter(store, nil)
	r := cache.NewReader(store, nil)
	r.Direct = true

	key := cachekey.Key{BlockID: 1}
	_, err := w.Rebuild(context.Background(), []cache.ColumnletInput{
		{Key: key, Fetch: fetcher([]byte("direct bytes"))},
	})
	require.NoError(t, err)

	got, err := r.Lookup(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, []byte("direct bytes"), got)
}

func TestReopenReusesExistingGeneration(t *testing.T) {
	dir := t.TempDir()
	idxPath := filepath.Join(dir, "pixels.index")
	dataPath := filepath.Join(dir, "pixels.cache")

	store1, err := cache.Open(idxPath, 4096, dataPath, 4096, nil)
	require.NoError(t, err)

	w := cache.NewWriter(store1, nil)
	key := cachekey.Key{BlockID: 5}
	_, err = w.Rebuild(context.Background(), []cache.ColumnletInput{
		{Key: key, Fetch: fetcher([]byte("persisted"))},
	})
	require.NoError(t, err)
	require.NoError(t, store1.Close())

	store2, err := cache.Open(idxPath, 4096, dataPath, 4096, nil)
	require.NoError(t, err)
	defer store2.Close()

	r := cache.NewReader(store2, nil)
	got, err := r.Lookup(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, []byte("persisted"), got)
}
