package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vortexdb/vortexdb/internal/storekv"
)

func openTestStore(t *testing.T) *storekv.Store {
	t.Helper()
	eng, err := storekv.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return storekv.NewStore(eng)
}

func TestCachePutGetHitsCache(t *testing.T) {
	store := openTestStore(t)
	c := New(store, 0)

	rec := storekv.RecordEnvelope{ID: 1, Vectors: [][]float32{{1, 2}}}
	c.PutRecord(1, rec)

	got, err := c.GetRecord(1)
	require.NoError(t, err)
	require.Equal(t, rec, got)
	require.Equal(t, uint64(1), c.Stats().Hits)
}

func TestCacheGetMissFallsBackToStoreWithoutCaching(t *testing.T) {
	store := openTestStore(t)
	rec := storekv.RecordEnvelope{ID: 2, Vectors: [][]float32{{3, 4}}}
	require.NoError(t, store.PutRecord(rec))

	c := New(store, 0)
	got, err := c.GetRecord(2)
	require.NoError(t, err)
	require.Equal(t, rec, got)
	require.Equal(t, uint64(1), c.Stats().Misses)
	require.Equal(t, 0, c.Stats().Size) // miss path does not populate the cache
}

func TestCacheFlushWritesDirtyAndClears(t *testing.T) {
	store := openTestStore(t)
	c := New(store, 0)

	rec := storekv.RecordEnvelope{ID: 3}
	c.PutRecord(3, rec)
	require.Equal(t, 1, c.Stats().Dirty)

	require.NoError(t, c.FlushRecords())
	require.Equal(t, 0, c.Stats().Dirty)
	require.Equal(t, 0, c.Stats().Size)

	got, err := store.GetRecord(3)
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestCacheDeleteIsWriteThrough(t *testing.T) {
	store := openTestStore(t)
	c := New(store, 0)

	rec := storekv.RecordEnvelope{ID: 4}
	require.NoError(t, store.PutRecord(rec))
	c.PutRecord(4, rec)

	require.NoError(t, c.DeleteRecord(4))
	require.Equal(t, 0, c.Stats().Size)
	_, err := store.GetRecord(4)
	require.Error(t, err)
}

func TestCachePrefetchLoadsUncachedRecords(t *testing.T) {
	store := openTestStore(t)
	for _, id := range []uint64{1, 2, 3} {
		require.NoError(t, store.PutRecord(storekv.RecordEnvelope{ID: id}))
	}
	c := New(store, 0)
	c.PutRecord(2, storekv.RecordEnvelope{ID: 2}) // already cached, should not double count

	require.NoError(t, c.PrefetchRecords(0))
	require.Equal(t, 3, c.Stats().Size)
}

func TestCachePrefetchRespectsLimit(t *testing.T) {
	store := openTestStore(t)
	for _, id := range []uint64{1, 2, 3, 4} {
		require.NoError(t, store.PutRecord(storekv.RecordEnvelope{ID: id}))
	}
	c := New(store, 0)
	require.NoError(t, c.PrefetchRecords(2))
	require.Equal(t, 2, c.Stats().Size)
}
