package storekv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	eng, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return NewStore(eng)
}

func TestStoreSchemaRoundTrip(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetSchema()
	require.Error(t, err)
	has, err := s.HasSchema()
	require.NoError(t, err)
	require.False(t, has)

	schema := SchemaEnvelope{
		VectorFields: []VectorFieldMeta{{Name: "embedding", Dim: 4, NumCentroids: 16}},
		ScalarFields: []ScalarFieldMeta{{Name: "title", Type: ScalarString}},
	}
	require.NoError(t, s.PutSchema(schema))

	got, err := s.GetSchema()
	require.NoError(t, err)
	require.Equal(t, schema, got)

	has, err = s.HasSchema()
	require.NoError(t, err)
	require.True(t, has)
}

func TestStoreRecordLifecycle(t *testing.T) {
	s := openTestStore(t)

	rec := RecordEnvelope{
		ID:      7,
		Scalars: []ScalarValue{{Tag: ScalarString, S: "hello"}},
		Vectors: [][]float32{{1, 2, 3}},
	}
	require.NoError(t, s.PutRecord(rec))

	got, err := s.GetRecord(7)
	require.NoError(t, err)
	require.Equal(t, rec, got)

	n, err := s.CountRecords()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, s.DeleteRecord(7))
	_, err = s.GetRecord(7)
	require.Error(t, err)

	n, err = s.CountRecords()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestStoreIterateRecordsAscending(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []uint64{5, 1, 3} {
		require.NoError(t, s.PutRecord(RecordEnvelope{ID: id}))
	}
	var seen []uint64
	require.NoError(t, s.IterateRecords(func(r RecordEnvelope) error {
		seen = append(seen, r.ID)
		return nil
	}))
	// Keys are formatted as decimal strings under "r:", so ascending byte
	// order is ascending string order, not ascending numeric order, for
	// keys of differing digit counts. With single-digit ids here it also
	// happens to be numeric order.
	require.Equal(t, []uint64{1, 3, 5}, seen)
}

func TestStoreIndexPartitionRoundTrip(t *testing.T) {
	s := openTestStore(t)

	parts := []IndexPartitionEnvelope{
		{
			FieldName:     "embedding",
			Dim:           3,
			Nlist:         4,
			CentroidStart: 0,
			Centroids:     [][]float32{{0, 0, 0}, {1, 1, 1}},
			Lists: [][]IvfListEntryWire{
				{{Key: 1, Vector: []float32{0.1, 0, 0}}},
				{{Key: 2, Vector: []float32{1, 1, 0.9}}},
			},
		},
		{
			FieldName:     "embedding",
			Dim:           3,
			Nlist:         4,
			CentroidStart: 2,
			Centroids:     [][]float32{{2, 2, 2}, {3, 3, 3}},
			Lists: [][]IvfListEntryWire{
				{},
				{{Key: 3, Vector: []float32{3, 3, 3.1}}},
			},
		},
	}
	require.NoError(t, s.PutIndexPartitions("embedding", parts))

	got, err := s.LoadIndexPartitions("embedding")
	require.NoError(t, err)
	require.Equal(t, parts, got)

	// Replacing with fewer partitions must not leave a stale tail behind.
	require.NoError(t, s.PutIndexPartitions("embedding", parts[:1]))
	got, err = s.LoadIndexPartitions("embedding")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestStoreLoadIndexPartitionsEmptyIsNotError(t *testing.T) {
	s := openTestStore(t)
	got, err := s.LoadIndexPartitions("nonexistent")
	require.NoError(t, err)
	require.Empty(t, got)
}
