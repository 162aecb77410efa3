package vortexdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSchema(t *testing.T, vf []VectorField, sf []ScalarField) *Schema {
	t.Helper()
	s, err := NewSchema(vf, sf)
	require.NoError(t, err)
	return s
}

func createTestDB(t *testing.T, schema *Schema) *DB {
	t.Helper()
	opts := DefaultOptions(t.TempDir())
	opts.CreateIfMissing = true
	db, err := Create(opts, schema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreateRejectsOpenOptions(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	opts.CreateIfMissing = false
	_, err := Create(opts, mustSchema(t, nil, nil))
	assert.Error(t, err)
}

func TestOpenRejectsCreateOptions(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	opts.CreateIfMissing = true
	_, err := Open(opts)
	assert.Error(t, err)
}

func TestScalarRoundTrip(t *testing.T) {
	schema := mustSchema(t, nil, []ScalarField{{Name: "tag", Type: ScalarInt}})
	db := createTestDB(t, schema)

	rec := Record{ID: 1, Scalars: []Scalar{{Tag: ScalarInt, I: 42}}}
	require.NoError(t, db.PutRecord(1, rec))

	got, err := db.GetRecord(1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Scalars[0].I)
}

func TestPutRecordRejectsSchemaMismatch(t *testing.T) {
	schema := mustSchema(t, []VectorField{{Name: "v", Dim: 3, NumCentroids: 0}}, nil)
	db := createTestDB(t, schema)

	err := db.PutRecord(1, Record{Vectors: [][]float32{{1, 2}}})
	assert.Error(t, err)
}

func TestSingleVectorKnnMatchesFullScan(t *testing.T) {
	schema := mustSchema(t, []VectorField{{Name: "v", Dim: 2, NumCentroids: 2}}, nil)
	db := createTestDB(t, schema)

	require.NoError(t, db.SetCentroids("v", [][]float32{{0, 0}, {10, 10}}))
	pts := [][]float32{{0, 1}, {1, 0}, {1, 1}, {9, 9}, {10, 9}, {11, 11}}
	for i, p := range pts {
		require.NoError(t, db.PutRecord(uint64(i+1), Record{Vectors: [][]float32{p}}))
	}

	q := NewQuery(3).WithVector("v", []float32{0, 0}, 1.0).Build()

	require.NoError(t, db.FlushRecords())
	full, err := db.FullScan(q)
	require.NoError(t, err)
	knn, err := db.KnnSearch(q, 2)
	require.NoError(t, err)

	require.Len(t, full, 3)
	require.Len(t, knn, 3)
	for i := range full {
		assert.Equal(t, full[i].ID, knn[i].ID)
	}
}

func TestFilteredSingleVectorSearch(t *testing.T) {
	schema := mustSchema(t,
		[]VectorField{{Name: "v", Dim: 2, NumCentroids: 2}},
		[]ScalarField{{Name: "active", Type: ScalarInt}})
	db := createTestDB(t, schema)

	require.NoError(t, db.SetCentroids("v", [][]float32{{0, 0}, {10, 10}}))
	for i := 0; i < 6; i++ {
		active := int64(0)
		if i%2 == 0 {
			active = 1
		}
		require.NoError(t, db.PutRecord(uint64(i+1), Record{
			Vectors: [][]float32{{float32(i), float32(i)}},
			Scalars: []Scalar{{Tag: ScalarInt, I: active}},
		}))
	}

	q := NewQuery(10).
		WithVector("v", []float32{0, 0}, 1.0).
		WithFilter("active", Eq, Scalar{Tag: ScalarInt, I: 1}).
		Build()

	results, err := db.KnnSearch(q, 2)
	require.NoError(t, err)
	for _, r := range results {
		rec, err := db.GetRecord(r.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Scalars[0].I)
	}
}

func TestFullScanMultiVectorWeights(t *testing.T) {
	schema := mustSchema(t, []VectorField{
		{Name: "a", Dim: 1, NumCentroids: 0},
		{Name: "b", Dim: 1, NumCentroids: 0},
	}, nil)
	db := createTestDB(t, schema)

	require.NoError(t, db.PutRecord(1, Record{Vectors: [][]float32{{0}, {10}}}))
	require.NoError(t, db.PutRecord(2, Record{Vectors: [][]float32{{10}, {0}}}))

	q := NewQuery(2).
		WithVector("a", []float32{0}, 1.0).
		WithVector("b", []float32{0}, 100.0).
		Build()

	require.NoError(t, db.FlushRecords())
	results, err := db.FullScan(q)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, uint64(2), results[0].ID)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	schema := mustSchema(t, []VectorField{{Name: "v", Dim: 2, NumCentroids: 2}}, nil)

	opts := DefaultOptions(dir)
	opts.CreateIfMissing = true
	db, err := Create(opts, schema)
	require.NoError(t, err)

	require.NoError(t, db.SetCentroids("v", [][]float32{{0, 0}, {10, 10}}))
	for i := 0; i < 4; i++ {
		require.NoError(t, db.PutRecord(uint64(i+1), Record{Vectors: [][]float32{{float32(i), float32(i)}}}))
	}
	require.NoError(t, db.Close())

	opts2 := DefaultOptions(dir)
	opts2.CreateIfMissing = false
	reopened, err := Open(opts2)
	require.NoError(t, err)
	defer reopened.Close()

	stats, err := reopened.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.RecordCount)
	assert.Equal(t, 4, stats.FieldSizes["v"])

	got, err := reopened.GetRecord(1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, got.Vectors[0])
}

func TestMultiVectorTAMatchesFullScanWithFullProbe(t *testing.T) {
	schema := mustSchema(t, []VectorField{
		{Name: "a", Dim: 2, NumCentroids: 2},
		{Name: "b", Dim: 2, NumCentroids: 2},
	}, nil)
	db := createTestDB(t, schema)

	require.NoError(t, db.SetCentroids("a", [][]float32{{0, 0}, {10, 10}}))
	require.NoError(t, db.SetCentroids("b", [][]float32{{0, 0}, {10, 10}}))

	for i := 0; i < 8; i++ {
		v := float32(i)
		require.NoError(t, db.PutRecord(uint64(i+1), Record{Vectors: [][]float32{{v, v}, {10 - v, 10 - v}}}))
	}

	q := NewQuery(4).
		WithVector("a", []float32{0, 0}, 1.0).
		WithVector("b", []float32{0, 0}, 1.0).
		Build()

	require.NoError(t, db.FlushRecords())
	full, err := db.FullScan(q)
	require.NoError(t, err)
	ta, err := db.KnnSearch(q, 2)
	require.NoError(t, err)

	require.Len(t, full, 4)
	require.Len(t, ta, 4)
	for i := range full {
		assert.Equal(t, full[i].ID, ta[i].ID)
	}
}

func TestDeleteRecordRemovesFromIndexAndStorage(t *testing.T) {
	schema := mustSchema(t, []VectorField{{Name: "v", Dim: 2, NumCentroids: 2}}, nil)
	db := createTestDB(t, schema)

	require.NoError(t, db.SetCentroids("v", [][]float32{{0, 0}, {10, 10}}))
	require.NoError(t, db.PutRecord(1, Record{Vectors: [][]float32{{0, 0}}}))
	require.NoError(t, db.DeleteRecord(1))

	_, err := db.GetRecord(1)
	assert.Error(t, err)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FieldSizes["v"])
}

func TestVerifyIndexOnPopulatedField(t *testing.T) {
	schema := mustSchema(t, []VectorField{{Name: "v", Dim: 2, NumCentroids: 2}}, nil)
	db := createTestDB(t, schema)

	require.NoError(t, db.SetCentroids("v", [][]float32{{0, 0}, {10, 10}}))
	require.NoError(t, db.PutRecord(1, Record{Vectors: [][]float32{{0, 0}}}))

	assert.NoError(t, db.VerifyIndex("v"))
}

func TestCountFilteredWithoutDistances(t *testing.T) {
	schema := mustSchema(t, nil, []ScalarField{{Name: "tag", Type: ScalarInt}})
	db := createTestDB(t, schema)

	for i := 0; i < 5; i++ {
		tag := int64(0)
		if i < 2 {
			tag = 1
		}
		require.NoError(t, db.PutRecord(uint64(i+1), Record{Scalars: []Scalar{{Tag: ScalarInt, I: tag}}}))
	}
	require.NoError(t, db.FlushRecords())

	n, err := db.CountFiltered([]Filter{{Field: "tag", Op: Eq, Value: Scalar{Tag: ScalarInt, I: 1}}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPutRecordsAndDeleteRecordsBatch(t *testing.T) {
	schema := mustSchema(t, []VectorField{{Name: "v", Dim: 1, NumCentroids: 0}}, nil)
	db := createTestDB(t, schema)

	recs := []Record{
		{ID: 1, Vectors: [][]float32{{1}}},
		{ID: 2, Vectors: [][]float32{{2}}},
	}
	require.NoError(t, db.PutRecords(recs))
	require.NoError(t, db.FlushRecords())

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RecordCount)

	require.NoError(t, db.DeleteRecords([]Key{1, 2}))
	stats, err = db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.RecordCount)
}
