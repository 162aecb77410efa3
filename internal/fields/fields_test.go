package fields

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vortexdb/vortexdb/internal/storekv"
)

func vecFields() []storekv.VectorFieldMeta {
	return []storekv.VectorFieldMeta{
		{Name: "a", Dim: 2, NumCentroids: 2},
		{Name: "b", Dim: 3, NumCentroids: 0},
	}
}

func TestNewCreatesOneIndexPerField(t *testing.T) {
	m, err := New(vecFields())
	require.NoError(t, err)

	idxA, err := m.Index("a")
	require.NoError(t, err)
	require.Equal(t, 2, idxA.Dim())
	require.Equal(t, 2, idxA.Nlist())

	idxB, err := m.Index("b")
	require.NoError(t, err)
	require.Equal(t, 0, idxB.Nlist())

	_, err = m.Index("missing")
	require.Error(t, err)
}

func TestPutRoutesAndMarksDirty(t *testing.T) {
	m, err := New(vecFields())
	require.NoError(t, err)
	require.NoError(t, m.SetCentroids("a", [][]float32{{0, 0}, {10, 10}}))

	require.NoError(t, m.Put("a", 1, []float32{0.1, 0.1}))
	idxA, _ := m.Index("a")
	require.Equal(t, 1, idxA.Size())
	require.True(t, m.fields["a"].dirty)

	require.Error(t, m.Put("missing", 1, []float32{0, 0}))
}

func TestDeleteRemovesFromEveryField(t *testing.T) {
	m, err := New(vecFields())
	require.NoError(t, err)
	require.NoError(t, m.SetCentroids("a", [][]float32{{0, 0}, {10, 10}}))
	require.NoError(t, m.Put("a", 5, []float32{0, 0}))

	m.Delete(5)
	idxA, _ := m.Index("a")
	require.Equal(t, 0, idxA.Size())
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	eng, err := storekv.Open(t.TempDir())
	require.NoError(t, err)
	defer eng.Close()
	store := storekv.NewStore(eng)

	m, err := New(vecFields())
	require.NoError(t, err)
	require.NoError(t, m.SetCentroids("a", [][]float32{{0, 0}, {10, 10}}))
	require.NoError(t, m.Put("a", 1, []float32{0.1, 0.1}))
	require.NoError(t, m.Put("a", 2, []float32{9.9, 9.9}))

	require.NoError(t, m.Persist(store))

	loaded, err := Load(store, vecFields())
	require.NoError(t, err)

	idxA, err := loaded.Index("a")
	require.NoError(t, err)
	require.Equal(t, 2, idxA.Size())
	require.True(t, idxA.HasCentroids())

	idxB, err := loaded.Index("b")
	require.NoError(t, err)
	require.Equal(t, 0, idxB.Size())
}

func TestVerifyIndexOnFreshFieldIsClean(t *testing.T) {
	m, err := New(vecFields())
	require.NoError(t, err)
	require.NoError(t, m.VerifyIndex("a"))
	require.Error(t, m.VerifyIndex("missing"))
}

func TestPersistUntouchedFieldIsNoop(t *testing.T) {
	eng, err := storekv.Open(t.TempDir())
	require.NoError(t, err)
	defer eng.Close()
	store := storekv.NewStore(eng)

	m, err := New(vecFields())
	require.NoError(t, err)
	require.NoError(t, m.Persist(store))

	parts, err := store.LoadIndexPartitions("a")
	require.NoError(t, err)
	require.Empty(t, parts)
}
