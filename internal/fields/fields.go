// Package fields manages the per-vector-field IVF-Flat index lifecycle:
// construction from schema, loading from partitioned storage, routing
// Put/Delete to the right field's index, and persisting only the indexes
// marked dirty — one IVF index per named vector field, sharing a single
// storage directory.
package fields

import (
	"log"
	"sync"

	"github.com/vortexdb/vortexdb/internal/ivf"
	"github.com/vortexdb/vortexdb/internal/storekv"
	"github.com/vortexdb/vortexdb/internal/vdberrors"
)

type entry struct {
	index *ivf.Index
	dirty bool
}

// Manager owns one ivf.Index per vector field declared in the schema.
type Manager struct {
	mu     sync.RWMutex
	fields map[string]*entry
	order  []string // schema declaration order, for deterministic iteration
}

// New constructs a Manager with one fresh, empty ivf.Index per
// (name, dim, numCentroids) triple, in declaration order. Used on DB
// creation, before any metadata has been persisted.
func New(vectorFields []storekv.VectorFieldMeta) (*Manager, error) {
	m := &Manager{fields: make(map[string]*entry)}
	for _, vf := range vectorFields {
		idx, err := ivf.New(int(vf.Dim), int(vf.NumCentroids))
		if err != nil {
			return nil, vdberrors.InvalidArgumentf("fields: field %q: %v", vf.Name, err)
		}
		m.fields[vf.Name] = &entry{index: idx}
		m.order = append(m.order, vf.Name)
	}
	return m, nil
}

// Load reconstructs a Manager from schema metadata plus whatever
// partitions are already persisted in store, one field at a time. A field
// with no persisted partitions yet starts as a fresh, centroid-less index
// (the schema declares it, but SetCentroids/Put never ran before close).
func Load(store *storekv.Store, vectorFields []storekv.VectorFieldMeta) (*Manager, error) {
	m := &Manager{fields: make(map[string]*entry)}
	for _, vf := range vectorFields {
		idx, err := ivf.New(int(vf.Dim), int(vf.NumCentroids))
		if err != nil {
			return nil, vdberrors.InvalidArgumentf("fields: field %q: %v", vf.Name, err)
		}
		parts, err := store.LoadIndexPartitions(vf.Name)
		if err != nil {
			return nil, vdberrors.IOf(err, "fields: load partitions for %q", vf.Name)
		}
		if len(parts) > 0 {
			if err := mergePartitionsInto(idx, parts); err != nil {
				return nil, err
			}
			log.Printf("fields: loaded field %q (%d partitions, %d entries)", vf.Name, len(parts), idx.Size())
		}
		m.fields[vf.Name] = &entry{index: idx}
		m.order = append(m.order, vf.Name)
	}
	return m, nil
}

// mergePartitionsInto reassembles one field's full centroid set and
// inverted lists from its stored partitions (ordered by CentroidStart) and
// installs them into idx.
func mergePartitionsInto(idx *ivf.Index, parts []storekv.IndexPartitionEnvelope) error {
	nlist := idx.Nlist()
	centroids := make([][]float32, nlist)
	lists := make([][]ivf.Entry, nlist)
	for _, p := range parts {
		for i, c := range p.Centroids {
			ci := p.CentroidStart + i
			if ci >= nlist {
				return vdberrors.Corruptionf("fields: field %q partition centroid index %d out of range [0,%d)", p.FieldName, ci, nlist)
			}
			centroids[ci] = c
			for _, e := range p.Lists[i] {
				lists[ci] = append(lists[ci], ivf.Entry{Key: e.Key, Vector: e.Vector})
			}
		}
	}
	if err := idx.SetCentroids(centroids); err != nil {
		return vdberrors.CorruptionWrap(err, "fields: reassembled centroid set invalid")
	}
	for ci, lst := range lists {
		for _, e := range lst {
			if err := idx.Put(e.Key, e.Vector); err != nil {
				return vdberrors.CorruptionWrap(err, "fields: reinsert key %d into cluster %d", e.Key, ci)
			}
		}
	}
	return nil
}

// Index returns the ivf.Index for field, or an InvalidArgument error if no
// such vector field was declared in the schema.
func (m *Manager) Index(field string) (*ivf.Index, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.fields[field]
	if !ok {
		return nil, vdberrors.InvalidArgumentf("fields: unknown vector field %q", field)
	}
	return e.index, nil
}

// SetCentroids installs centroids for field and marks it dirty.
func (m *Manager) SetCentroids(field string, centroids [][]float32) error {
	m.mu.Lock()
	e, ok := m.fields[field]
	m.mu.Unlock()
	if !ok {
		return vdberrors.InvalidArgumentf("fields: unknown vector field %q", field)
	}
	if err := e.index.SetCentroids(centroids); err != nil {
		return err
	}
	m.mu.Lock()
	e.dirty = true
	m.mu.Unlock()
	return nil
}

// Put routes (k, v) into field's index and marks the field dirty.
func (m *Manager) Put(field string, k uint64, v []float32) error {
	m.mu.RLock()
	e, ok := m.fields[field]
	m.mu.RUnlock()
	if !ok {
		return vdberrors.InvalidArgumentf("fields: unknown vector field %q", field)
	}
	if err := e.index.Put(k, v); err != nil {
		return err
	}
	m.mu.Lock()
	e.dirty = true
	m.mu.Unlock()
	return nil
}

// Delete removes k from every field's index that currently holds it,
// marking each affected field dirty. A record with vectors in multiple
// fields needs its key removed from all of them on DeleteRecord.
func (m *Manager) Delete(k uint64) {
	m.mu.RLock()
	fs := make([]*entry, 0, len(m.fields))
	for _, e := range m.fields {
		fs = append(fs, e)
	}
	m.mu.RUnlock()
	for _, e := range fs {
		before := e.index.Size()
		e.index.Delete(k)
		if e.index.Size() != before {
			m.mu.Lock()
			e.dirty = true
			m.mu.Unlock()
		}
	}
}

// VerifyIndex runs ivf.Index.VerifyConsistency for field (§5 of
// SPEC_FULL's supplemental features: a consistency check exposed on the DB
// facade).
func (m *Manager) VerifyIndex(field string) error {
	idx, err := m.Index(field)
	if err != nil {
		return err
	}
	return idx.VerifyConsistency()
}

// Persist writes every dirty field's index to store as partitioned
// envelopes, per §6's partitioning scheme, and clears the dirty flag on
// success. Fields that were never marked dirty are left untouched on disk.
func (m *Manager) Persist(store *storekv.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, e := range m.fields {
		if !e.dirty {
			continue
		}
		if err := persistField(store, name, e.index); err != nil {
			return vdberrors.IOf(err, "fields: persist field %q", name)
		}
		e.dirty = false
		log.Printf("fields: persisted field %q (%d entries)", name, e.index.Size())
	}
	return nil
}

func persistField(store *storekv.Store, name string, idx *ivf.Index) error {
	nlist := idx.Nlist()
	dim := idx.Dim()
	if nlist == 0 {
		return store.DeleteIndexPartitions(name)
	}

	numPartitions, partitionSize := storekv.PartitionPlan(nlist, dim)
	centroids := idx.Centroids()

	parts := make([]storekv.IndexPartitionEnvelope, numPartitions)
	for p := 0; p < numPartitions; p++ {
		start, end := storekv.PartitionBounds(nlist, numPartitions, partitionSize, p)
		pc := make([][]float32, 0, end-start)
		plists := make([][]storekv.IvfListEntryWire, 0, end-start)
		for ci := start; ci < end; ci++ {
			pc = append(pc, centroids[ci])
			wire := make([]storekv.IvfListEntryWire, 0)
			for _, e := range idx.ListEntries(ci) {
				wire = append(wire, storekv.IvfListEntryWire{Key: e.Key, Vector: e.Vector})
			}
			plists = append(plists, wire)
		}
		parts[p] = storekv.IndexPartitionEnvelope{
			FieldName:     name,
			Dim:           uint64(dim),
			Nlist:         uint64(nlist),
			CentroidStart: start,
			Centroids:     pc,
			Lists:         plists,
		}
	}
	return store.PutIndexPartitions(name, parts)
}

// Names returns the declared vector field names in schema order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}
