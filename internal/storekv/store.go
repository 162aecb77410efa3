package storekv

import (
	"sort"

	"github.com/vortexdb/vortexdb/internal/vdberrors"
)

// Store layers the schema/record/index-partition envelopes over a raw
// Engine, owning the key layout (keys.go) and the codec choice (compress.go)
// so callers never see either.
type Store struct {
	engine Engine
}

// NewStore wraps engine. Store takes no ownership beyond what Close does:
// closing the Store closes the underlying engine.
func NewStore(engine Engine) *Store {
	return &Store{engine: engine}
}

// Close closes the underlying engine.
func (s *Store) Close() error { return s.engine.Close() }

// PutSchema writes the schema singleton, overwriting any prior value.
func (s *Store) PutSchema(schema SchemaEnvelope) error {
	return s.engine.Put(SchemaKey(), EncodeSchema(schema))
}

// GetSchema reads the schema singleton. Returns vdberrors.ErrNotFound if no
// schema has been written yet (a fresh, uninitialized database).
func (s *Store) GetSchema() (SchemaEnvelope, error) {
	raw, err := s.engine.Get(SchemaKey())
	if err != nil {
		return SchemaEnvelope{}, err
	}
	return DecodeSchema(raw)
}

// PutRecord writes (or overwrites) one record.
func (s *Store) PutRecord(r RecordEnvelope) error {
	raw, err := EncodeRecord(r)
	if err != nil {
		return err
	}
	return s.engine.Put(RecordKey(r.ID), raw)
}

// GetRecord reads one record by key, returning vdberrors.ErrNotFound if
// absent.
func (s *Store) GetRecord(key uint64) (RecordEnvelope, error) {
	raw, err := s.engine.Get(RecordKey(key))
	if err != nil {
		return RecordEnvelope{}, err
	}
	return DecodeRecord(raw)
}

// DeleteRecord removes one record by key. Idempotent: deleting an absent
// key is not an error, mirroring Engine.Delete's contract.
func (s *Store) DeleteRecord(key uint64) error {
	return s.engine.Delete(RecordKey(key))
}

// IterateRecords calls fn with every stored record in ascending key order,
// stopping at the first error fn returns (which IterateRecords then
// returns). Used for full scan (C6) and cache prefetch (C4).
func (s *Store) IterateRecords(fn func(RecordEnvelope) error) error {
	it, err := s.engine.Iterator(RecordsPrefix())
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Valid() {
		rec, err := DecodeRecord(it.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		it.Next()
	}
	return nil
}

// CountRecords returns the number of stored records, by walking the record
// key space. Used by Stats().
func (s *Store) CountRecords() (int, error) {
	it, err := s.engine.Iterator(RecordsPrefix())
	if err != nil {
		return 0, err
	}
	defer it.Close()
	n := 0
	for it.Valid() {
		n++
		it.Next()
	}
	return n, nil
}

// PutIndexPartitions replaces every stored partition of field's index with
// the given partitions, in order (partition i is stored under index i).
// Callers are expected to have already split the field's centroids/lists
// according to PartitionPlan/PartitionBounds.
func (s *Store) PutIndexPartitions(field string, partitions []IndexPartitionEnvelope) error {
	if err := s.DeleteIndexPartitions(field); err != nil {
		return err
	}
	for i, p := range partitions {
		raw, err := EncodeIndexPartition(p)
		if err != nil {
			return err
		}
		if err := s.engine.Put(IndexPartitionKey(field, i), raw); err != nil {
			return err
		}
	}
	return nil
}

// LoadIndexPartitions reads every stored partition of field's index, in
// ascending partition order. Returns an empty, non-error slice if field has
// no persisted index yet.
func (s *Store) LoadIndexPartitions(field string) ([]IndexPartitionEnvelope, error) {
	it, err := s.engine.Iterator(IndexFieldPrefix(field))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []IndexPartitionEnvelope
	for it.Valid() {
		p, err := DecodeIndexPartition(it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		it.Next()
	}
	// Keys sort as decimal strings ("i:f:10" before "i:f:2"), so order by
	// each partition's first centroid instead.
	sort.Slice(out, func(i, j int) bool { return out[i].CentroidStart < out[j].CentroidStart })
	return out, nil
}

// DeleteIndexPartitions removes every stored partition of field's index.
// Used before PutIndexPartitions writes a fresh set, so a shrinking
// partition count never leaves a stale tail partition behind.
func (s *Store) DeleteIndexPartitions(field string) error {
	it, err := s.engine.Iterator(IndexFieldPrefix(field))
	if err != nil {
		return err
	}
	var keys [][]byte
	for it.Valid() {
		keys = append(keys, append([]byte(nil), it.Key()...))
		it.Next()
	}
	it.Close()
	for _, k := range keys {
		if err := s.engine.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// HasSchema reports whether a schema has ever been written.
func (s *Store) HasSchema() (bool, error) {
	_, err := s.GetSchema()
	if err == nil {
		return true, nil
	}
	if kind, ok := vdberrors.KindOf(err); ok && kind == vdberrors.NotFound {
		return false, nil
	}
	return false, err
}
