// Package vortexdb is an embedded hybrid vector-and-scalar database:
// exact and IVF-Flat approximate nearest-neighbor search, optionally
// combined with scalar predicates, over multi-vector records addressed by
// a 64-bit key.
package vortexdb

import (
	"log"
	"os"

	"github.com/vortexdb/vortexdb/internal/cache"
	"github.com/vortexdb/vortexdb/internal/fields"
	"github.com/vortexdb/vortexdb/internal/search"
	"github.com/vortexdb/vortexdb/internal/storekv"
	"github.com/vortexdb/vortexdb/internal/vdberrors"
)

// DB is the facade (C8): lifecycle, schema management, and dispatch of
// reads/writes across the index, cache and storage layers.
type DB struct {
	opts   Options
	schema *Schema

	store    *storekv.Store
	cache    *cache.Cache
	fieldMgr *fields.Manager
	lock     *instanceLock
}

// Create initializes a fresh database at opts.Dir with the given schema
// and writes the schema to storage. Requires opts.CreateIfMissing == true
// (§4.8).
func Create(opts Options, schema *Schema) (*DB, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if !opts.CreateIfMissing {
		return nil, vdberrors.InvalidArgumentf("vortexdb: Create requires Options.CreateIfMissing")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, vdberrors.IOf(err, "vortexdb: create storage directory %q", opts.Dir)
	}
	lock, err := acquireInstanceLock(opts.Dir)
	if err != nil {
		return nil, err
	}

	store, err := openStore(opts.Dir, lock)
	if err != nil {
		return nil, err
	}
	if has, err := store.HasSchema(); err != nil {
		_ = store.Close()
		_ = lock.release()
		return nil, err
	} else if has {
		_ = store.Close()
		_ = lock.release()
		return nil, vdberrors.AlreadyExistsf("vortexdb: database at %q already initialized, use Open", opts.Dir)
	}
	if err := store.PutSchema(schema.toEnvelope()); err != nil {
		_ = store.Close()
		_ = lock.release()
		return nil, err
	}

	fm, err := fields.New(schema.toEnvelope().VectorFields)
	if err != nil {
		_ = store.Close()
		_ = lock.release()
		return nil, err
	}

	log.Printf("vortexdb: created database at %q (%d vector fields, %d scalar fields)", opts.Dir, len(schema.VectorFields), len(schema.ScalarFields))
	return &DB{
		opts:     opts,
		schema:   schema,
		store:    store,
		cache:    cache.New(store, opts.PrefetchRate),
		fieldMgr: fm,
		lock:     lock,
	}, nil
}

// Open reopens an existing database at opts.Dir, reading its schema,
// reconstructing per-field IVF indexes from their partitioned storage
// keys, and optionally prefetching records. Requires
// opts.CreateIfMissing == false (§4.8); fails if no schema is present.
func Open(opts Options) (*DB, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.CreateIfMissing {
		return nil, vdberrors.InvalidArgumentf("vortexdb: Open requires Options.CreateIfMissing == false")
	}
	lock, err := acquireInstanceLock(opts.Dir)
	if err != nil {
		return nil, err
	}

	store, err := openStore(opts.Dir, lock)
	if err != nil {
		return nil, err
	}
	env, err := store.GetSchema()
	if err != nil {
		_ = store.Close()
		_ = lock.release()
		return nil, vdberrors.CorruptionWrap(err, "vortexdb: open %q: schema absent or unreadable", opts.Dir)
	}
	schema, err := schemaFromEnvelope(env)
	if err != nil {
		_ = store.Close()
		_ = lock.release()
		return nil, err
	}
	fm, err := fields.Load(store, env.VectorFields)
	if err != nil {
		_ = store.Close()
		_ = lock.release()
		return nil, err
	}

	c := cache.New(store, opts.PrefetchRate)
	if opts.PrefetchOnOpen > 0 {
		if err := c.PrefetchRecords(opts.PrefetchOnOpen); err != nil {
			_ = store.Close()
			_ = lock.release()
			return nil, err
		}
	}

	log.Printf("vortexdb: opened database at %q", opts.Dir)
	return &DB{
		opts:     opts,
		schema:   schema,
		store:    store,
		cache:    c,
		fieldMgr: fm,
		lock:     lock,
	}, nil
}

func openStore(dir string, lock *instanceLock) (*storekv.Store, error) {
	eng, err := storekv.Open(dir)
	if err != nil {
		_ = lock.release()
		return nil, err
	}
	return storekv.NewStore(eng), nil
}

// Close flushes dirty records, writes dirty indexes back to storage,
// closes the underlying store and releases the instance lock (§4.8).
func (db *DB) Close() error {
	if err := db.cache.FlushRecords(); err != nil {
		return err
	}
	if err := db.fieldMgr.Persist(db.store); err != nil {
		return err
	}
	if err := db.store.Close(); err != nil {
		return err
	}
	return db.lock.release()
}

// Schema returns the database's schema.
func (db *DB) Schema() *Schema { return db.schema }

// PutRecord validates r against the schema, writes it into the cache
// (write-back; not yet durable until FlushRecords or Close) and routes
// its vectors into each field's IVF index. Overwrites an existing key
// (§9's open question: the persistent path mandates overwrite).
func (db *DB) PutRecord(k Key, r Record) error {
	r.ID = k
	if err := validateRecord(db.schema, r); err != nil {
		return err
	}
	db.cache.PutRecord(k, r)
	for i, vf := range db.schema.VectorFields {
		if vf.NumCentroids == 0 {
			continue
		}
		if err := db.fieldMgr.Put(vf.Name, k, r.Vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

// PutRecords is a convenience loop over PutRecord (SPEC_FULL supplemental
// feature 2): not a new durability guarantee, just fewer call sites.
func (db *DB) PutRecords(records []Record) error {
	for _, r := range records {
		if err := db.PutRecord(r.ID, r); err != nil {
			return err
		}
	}
	return nil
}

// GetRecord serves k from the cache on hit, falling back to storage on
// miss without populating the cache (§4.4).
func (db *DB) GetRecord(k Key) (Record, error) {
	return db.cache.GetRecord(k)
}

// DeleteRecord evicts k from the cache, deletes it from storage
// (write-through), and removes it from every field's IVF index.
func (db *DB) DeleteRecord(k Key) error {
	if err := db.cache.DeleteRecord(k); err != nil {
		return err
	}
	db.fieldMgr.Delete(k)
	return nil
}

// DeleteRecords is a convenience loop over DeleteRecord.
func (db *DB) DeleteRecords(keys []Key) error {
	for _, k := range keys {
		if err := db.DeleteRecord(k); err != nil {
			return err
		}
	}
	return nil
}

// FlushRecords writes every dirty cached record back to storage and
// clears the cache and the dirty set (§4.4).
func (db *DB) FlushRecords() error {
	return db.cache.FlushRecords()
}

// SetCentroids installs the centroid set for field, routing subsequent
// Put calls on that field to the nearest cluster (§4.2).
func (db *DB) SetCentroids(field string, centroids [][]float32) error {
	return db.fieldMgr.SetCentroids(field, centroids)
}

// FullScan runs C6: exact top-k by prefix-iterating records in storage.
func (db *DB) FullScan(q Query) ([]QueryResult, error) {
	return search.FullScan(db.store, db.schema, q)
}

// KnnSearch runs the default ANN search (§4.7.2/§4.7.3).
func (db *DB) KnnSearch(q Query, nprobe int) ([]QueryResult, error) {
	return search.KnnSearch(db.fieldMgr, db.cache, db.schema, q, nprobe, db.opts.SearchWorkers)
}

// KnnSearchIterativeMerge runs the iterative-merge ANN variant (§4.7.4).
func (db *DB) KnnSearchIterativeMerge(q Query, nprobe, kThreshold int) ([]QueryResult, error) {
	return search.KnnSearchIterativeMerge(db.fieldMgr, db.cache, db.schema, q, nprobe, kThreshold)
}

// KnnSearchVBase runs the VBase ANN variant (§4.7.5).
func (db *DB) KnnSearchVBase(q Query, nprobe, n2 int) ([]QueryResult, error) {
	return search.KnnSearchVBase(db.fieldMgr, db.cache, db.schema, q, nprobe, n2)
}

// CountFiltered applies filters over a full scan without computing
// distances, for cardinality checks before an expensive ANN query.
func (db *DB) CountFiltered(filters []Filter) (int, error) {
	return search.CountFiltered(db.store, db.schema, filters)
}

// VerifyIndex walks field's IVF index and confirms every key maps to at
// most one list and every vector has the declared dim, returning a
// Corruption error on violation.
func (db *DB) VerifyIndex(field string) error {
	return db.fieldMgr.VerifyIndex(field)
}

// Stats reports record count, per-field inverted-list population and
// cache hit/miss counters.
type Stats struct {
	RecordCount int
	CacheHits   uint64
	CacheMisses uint64
	FieldSizes  map[string]int
}

// Stats implements the DB facade's observability surface (SPEC_FULL
// supplemental feature 1).
func (db *DB) Stats() (Stats, error) {
	n, err := db.store.CountRecords()
	if err != nil {
		return Stats{}, err
	}
	cs := db.cache.Stats()
	sizes := make(map[string]int, len(db.schema.VectorFields))
	for _, name := range db.fieldMgr.Names() {
		idx, err := db.fieldMgr.Index(name)
		if err != nil {
			continue
		}
		sizes[name] = idx.Size()
	}
	return Stats{RecordCount: n, CacheHits: cs.Hits, CacheMisses: cs.Misses, FieldSizes: sizes}, nil
}
