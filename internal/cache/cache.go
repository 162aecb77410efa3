// Package cache implements the write-back record cache (§4.4) sitting in
// front of storekv: reads are served from memory when possible, writes
// accumulate in a dirty set and only reach storage on FlushRecords.
package cache

import (
	"context"
	"log"
	"sync"

	"golang.org/x/time/rate"

	"github.com/vortexdb/vortexdb/internal/storekv"
	"github.com/vortexdb/vortexdb/internal/vdberrors"
)

// Cache assumes single-threaded writers (§5): PutRecord/DeleteRecord must
// not run concurrently with a search or with each other. It may be read
// concurrently from search workers while no writer is active.
type Cache struct {
	store *storekv.Store

	mu      sync.RWMutex
	records map[uint64]storekv.RecordEnvelope
	dirty   map[uint64]bool

	hits   uint64
	misses uint64

	limiter *rate.Limiter
}

// New wraps store. prefetchRate bounds PrefetchRecords' read rate against
// store, in records per second; a zero or negative value disables limiting.
func New(store *storekv.Store, prefetchRate float64) *Cache {
	var lim *rate.Limiter
	if prefetchRate > 0 {
		lim = rate.NewLimiter(rate.Limit(prefetchRate), 1)
	}
	return &Cache{
		store:   store,
		records: make(map[uint64]storekv.RecordEnvelope),
		dirty:   make(map[uint64]bool),
		limiter: lim,
	}
}

// PutRecord inserts r into the cache under key k and marks k dirty. Storage
// is not touched until FlushRecords.
func (c *Cache) PutRecord(k uint64, r storekv.RecordEnvelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[k] = r
	c.dirty[k] = true
}

// GetRecord serves k from the cache on hit. On miss it loads from storage
// without populating the cache — PrefetchRecords is the only backfill path
// (§4.4).
func (c *Cache) GetRecord(k uint64) (storekv.RecordEnvelope, error) {
	c.mu.RLock()
	r, ok := c.records[k]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return r, nil
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()

	r, err := c.store.GetRecord(k)
	if err != nil {
		return storekv.RecordEnvelope{}, err
	}
	return r, nil
}

// DeleteRecord evicts k from the cache and deletes it from storage
// (write-through).
func (c *Cache) DeleteRecord(k uint64) error {
	c.mu.Lock()
	delete(c.records, k)
	delete(c.dirty, k)
	c.mu.Unlock()
	return c.store.DeleteRecord(k)
}

// PrefetchRecords loads up to n records from storage that are not already
// cached, in ascending key order, rate-limited by the limiter passed to
// New. n <= 0 means unbounded (§4.4: "bounded by n conceptually; the
// current design is permissive").
func (c *Cache) PrefetchRecords(n int) error {
	loaded := 0
	err := c.store.IterateRecords(func(r storekv.RecordEnvelope) error {
		if n > 0 && loaded >= n {
			return errStopIteration
		}
		c.mu.RLock()
		_, already := c.records[r.ID]
		c.mu.RUnlock()
		if already {
			return nil
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(context.Background()); err != nil {
				return err
			}
		}
		c.mu.Lock()
		c.records[r.ID] = r
		c.mu.Unlock()
		loaded++
		return nil
	})
	if err == errStopIteration {
		err = nil
	}
	if err != nil {
		return err
	}
	log.Printf("cache: prefetched %d records", loaded)
	return nil
}

var errStopIteration = vdberrors.InvalidArgumentf("cache: internal prefetch stop sentinel")

// FlushRecords writes every dirty record back to storage, then clears the
// cache and the dirty set. If a write fails, the records not yet written
// stay cached and dirty.
func (c *Cache) FlushRecords() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.dirty {
		if r, ok := c.records[k]; ok {
			if err := c.store.PutRecord(r); err != nil {
				return vdberrors.IOf(err, "cache: flush record %d", k)
			}
		}
		delete(c.dirty, k)
	}
	c.records = make(map[uint64]storekv.RecordEnvelope)
	return nil
}

// Stats returns the cache's hit/miss counters (§5's "Stats()" exposes
// these on the DB facade).
type Stats struct {
	Hits   uint64
	Misses uint64
	Size   int
	Dirty  int
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.records), Dirty: len(c.dirty)}
}
