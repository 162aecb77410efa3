package search

import (
	"golang.org/x/sync/errgroup"

	"github.com/vortexdb/vortexdb/internal/cache"
	"github.com/vortexdb/vortexdb/internal/distance"
	"github.com/vortexdb/vortexdb/internal/fields"
	"github.com/vortexdb/vortexdb/internal/ivf"
	"github.com/vortexdb/vortexdb/internal/vdberrors"
)

// KnnSearch is the default multi-vector KNN (C7 §4.7.2/§4.7.3): a single
// query vector against a field with centroids takes the element-mode fast
// path, otherwise the cluster-mode Threshold-Algorithm fusion loop runs.
// workers bounds the per-cluster fan-out (<= 0 means unbounded).
func KnnSearch(fm *fields.Manager, c *cache.Cache, resolver Resolver, q Query, nprobe, workers int) ([]QueryResult, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	if len(q.Vectors) == 0 {
		return nil, vdberrors.InvalidArgumentf("search: knn search requires at least one query vector")
	}
	if len(q.Vectors) == 1 {
		idx, err := fm.Index(q.Vectors[0].Field)
		if err != nil {
			return nil, err
		}
		if idx.Nlist() > 0 {
			return singleVectorFastPath(idx, c, resolver, q, nprobe)
		}
	}
	return defaultTA(fm, c, resolver, q, nprobe, workers)
}

// singleVectorFastPath implements §4.7.3: element-mode iteration needs no
// visited set because the iterator visits each stored entry at most once.
func singleVectorFastPath(idx *ivf.Index, c *cache.Cache, resolver Resolver, q Query, nprobe int) ([]QueryResult, error) {
	qv := q.Vectors[0]
	it := ivf.NewIterator(idx, qv.Target, nprobe)
	it.Seek()

	h := NewTopKHeap(q.Limit)
	for it.Valid() {
		key := it.GetKey()
		rec, err := c.GetRecord(key)
		if err != nil {
			return nil, err
		}
		if len(q.Filters) > 0 {
			ok, err := applyFilters(resolver, rec, q.Filters)
			if err != nil {
				return nil, err
			}
			if !ok {
				it.Next()
				continue
			}
		}
		d := qv.Weight * float64(it.GetDistance())
		h.Offer(key, d)
		it.Next()
	}
	return h.Drain(), nil
}

// defaultTA drives one cluster-mode iterator per query field and runs the
// Threshold-Algorithm fusion loop of §4.7.2.
func defaultTA(fm *fields.Manager, c *cache.Cache, resolver Resolver, q Query, nprobe, workers int) ([]QueryResult, error) {
	iterators := make([]*ivf.Iterator, len(q.Vectors))
	lastSeen := make([]*LastSeenDistance, len(q.Vectors))
	for i, qv := range q.Vectors {
		idx, err := fm.Index(qv.Field)
		if err != nil {
			return nil, err
		}
		if idx.Nlist() == 0 {
			return nil, vdberrors.InvalidArgumentf("search: field %q has no IVF index (nlist=0), cannot drive ANN search", qv.Field)
		}
		it := ivf.NewIterator(idx, qv.Target, nprobe)
		it.SeekCluster()
		iterators[i] = it
		lastSeen[i] = NewLastSeenDistance()
	}

	visited := NewVisitedSet()
	h := NewTopKHeap(q.Limit)
	exhausted := make([]bool, len(iterators))

	for {
		anyProcessed := false
		for i, it := range iterators {
			if exhausted[i] {
				continue
			}
			if !it.HasNextCluster() {
				exhausted[i] = true
				continue
			}
			cluster := it.GetCluster()
			it.NextCluster()
			anyProcessed = true
			if err := processCluster(resolver, c, q, cluster, q.Vectors[i], visited, lastSeen[i], h, workers); err != nil {
				return nil, err
			}
			if !it.HasNextCluster() {
				exhausted[i] = true
			}
		}

		tau := 0.0
		for i, qv := range q.Vectors {
			tau += qv.Weight * lastSeen[i].Get()
		}
		if top, ok := h.TopDistance(); ok && h.Len() >= q.Limit && tau >= top {
			break
		}
		if allExhausted(exhausted) {
			break
		}
		if !anyProcessed {
			break
		}
	}
	return h.Drain(), nil
}

func allExhausted(exhausted []bool) bool {
	for _, e := range exhausted {
		if !e {
			return false
		}
	}
	return true
}

// processCluster implements step 1 of §4.7.2 for one iterator's current
// cluster, fanning entries out across up to workers goroutines — the
// dominating per-entry cost is FusedDistance, not the fan-out itself
// (§5's rationale for coarse locking).
func processCluster(resolver Resolver, c *cache.Cache, q Query, cluster []ivf.Entry, qv QueryVector, visited *VisitedSet, lsd *LastSeenDistance, h *TopKHeap, workers int) error {
	g := new(errgroup.Group)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, e := range cluster {
		e := e
		g.Go(func() error {
			d := float64(distance.L2Sq(qv.Target, e.Vector))
			lsd.UpdateMin(d)

			if !visited.TryVisit(e.Key) {
				return nil
			}
			rec, err := c.GetRecord(e.Key)
			if err != nil {
				return vdberrors.InvalidArgumentf("search: key %d present in index but missing from storage: %v", e.Key, err)
			}
			if len(q.Filters) > 0 {
				ok, err := applyFilters(resolver, rec, q.Filters)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			D, err := FusedDistance(resolver, q.Vectors, rec)
			if err != nil {
				return err
			}
			h.Offer(e.Key, D)
			return nil
		})
	}
	return g.Wait()
}
