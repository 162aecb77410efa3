package search

import (
	"math"

	"github.com/vortexdb/vortexdb/internal/cache"
	"github.com/vortexdb/vortexdb/internal/distance"
	"github.com/vortexdb/vortexdb/internal/fields"
	"github.com/vortexdb/vortexdb/internal/ivf"
	"github.com/vortexdb/vortexdb/internal/vdberrors"
)

// elementModeTopK takes the first k entries an element-mode iterator over
// idx yields for target (already ascending by distance within the probed
// clusters), without touching the cache or filters.
func elementModeTopK(idx *ivf.Index, target []float32, nprobe, k int) []ivf.Entry {
	it := ivf.NewIterator(idx, target, nprobe)
	it.Seek()
	out := make([]ivf.Entry, 0, k)
	for it.Valid() && len(out) < k {
		out = append(out, ivf.Entry{Key: it.GetKey(), Vector: it.GetVector()})
		it.Next()
	}
	return out
}

// KnnSearchIterativeMerge implements §4.7.4: grow k_cur geometrically,
// union the top-k_cur of every field's single-field search into a
// candidate set, score and fold each new candidate into the global heap,
// and stop once the per-field thresholds' weighted sum dominates the
// heap's current worst member or k_cur saturates at kThreshold.
func KnnSearchIterativeMerge(fm *fields.Manager, c *cache.Cache, resolver Resolver, q Query, nprobe, kThreshold int) ([]QueryResult, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	if len(q.Vectors) == 0 {
		return nil, vdberrors.InvalidArgumentf("search: iterative-merge search requires at least one query vector")
	}

	indices := make([]*ivf.Index, len(q.Vectors))
	threshold := make([]float64, len(q.Vectors))
	for i, qv := range q.Vectors {
		idx, err := fm.Index(qv.Field)
		if err != nil {
			return nil, err
		}
		if idx.Nlist() == 0 {
			return nil, vdberrors.InvalidArgumentf("search: field %q has no IVF index (nlist=0), cannot drive ANN search", qv.Field)
		}
		indices[i] = idx
		threshold[i] = math.Inf(1)
	}

	visited := NewVisitedSet()
	h := NewTopKHeap(q.Limit)
	kCur := q.Limit
	if kCur > kThreshold {
		kCur = kThreshold
	}

	for {
		candidateSet := make(map[uint64]struct{})
		var candidates []ivf.Entry
		for i, qv := range q.Vectors {
			for _, e := range elementModeTopK(indices[i], qv.Target, nprobe, kCur) {
				if _, ok := candidateSet[e.Key]; ok {
					continue
				}
				candidateSet[e.Key] = struct{}{}
				candidates = append(candidates, e)
			}
		}

		for _, e := range candidates {
			if !visited.TryVisit(e.Key) {
				continue
			}
			rec, err := c.GetRecord(e.Key)
			if err != nil {
				return nil, err
			}
			if len(q.Filters) > 0 {
				ok, err := applyFilters(resolver, rec, q.Filters)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			D, err := FusedDistance(resolver, q.Vectors, rec)
			if err != nil {
				return nil, err
			}
			h.Offer(e.Key, D)

			for i, qv := range q.Vectors {
				vi, _ := resolver.VectorIndex(qv.Field)
				d := float64(distance.L2Sq(qv.Target, rec.Vectors[vi]))
				if d < threshold[i] {
					threshold[i] = d
				}
			}
		}

		sum := 0.0
		for i, qv := range q.Vectors {
			sum += qv.Weight * threshold[i]
		}
		if top, ok := h.TopDistance(); ok && h.Len() >= q.Limit && sum >= top {
			break
		}
		if kCur >= kThreshold {
			break
		}
		next := kCur * 2
		if next > kThreshold {
			next = kThreshold
		}
		kCur = next
	}
	return h.Drain(), nil
}
