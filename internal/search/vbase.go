package search

import (
	"math"

	"github.com/vortexdb/vortexdb/internal/cache"
	"github.com/vortexdb/vortexdb/internal/distance"
	"github.com/vortexdb/vortexdb/internal/fields"
	"github.com/vortexdb/vortexdb/internal/ivf"
	"github.com/vortexdb/vortexdb/internal/vdberrors"
)

// kKPerRound is the baseline step count every field receives each round,
// before the adaptive bonus from running per-field averages (§4.7.5).
const kKPerRound = 1

// KnnSearchVBase implements §4.7.5: drive one element-mode iterator per
// field a handful of steps at a time, favoring fields whose candidates
// have scored well on average so far, with the same threshold-vs-heap
// termination as §4.7.2.
func KnnSearchVBase(fm *fields.Manager, c *cache.Cache, resolver Resolver, q Query, nprobe, n2 int) ([]QueryResult, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	if len(q.Vectors) == 0 {
		return nil, vdberrors.InvalidArgumentf("search: vbase search requires at least one query vector")
	}

	n := len(q.Vectors)
	iterators := make([]*ivf.Iterator, n)
	threshold := make([]float64, n)
	scoresSum := make([]float64, n)
	scoresCount := make([]float64, n)
	exhausted := make([]bool, n)

	for i, qv := range q.Vectors {
		idx, err := fm.Index(qv.Field)
		if err != nil {
			return nil, err
		}
		if idx.Nlist() == 0 {
			return nil, vdberrors.InvalidArgumentf("search: field %q has no IVF index (nlist=0), cannot drive ANN search", qv.Field)
		}
		it := ivf.NewIterator(idx, qv.Target, nprobe)
		it.Seek()
		iterators[i] = it
		threshold[i] = math.Inf(1)
		if !it.Valid() {
			exhausted[i] = true
		}
	}

	visited := NewVisitedSet()
	h := NewTopKHeap(q.Limit)

	for {
		steps := computeSteps(scoresCount, scoresSum, n2, n)

		anyAdvanced := false
		for i, qv := range q.Vectors {
			if exhausted[i] {
				continue
			}
			it := iterators[i]
			for s := 0; s < steps[i] && it.Valid(); s++ {
				anyAdvanced = true
				key := it.GetKey()
				vec := it.GetVector()
				d := float64(distance.L2Sq(qv.Target, vec))
				if d < threshold[i] {
					threshold[i] = d
				}

				if visited.TryVisit(key) {
					rec, err := c.GetRecord(key)
					if err != nil {
						return nil, err
					}
					keep := true
					if len(q.Filters) > 0 {
						ok, err := applyFilters(resolver, rec, q.Filters)
						if err != nil {
							return nil, err
						}
						keep = ok
					}
					if keep {
						D, err := FusedDistance(resolver, q.Vectors, rec)
						if err != nil {
							return nil, err
						}
						h.Offer(key, D)
						scoresSum[i] += D
						scoresCount[i]++
					}
				}
				it.Next()
			}
			if !it.Valid() {
				exhausted[i] = true
			}
		}

		sum := 0.0
		for i, qv := range q.Vectors {
			sum += qv.Weight * threshold[i]
		}
		if top, ok := h.TopDistance(); ok && h.Len() >= q.Limit && sum >= top {
			break
		}
		if allExhausted(exhausted) {
			break
		}
		if !anyAdvanced {
			break
		}
	}
	return h.Drain(), nil
}

// computeSteps implements the VBase step formula of §4.7.5: when any field
// has not yet scored a candidate, every field gets the baseline step count;
// otherwise fields with a better (smaller) running average fused distance
// receive proportionally more steps.
func computeSteps(scoresCount, scoresSum []float64, n2, n int) []int {
	steps := make([]int, n)
	for i := 0; i < n; i++ {
		if scoresCount[i] == 0 {
			for j := range steps {
				steps[j] = kKPerRound
			}
			return steps
		}
	}
	ratios := make([]float64, n)
	denom := 0.0
	for i := 0; i < n; i++ {
		if scoresSum[i] <= 0 {
			// A running sum of exactly zero means every candidate seen so
			// far for this field had distance zero; instead of an infinite
			// count/sum ratio it gets the fixed ratio n, still shared with
			// the other fields' ratios in denom.
			ratios[i] = float64(n)
			denom += ratios[i]
			continue
		}
		ratios[i] = scoresCount[i] / scoresSum[i]
		denom += ratios[i]
	}
	for i := 0; i < n; i++ {
		steps[i] = kKPerRound
		if denom > 0 {
			steps[i] += int(math.Ceil(float64(n2) * ratios[i] / denom))
		}
	}
	return steps
}
