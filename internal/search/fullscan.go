package search

import "github.com/vortexdb/vortexdb/internal/storekv"

// FullScan implements C6: iterate every stored record, apply the query's
// filters conjunctively, and keep the top q.Limit by fused distance in a
// max-heap, draining ascending. limit == 0 short-circuits to an empty
// result without touching storage (§4.5).
func FullScan(store *storekv.Store, resolver Resolver, q Query) ([]QueryResult, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	h := NewTopKHeap(q.Limit)
	err := store.IterateRecords(func(r storekv.RecordEnvelope) error {
		ok, err := applyFilters(resolver, r, q.Filters)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		d, err := FusedDistance(resolver, q.Vectors, r)
		if err != nil {
			return err
		}
		h.Offer(r.ID, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h.Drain(), nil
}

// CountFiltered applies filters over a full scan without computing
// distances or allocating results, for cardinality checks before issuing
// an expensive ANN query (SPEC_FULL §5 supplemental feature 4).
func CountFiltered(store *storekv.Store, resolver Resolver, filters []Filter) (int, error) {
	count := 0
	err := store.IterateRecords(func(r storekv.RecordEnvelope) error {
		ok, err := applyFilters(resolver, r, filters)
		if err != nil {
			return err
		}
		if ok {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
