// Package ivf implements the IVF-Flat index: a set of centroids plus one
// inverted list per centroid, vector assignment by nearest centroid, and
// probe-ordered iteration used by the search engine's fusion loop.
package ivf

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/vortexdb/vortexdb/internal/distance"
	"github.com/vortexdb/vortexdb/internal/vdberrors"
)

// Entry is one (key, vector) pair stored in an inverted list.
type Entry struct {
	Key    uint64
	Vector []float32
}

// Index is an IVF-Flat index for a single vector field. A key appears in at
// most one inverted list at any time. Centroids are set once via
// SetCentroids; inserts before that are rejected. With Nlist() == 0 the
// field has ANN disabled (FullScan only) and Put rejects every insert.
type Index struct {
	mu sync.RWMutex

	dim   int
	nlist int

	centroids [][]float32
	lists     [][]Entry

	// nonEmpty tracks which list indices currently hold at least one
	// entry, so Iterator/SeekCluster can skip empty clusters without
	// scanning nlist entries on every probe. Cluster ids are small
	// non-negative ints (nlist is bounded well under 2^32), the same
	// shape other_examples/wizenheimer-comet__ivfpq_index.go bookkeeps
	// with a roaring.Bitmap over node/cluster ids.
	nonEmpty *roaring.Bitmap

	// keyList records, for every key currently present, which list it
	// lives in. Needed so Delete and re-Put of an existing key do not
	// have to scan every list.
	keyList map[uint64]int

	centroidsSet bool
}

// New creates an index for a vector field of the given dimension and
// cluster count. nlist = 0 is permitted: the field is usable only via full
// scan; the returned index reports HasCentroids() == true, since there is
// no centroid set to install.
func New(dim, nlist int) (*Index, error) {
	if dim <= 0 {
		return nil, vdberrors.InvalidArgumentf("ivf: dim must be positive, got %d", dim)
	}
	if nlist < 0 {
		return nil, vdberrors.InvalidArgumentf("ivf: nlist must be non-negative, got %d", nlist)
	}
	idx := &Index{
		dim:      dim,
		nlist:    nlist,
		lists:    make([][]Entry, nlist),
		nonEmpty: roaring.New(),
		keyList:  make(map[uint64]int),
	}
	if nlist == 0 {
		idx.centroidsSet = true // vacuously: there is nothing to set
	}
	return idx, nil
}

// Dim returns the vector dimension this index was created with.
func (ix *Index) Dim() int { return ix.dim }

// Nlist returns the configured cluster count.
func (ix *Index) Nlist() int { return ix.nlist }

// SetCentroids installs C as the current centroid set, requiring
// len(C) == Nlist(). Replaces the previous centroid set in place; does not
// relocate existing entries, matching the contract that callers set
// centroids before bulk insert.
func (ix *Index) SetCentroids(centroids [][]float32) error {
	if len(centroids) != ix.nlist {
		return vdberrors.InvalidArgumentf("ivf: expected %d centroids, got %d", ix.nlist, len(centroids))
	}
	for i, c := range centroids {
		if len(c) != ix.dim {
			return vdberrors.InvalidArgumentf("ivf: centroid %d has dim %d, want %d", i, len(c), ix.dim)
		}
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.centroids = centroids
	ix.centroidsSet = true
	return nil
}

// Centroids returns the current centroid set (for persistence).
func (ix *Index) Centroids() [][]float32 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.centroids
}

// HasCentroids reports whether SetCentroids has been called (or Nlist is 0).
func (ix *Index) HasCentroids() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.centroidsSet
}

// nearestCentroid returns the index of the centroid closest to v by
// squared L2 distance, breaking ties by the lowest centroid index.
func (ix *Index) nearestCentroid(v []float32) int {
	best := 0
	bestD := distance.L2Sq(v, ix.centroids[0])
	for i := 1; i < len(ix.centroids); i++ {
		d := distance.L2Sq(v, ix.centroids[i])
		if d < bestD {
			bestD = d
			best = i
		}
	}
	return best
}

// Put assigns v to the centroid minimizing L2^2 distance and appends (k, v)
// to that inverted list, in O(nlist*dim). If k is already present it is
// removed from its previous list first, so Put is idempotent-overwrite.
func (ix *Index) Put(k uint64, v []float32) error {
	if len(v) != ix.dim {
		return vdberrors.InvalidArgumentf("ivf: vector has dim %d, want %d", len(v), ix.dim)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.nlist == 0 {
		return vdberrors.InvalidArgumentf("ivf: field has no centroids, insert rejected")
	}
	if !ix.centroidsSet {
		return vdberrors.InvalidArgumentf("ivf: centroids not set, cannot assign vector")
	}

	if cur, ok := ix.keyList[k]; ok {
		ix.removeFromList(cur, k)
	}

	target := ix.nearestCentroid(v)
	ix.lists[target] = append(ix.lists[target], Entry{Key: k, Vector: v})
	ix.keyList[k] = target
	ix.nonEmpty.Add(uint32(target))
	return nil
}

// removeFromList deletes k from lists[listIdx], assumed to hold the lock.
func (ix *Index) removeFromList(listIdx int, k uint64) {
	lst := ix.lists[listIdx]
	for i, e := range lst {
		if e.Key == k {
			lst[i] = lst[len(lst)-1]
			ix.lists[listIdx] = lst[:len(lst)-1]
			break
		}
	}
	if len(ix.lists[listIdx]) == 0 {
		ix.nonEmpty.Remove(uint32(listIdx))
	}
	delete(ix.keyList, k)
}

// Delete removes every (k, *) entry from the index. Idempotent: deleting an
// absent key is a no-op.
func (ix *Index) Delete(k uint64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	listIdx, ok := ix.keyList[k]
	if !ok {
		return
	}
	ix.removeFromList(listIdx, k)
}

// Size returns the total number of (key, vector) entries across all lists.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.keyList)
}

// probeOrder returns the indices of the nprobe non-empty clusters closest to
// query, ascending by centroid distance, breaking ties by lowest index.
// nprobe > Nlist() is clamped to Nlist().
func (ix *Index) probeOrder(query []float32, nprobe int) []int {
	if nprobe > ix.nlist {
		nprobe = ix.nlist
	}
	if nprobe <= 0 || ix.nlist == 0 {
		return nil
	}

	type cd struct {
		idx int
		d   float32
	}
	candidates := make([]cd, 0, ix.nonEmpty.GetCardinality())
	it := ix.nonEmpty.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		candidates = append(candidates, cd{idx: i, d: distance.L2Sq(query, ix.centroids[i])})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].d != candidates[j].d {
			return candidates[i].d < candidates[j].d
		}
		return candidates[i].idx < candidates[j].idx
	})
	if nprobe > len(candidates) {
		nprobe = len(candidates)
	}
	out := make([]int, nprobe)
	for i := 0; i < nprobe; i++ {
		out[i] = candidates[i].idx
	}
	return out
}

// ListEntries returns a copy of cluster ci's inverted list, for
// persistence. Returns nil if ci is out of range.
func (ix *Index) ListEntries(ci int) []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ci < 0 || ci >= len(ix.lists) {
		return nil
	}
	return append([]Entry(nil), ix.lists[ci]...)
}

// VerifyConsistency walks every inverted list and confirms each key appears
// in at most one list and every vector has the declared dimension. Returns
// a Corruption error describing the first violation found, or nil.
func (ix *Index) VerifyConsistency() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[uint64]int, len(ix.keyList))
	for li, lst := range ix.lists {
		for _, e := range lst {
			if len(e.Vector) != ix.dim {
				return vdberrors.Corruptionf("ivf: key %d in list %d has dim %d, want %d", e.Key, li, len(e.Vector), ix.dim)
			}
			if prev, ok := seen[e.Key]; ok {
				return vdberrors.Corruptionf("ivf: key %d present in both list %d and list %d", e.Key, prev, li)
			}
			seen[e.Key] = li
		}
	}
	return nil
}
