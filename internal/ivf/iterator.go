package ivf

import (
	"container/heap"

	"github.com/vortexdb/vortexdb/internal/distance"
)

// Iterator traverses an Index in probe order. It holds a read-only
// reference to the index and must not be used after the index is mutated
// by a concurrent Put/Delete, and must not outlive the index it borrows.
//
// It supports two traversal modes:
//
//   - Element mode (Seek/Next/Valid/GetKey/GetVector): entries within each
//     probed cluster are yielded in ascending distance to the query via an
//     internal min-heap; clusters are concatenated in probe order.
//   - Cluster mode (SeekCluster/GetCluster/NextCluster/HasNextCluster):
//     yields whole clusters, unordered, letting the caller parallelize
//     within a cluster.
//
// The two modes are independent cursors over the same probe order and may
// be mixed, though callers in this codebase pick one mode per iterator.
type Iterator struct {
	index  *Index
	query  []float32
	nprobe int

	probes []int // cluster indices in probe order, computed at Seek time

	// element mode state
	elemHeap *candidateHeap
	elemInit bool

	// cluster mode state
	clusterPos int
}

// NewIterator constructs an iterator for query against idx, without
// computing the probe set yet; call Seek (or SeekCluster) first.
func NewIterator(idx *Index, query []float32, nprobe int) *Iterator {
	return &Iterator{index: idx, query: query, nprobe: nprobe}
}

// Seek computes the nprobe-cluster probe set and positions the iterator for
// element-mode traversal at the first entry, if any.
func (it *Iterator) Seek() {
	it.index.mu.RLock()
	it.probes = it.index.probeOrder(it.query, it.nprobe)
	it.elemHeap = newCandidateHeap(it.query, it.index, it.probes)
	it.index.mu.RUnlock()
	it.elemInit = true
}

// Valid reports whether the element-mode cursor currently points at an
// entry. An iterator built over an index with Nlist() == 0, or with no
// non-empty probed clusters, is immediately invalid.
func (it *Iterator) Valid() bool {
	if !it.elemInit {
		return false
	}
	return it.elemHeap.Len() > 0
}

// GetKey returns the key at the current element-mode cursor position.
func (it *Iterator) GetKey() uint64 { return it.elemHeap.top().entry.Key }

// GetVector returns the vector at the current element-mode cursor position.
func (it *Iterator) GetVector() []float32 { return it.elemHeap.top().entry.Vector }

// GetDistance returns the precomputed distance of the current element-mode
// candidate to the query vector.
func (it *Iterator) GetDistance() float32 { return it.elemHeap.top().dist }

// Next advances the element-mode cursor to the next closest entry.
func (it *Iterator) Next() {
	if it.elemHeap.Len() == 0 {
		return
	}
	heap.Pop(it.elemHeap)
}

// SeekCluster positions the cluster-mode cursor at the first probed
// cluster, computing the probe set if Seek/SeekCluster has not run yet.
func (it *Iterator) SeekCluster() {
	if it.probes == nil {
		it.index.mu.RLock()
		it.probes = it.index.probeOrder(it.query, it.nprobe)
		it.index.mu.RUnlock()
	}
	it.clusterPos = 0
}

// HasNextCluster reports whether a further probed cluster remains.
func (it *Iterator) HasNextCluster() bool {
	return it.clusterPos < len(it.probes)
}

// GetCluster returns the raw inverted list for the cluster currently under
// the cluster-mode cursor, without reordering.
func (it *Iterator) GetCluster() []Entry {
	if it.clusterPos >= len(it.probes) {
		return nil
	}
	it.index.mu.RLock()
	defer it.index.mu.RUnlock()
	return it.index.lists[it.probes[it.clusterPos]]
}

// ClusterCentroidDistance returns the squared L2 distance from the query to
// the centroid of the cluster currently under the cluster-mode cursor, or 0
// once the cursor is past the last probed cluster.
func (it *Iterator) ClusterCentroidDistance() float32 {
	if it.clusterPos >= len(it.probes) {
		return 0
	}
	it.index.mu.RLock()
	defer it.index.mu.RUnlock()
	return distance.L2Sq(it.query, it.index.centroids[it.probes[it.clusterPos]])
}

// NextCluster advances the cluster-mode cursor to the next probed cluster.
func (it *Iterator) NextCluster() {
	it.clusterPos++
}

// --- element-mode min-heap -------------------------------------------------

type candidate struct {
	entry    Entry
	dist     float32
	probeIdx int // position within the probe order, for stable ordering
}

// candidateHeap is a min-heap over candidates, lazily filled one cluster at
// a time: it holds the not-yet-popped entries of the most recently loaded
// cluster and loads the next non-empty probed cluster only once those are
// gone, so Seek does not have to materialize every probed cluster's
// entries up front for large nprobe.
type candidateHeap struct {
	items  []candidate
	query  []float32
	index  *Index
	probes []int
	loaded int
}

func newCandidateHeap(query []float32, index *Index, probes []int) *candidateHeap {
	h := &candidateHeap{query: query, index: index, probes: probes}
	h.loadNextNonEmptyCluster()
	return h
}

func (h *candidateHeap) loadNextNonEmptyCluster() {
	index := h.index
	index.mu.RLock()
	defer index.mu.RUnlock()
	for h.loaded < len(h.probes) {
		listIdx := h.probes[h.loaded]
		h.loaded++
		lst := index.lists[listIdx]
		if len(lst) == 0 {
			continue // empty clusters are skipped silently
		}
		for _, e := range lst {
			h.items = append(h.items, candidate{
				entry:    e,
				dist:     distance.L2Sq(h.query, e.Vector),
				probeIdx: h.loaded - 1,
			})
		}
		heap.Init(h)
		return
	}
}

func (h *candidateHeap) top() *candidate { return &h.items[0] }

func (h *candidateHeap) Len() int {
	if len(h.items) == 0 {
		h.loadNextNonEmptyCluster()
	}
	return len(h.items)
}

func (h *candidateHeap) Less(i, j int) bool {
	if h.items[i].dist != h.items[j].dist {
		return h.items[i].dist < h.items[j].dist
	}
	if h.items[i].probeIdx != h.items[j].probeIdx {
		return h.items[i].probeIdx < h.items[j].probeIdx
	}
	return h.items[i].entry.Key < h.items[j].entry.Key
}

func (h *candidateHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *candidateHeap) Push(x any) { h.items = append(h.items, x.(candidate)) }

func (h *candidateHeap) Pop() any {
	old := h.items
	n := len(old)
	x := old[n-1]
	h.items = old[:n-1]
	if len(h.items) == 0 {
		h.loadNextNonEmptyCluster()
	}
	return x
}
