package search

import (
	"container/heap"
	"sort"
	"sync"
)

// maxHeap is a max-heap over QueryResult keyed on Distance: the root is
// always the current worst (largest-distance) member of the top-k.
type maxHeap []QueryResult

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].Distance > h[j].Distance }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)         { *h = append(*h, x.(QueryResult)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopKHeap keeps the k smallest-distance results seen so far, behind a
// mutex so the TA fusion loop's worker goroutines can share one heap
// (§5: "heap updates are serialized by a single mutex").
type TopKHeap struct {
	mu    sync.Mutex
	items maxHeap
	k     int
}

// NewTopKHeap creates a heap bounded to k results. k <= 0 accepts nothing
// (callers are expected to special-case Limit == 0 before ever touching
// the heap).
func NewTopKHeap(k int) *TopKHeap {
	return &TopKHeap{k: k}
}

// Offer inserts (id, d) if the heap has room, or if d improves on the
// current worst member, evicting that member. Returns whether it was
// applied.
func (h *TopKHeap) Offer(id uint64, d float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.k <= 0 {
		return false
	}
	if len(h.items) < h.k {
		heap.Push(&h.items, QueryResult{ID: id, Distance: d})
		return true
	}
	if d < h.items[0].Distance {
		heap.Pop(&h.items)
		heap.Push(&h.items, QueryResult{ID: id, Distance: d})
		return true
	}
	return false
}

// Len reports the current number of held results.
func (h *TopKHeap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// TopDistance returns the current worst (largest) distance held, and
// whether the heap holds at least one result.
func (h *TopKHeap) TopDistance() (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.items) == 0 {
		return 0, false
	}
	return h.items[0].Distance, true
}

// Drain empties the heap and returns its contents sorted ascending by
// distance, per §4.6/§4.7.2's "drained in ascending distance order".
func (h *TopKHeap) Drain() []QueryResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]QueryResult, len(h.items))
	copy(out, h.items)
	h.items = nil
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}
