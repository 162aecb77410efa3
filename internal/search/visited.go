package search

import (
	"math"
	"sync"
)

// VisitedSet is the coarse mutex-guarded key-visited bookkeeping of §4.7.2
// and §5: "visited-set insertion is atomic per key; exactly one worker
// performs the filter+record-fetch+D computation for any given key."
// Keys are externally assigned record ids, not densely packed, so this
// stays a plain map rather than a bitmap (see DESIGN.md).
type VisitedSet struct {
	mu   sync.Mutex
	seen map[uint64]struct{}
}

// NewVisitedSet creates an empty visited set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[uint64]struct{})}
}

// TryVisit marks k visited and reports whether this call was the one that
// did so (false if k was already visited by another caller).
func (v *VisitedSet) TryVisit(k uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[k]; ok {
		return false
	}
	v.seen[k] = struct{}{}
	return true
}

// LastSeenDistance is one iterator's monotone non-increasing running
// minimum single-field distance (§4.7.2), serialized per iterator.
type LastSeenDistance struct {
	mu sync.Mutex
	v  float64
}

// NewLastSeenDistance initializes to +Inf per §4.7.2.
func NewLastSeenDistance() *LastSeenDistance {
	return &LastSeenDistance{v: math.Inf(1)}
}

// UpdateMin folds d into the running minimum.
func (l *LastSeenDistance) UpdateMin(d float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d < l.v {
		l.v = d
	}
}

// Get returns the current running minimum.
func (l *LastSeenDistance) Get() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.v
}
