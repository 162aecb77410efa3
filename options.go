package vortexdb

import "github.com/vortexdb/vortexdb/internal/vdberrors"

// Options configures Create/Open, validated eagerly at construction rather
// than failing lazily the first time a bad value is used.
type Options struct {
	// Dir is the storage directory passed to storekv.Open.
	Dir string
	// CreateIfMissing gates Create vs Open (§4.8): Create requires true,
	// Open requires false.
	CreateIfMissing bool
	// PrefetchOnOpen, if > 0, is the record count PrefetchRecords loads
	// immediately after Open. 0 disables prefetch.
	PrefetchOnOpen int
	// PrefetchRate bounds the prefetch scan in records/second. <= 0
	// disables the limiter.
	PrefetchRate float64
	// SearchWorkers bounds the per-cluster fan-out inside the TA fusion
	// loop of KnnSearch. <= 0 means unbounded. The iterative-merge and
	// VBase variants run sequentially and do not use it.
	SearchWorkers int
}

// DefaultOptions returns conservative, always-on defaults (bounded search
// worker pool, no prefetch) rather than fully manual knobs.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:           dir,
		SearchWorkers: 4,
	}
}

func (o Options) validate() error {
	if o.Dir == "" {
		return vdberrors.InvalidArgumentf("vortexdb: Options.Dir must not be empty")
	}
	if o.PrefetchOnOpen < 0 {
		return vdberrors.InvalidArgumentf("vortexdb: Options.PrefetchOnOpen must be non-negative, got %d", o.PrefetchOnOpen)
	}
	if o.SearchWorkers < 0 {
		return vdberrors.InvalidArgumentf("vortexdb: Options.SearchWorkers must be non-negative, got %d", o.SearchWorkers)
	}
	return nil
}
