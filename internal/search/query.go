// Package search implements full scan (C6) and the ANN search engine
// (C7): the Threshold-Algorithm fusion loop, the single-vector fast path,
// the iterative-merge variant and the VBase variant, all driven over the
// fields/ivf/cache/storekv layers.
package search

import (
	"github.com/vortexdb/vortexdb/internal/distance"
	"github.com/vortexdb/vortexdb/internal/storekv"
	"github.com/vortexdb/vortexdb/internal/vdberrors"
)

// FilterOp is a scalar comparison operator (§4.5).
type FilterOp int

const (
	Eq FilterOp = iota
	Ne
	Gt
	Ge
	Lt
	Le
)

// Filter is one scalar predicate: record.scalars[idx(Field)] Op Value.
type Filter struct {
	Field string
	Op    FilterOp
	Value storekv.ScalarValue
}

// QueryVector is one field of a multi-vector query, weighted in the fused
// distance.
type QueryVector struct {
	Field  string
	Target []float32
	Weight float64
}

// Query is (limit, vectors, filters) per §4.5.
type Query struct {
	Limit   int
	Vectors []QueryVector
	Filters []Filter
}

// QueryResult is one ranked hit.
type QueryResult struct {
	ID       uint64
	Distance float64
}

// Resolver maps field names to their position within a record's scalars
// or vectors tuple, the way the root package's Schema does. Defined here
// as an interface, not a concrete type, so this package has no dependency
// on the root package (which depends on search).
type Resolver interface {
	ScalarIndex(field string) (int, bool)
	VectorIndex(field string) (int, bool)
}

// ApplyFilter evaluates f against record using resolver to locate the
// scalar field. A filter on a field absent from the schema is a
// precondition violation (§4.7.6) and returns an InvalidArgument error;
// a filter whose operands don't type-match (cross-tag gt/ge/lt/le) is not
// an error, it simply evaluates false.
func ApplyFilter(resolver Resolver, record storekv.RecordEnvelope, f Filter) (bool, error) {
	idx, ok := resolver.ScalarIndex(f.Field)
	if !ok {
		return false, vdberrors.InvalidArgumentf("search: unknown scalar field %q", f.Field)
	}
	if idx >= len(record.Scalars) {
		return false, vdberrors.InvalidArgumentf("search: record %d missing scalar slot for field %q", record.ID, f.Field)
	}
	sv := record.Scalars[idx]

	switch f.Op {
	case Eq:
		return scalarEquals(sv, f.Value), nil
	case Ne:
		return !scalarEquals(sv, f.Value), nil
	default:
		cmp, comparable := compareScalars(sv, f.Value)
		if !comparable {
			return false, nil
		}
		switch f.Op {
		case Gt:
			return cmp > 0, nil
		case Ge:
			return cmp >= 0, nil
		case Lt:
			return cmp < 0, nil
		case Le:
			return cmp <= 0, nil
		}
		return false, nil
	}
}

// scalarEquals compares by tag and value; cross-tag comparisons are always
// false (§3, §9).
func scalarEquals(a, b storekv.ScalarValue) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case storekv.ScalarInt:
		return a.I == b.I
	case storekv.ScalarDouble:
		return a.D == b.D
	case storekv.ScalarString:
		return a.S == b.S
	default:
		return false
	}
}

// compareScalars returns (-1|0|1, true) when a and b share a tag, or
// (0, false) when they don't — ordering is undefined across tags (§3).
func compareScalars(a, b storekv.ScalarValue) (int, bool) {
	if a.Tag != b.Tag {
		return 0, false
	}
	switch a.Tag {
	case storekv.ScalarInt:
		switch {
		case a.I < b.I:
			return -1, true
		case a.I > b.I:
			return 1, true
		default:
			return 0, true
		}
	case storekv.ScalarDouble:
		switch {
		case a.D < b.D:
			return -1, true
		case a.D > b.D:
			return 1, true
		default:
			return 0, true
		}
	case storekv.ScalarString:
		switch {
		case a.S < b.S:
			return -1, true
		case a.S > b.S:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// FusedDistance computes D(r) = Sum_i weight_i * l2sq(target_i,
// r.vectors[idx(field_i)]) (§4.7.1). An unknown field, a record missing
// the corresponding vector slot, or a dimension mismatch are all
// precondition violations and abort with an error (§4.7.6).
func FusedDistance(resolver Resolver, vectors []QueryVector, record storekv.RecordEnvelope) (float64, error) {
	var total float64
	for _, qv := range vectors {
		idx, ok := resolver.VectorIndex(qv.Field)
		if !ok {
			return 0, vdberrors.InvalidArgumentf("search: unknown vector field %q", qv.Field)
		}
		if idx >= len(record.Vectors) {
			return 0, vdberrors.InvalidArgumentf("search: record %d missing vector slot for field %q", record.ID, qv.Field)
		}
		rv := record.Vectors[idx]
		if len(rv) != len(qv.Target) {
			return 0, vdberrors.InvalidArgumentf("search: field %q dim mismatch: query %d, record %d", qv.Field, len(qv.Target), len(rv))
		}
		w := qv.Weight
		total += w * float64(distance.L2Sq(qv.Target, rv))
	}
	return total, nil
}

// applyFilters applies every filter in filters conjunctively, short-
// circuiting (and propagating) on the first error or first false.
func applyFilters(resolver Resolver, record storekv.RecordEnvelope, filters []Filter) (bool, error) {
	for _, f := range filters {
		ok, err := ApplyFilter(resolver, record, f)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
