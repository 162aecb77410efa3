package vortexdb

import "github.com/vortexdb/vortexdb/internal/search"

// FilterOp is a scalar comparison operator (§4.5).
type FilterOp = search.FilterOp

const (
	Eq = search.Eq
	Ne = search.Ne
	Gt = search.Gt
	Ge = search.Ge
	Lt = search.Lt
	Le = search.Le
)

// Filter, QueryVector, Query and QueryResult are re-exported from the
// search package, which owns the fusion-loop code that consumes them;
// the root package adds only the builder below.
type (
	Filter      = search.Filter
	QueryVector = search.QueryVector
	Query       = search.Query
	QueryResult = search.QueryResult
)

// QueryBuilder assembles a Query field by field (accumulate, then dispatch)
// rather than a single large struct literal.
type QueryBuilder struct {
	q Query
}

// NewQuery starts a builder for a query returning at most limit results.
// limit == 0 short-circuits every search method to an empty result (§4.5).
func NewQuery(limit int) *QueryBuilder {
	return &QueryBuilder{q: Query{Limit: limit}}
}

// WithVector adds one query vector field with the given weight. The weight
// is used as given; no default is applied, so an unweighted field needs an
// explicit 1.0.
func (b *QueryBuilder) WithVector(field string, target []float32, weight float64) *QueryBuilder {
	b.q.Vectors = append(b.q.Vectors, QueryVector{Field: field, Target: target, Weight: weight})
	return b
}

// WithFilter adds one scalar predicate, applied conjunctively with any
// other filters already added.
func (b *QueryBuilder) WithFilter(field string, op FilterOp, value Scalar) *QueryBuilder {
	b.q.Filters = append(b.q.Filters, Filter{Field: field, Op: op, Value: value})
	return b
}

// Build returns the assembled Query.
func (b *QueryBuilder) Build() Query {
	return b.q
}
