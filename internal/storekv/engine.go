// Package storekv implements the persistent KV storage layer: framed
// binary envelopes for schema, records and IVF index partitions, written
// through an abstract ordered byte-keyed store.
package storekv

// Engine is the abstract ordered, byte-keyed store this package is built
// on (§6 of the design: "Underlying KV store (consumed)"). Training the
// centroids, choosing the on-disk format of the engine itself, and
// anything below point get/put/delete/prefix-iteration is out of scope —
// vortexdb only ever talks to this contract. FileEngine below is the
// concrete default implementation used when no other Engine is supplied.
type Engine interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error) // returns ErrNotFound (vdberrors.NotFound) on a missing key
	Delete(key []byte) error
	// Iterator returns entries whose key starts with prefix, in ascending
	// key order.
	Iterator(prefix []byte) (Iterator, error)
	Close() error
}

// Iterator walks ascending entries of an Engine's key space.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Close() error
}
