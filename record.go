package vortexdb

import (
	"github.com/vortexdb/vortexdb/internal/storekv"
	"github.com/vortexdb/vortexdb/internal/vdberrors"
)

// Key is the 64-bit unique record identifier (§3).
type Key = uint64

// Record is (id, scalars, vectors), ordered to match the schema (§3).
// It is the same shape storekv persists on the wire — there is no
// separate domain representation to keep in sync, since a Record carries
// no invariant storekv's envelope doesn't already enforce structurally.
type Record = storekv.RecordEnvelope

// validateRecord checks §3's per-record invariants against schema: vector
// lengths match declared dims, scalar tags match declared types, and
// tuple lengths match field counts.
func validateRecord(schema *Schema, r Record) error {
	if len(r.Vectors) != len(schema.VectorFields) {
		return vdberrors.InvalidArgumentf("vortexdb: record %d has %d vectors, schema declares %d", r.ID, len(r.Vectors), len(schema.VectorFields))
	}
	for i, vf := range schema.VectorFields {
		if len(r.Vectors[i]) != vf.Dim {
			return vdberrors.InvalidArgumentf("vortexdb: record %d field %q has dim %d, want %d", r.ID, vf.Name, len(r.Vectors[i]), vf.Dim)
		}
	}
	if len(r.Scalars) != len(schema.ScalarFields) {
		return vdberrors.InvalidArgumentf("vortexdb: record %d has %d scalars, schema declares %d", r.ID, len(r.Scalars), len(schema.ScalarFields))
	}
	for i, sf := range schema.ScalarFields {
		if r.Scalars[i].Tag != sf.Type {
			return vdberrors.InvalidArgumentf("vortexdb: record %d field %q has scalar tag %v, want %v", r.ID, sf.Name, r.Scalars[i].Tag, sf.Type)
		}
	}
	return nil
}
