package vortexdb

import (
	"github.com/vortexdb/vortexdb/internal/storekv"
	"github.com/vortexdb/vortexdb/internal/vdberrors"
)

// ScalarTag identifies the declared type of a scalar field (§3); it is
// the same tag space storekv uses on the wire, re-exported here so callers
// never need to import internal/storekv directly.
type ScalarTag = storekv.ScalarTag

const (
	ScalarDouble = storekv.ScalarDouble
	ScalarInt    = storekv.ScalarInt
	ScalarString = storekv.ScalarString
)

// Scalar is a tagged union of {double, int, string} (§3). Cross-tag
// comparisons are defined to always be false; see search.ApplyFilter.
type Scalar = storekv.ScalarValue

// VectorField declares one vector field: name, dimension, and cluster
// count. NumCentroids == 0 disables ANN for the field (FullScan only).
type VectorField struct {
	Name         string
	Dim          int
	NumCentroids int
}

// ScalarField declares one scalar field: name and type tag.
type ScalarField struct {
	Name string
	Type ScalarTag
}

// Schema is the ordered list of vector and scalar fields declared at
// database creation, plus name-to-position reverse lookups (§3). It
// implements search.Resolver.
type Schema struct {
	VectorFields []VectorField
	ScalarFields []ScalarField

	vectorIndex map[string]int
	scalarIndex map[string]int
}

// NewSchema validates field-name uniqueness within each kind and builds
// the reverse lookup maps. The position of a field in the returned
// Schema's slices is its position within a Record's vectors/scalars
// tuples (§3 invariant ii).
func NewSchema(vectorFields []VectorField, scalarFields []ScalarField) (*Schema, error) {
	s := &Schema{
		VectorFields: vectorFields,
		ScalarFields: scalarFields,
		vectorIndex:  make(map[string]int, len(vectorFields)),
		scalarIndex:  make(map[string]int, len(scalarFields)),
	}
	for i, vf := range vectorFields {
		if vf.Dim <= 0 {
			return nil, vdberrors.InvalidArgumentf("vortexdb: vector field %q must have positive dim, got %d", vf.Name, vf.Dim)
		}
		if vf.NumCentroids < 0 {
			return nil, vdberrors.InvalidArgumentf("vortexdb: vector field %q must have non-negative num_centroids, got %d", vf.Name, vf.NumCentroids)
		}
		if _, exists := s.vectorIndex[vf.Name]; exists {
			return nil, vdberrors.AlreadyExistsf("vortexdb: duplicate vector field name %q", vf.Name)
		}
		s.vectorIndex[vf.Name] = i
	}
	for i, sf := range scalarFields {
		if _, exists := s.scalarIndex[sf.Name]; exists {
			return nil, vdberrors.AlreadyExistsf("vortexdb: duplicate scalar field name %q", sf.Name)
		}
		s.scalarIndex[sf.Name] = i
	}
	return s, nil
}

// ScalarIndex implements search.Resolver.
func (s *Schema) ScalarIndex(field string) (int, bool) {
	i, ok := s.scalarIndex[field]
	return i, ok
}

// VectorIndex implements search.Resolver.
func (s *Schema) VectorIndex(field string) (int, bool) {
	i, ok := s.vectorIndex[field]
	return i, ok
}

func (s *Schema) toEnvelope() storekv.SchemaEnvelope {
	env := storekv.SchemaEnvelope{
		VectorFields: make([]storekv.VectorFieldMeta, len(s.VectorFields)),
		ScalarFields: make([]storekv.ScalarFieldMeta, len(s.ScalarFields)),
	}
	for i, vf := range s.VectorFields {
		env.VectorFields[i] = storekv.VectorFieldMeta{Name: vf.Name, Dim: uint64(vf.Dim), NumCentroids: uint64(vf.NumCentroids)}
	}
	for i, sf := range s.ScalarFields {
		env.ScalarFields[i] = storekv.ScalarFieldMeta{Name: sf.Name, Type: sf.Type}
	}
	return env
}

func schemaFromEnvelope(env storekv.SchemaEnvelope) (*Schema, error) {
	vfs := make([]VectorField, len(env.VectorFields))
	for i, vf := range env.VectorFields {
		vfs[i] = VectorField{Name: vf.Name, Dim: int(vf.Dim), NumCentroids: int(vf.NumCentroids)}
	}
	sfs := make([]ScalarField, len(env.ScalarFields))
	for i, sf := range env.ScalarFields {
		sfs[i] = ScalarField{Name: sf.Name, Type: sf.Type}
	}
	return NewSchema(vfs, sfs)
}
