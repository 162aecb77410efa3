package storekv

// ScalarTag mirrors the wire tag of a scalar field's declared type (§6):
// Double=0, Int=1, String=2.
type ScalarTag uint8

const (
	ScalarDouble ScalarTag = 0
	ScalarInt    ScalarTag = 1
	ScalarString ScalarTag = 2
)

// VectorFieldMeta is the wire shape of one vector field declaration.
type VectorFieldMeta struct {
	Name         string
	Dim          uint64
	NumCentroids uint64
}

// ScalarFieldMeta is the wire shape of one scalar field declaration.
type ScalarFieldMeta struct {
	Name string
	Type ScalarTag
}

// SchemaEnvelope is the wire shape of the schema singleton.
type SchemaEnvelope struct {
	VectorFields []VectorFieldMeta
	ScalarFields []ScalarFieldMeta
}

// EncodeSchema serializes a SchemaEnvelope.
func EncodeSchema(s SchemaEnvelope) []byte {
	e := &encoder{}
	e.u32(uint32(len(s.VectorFields)))
	for _, vf := range s.VectorFields {
		e.str(vf.Name)
		e.u64(vf.Dim)
		e.u64(vf.NumCentroids)
	}
	e.u32(uint32(len(s.ScalarFields)))
	for _, sf := range s.ScalarFields {
		e.str(sf.Name)
		e.u8(uint8(sf.Type))
	}
	return e.buf
}

// DecodeSchema deserializes a SchemaEnvelope, returning a Corruption error
// on a malformed buffer.
func DecodeSchema(buf []byte) (SchemaEnvelope, error) {
	d := &decoder{buf: buf}
	var s SchemaEnvelope

	nv, err := d.u32()
	if err != nil {
		return s, err
	}
	s.VectorFields = make([]VectorFieldMeta, nv)
	for i := range s.VectorFields {
		name, err := d.str()
		if err != nil {
			return s, err
		}
		dim, err := d.u64()
		if err != nil {
			return s, err
		}
		nc, err := d.u64()
		if err != nil {
			return s, err
		}
		s.VectorFields[i] = VectorFieldMeta{Name: name, Dim: dim, NumCentroids: nc}
	}

	ns, err := d.u32()
	if err != nil {
		return s, err
	}
	s.ScalarFields = make([]ScalarFieldMeta, ns)
	for i := range s.ScalarFields {
		name, err := d.str()
		if err != nil {
			return s, err
		}
		tag, err := d.u8()
		if err != nil {
			return s, err
		}
		s.ScalarFields[i] = ScalarFieldMeta{Name: name, Type: ScalarTag(tag)}
	}
	return s, nil
}
