package storekv

// ScalarValue is the wire shape of one tagged scalar value.
type ScalarValue struct {
	Tag ScalarTag
	I   int64
	D   float64
	S   string
}

// RecordEnvelope is the wire shape of one record (§6): id, scalars in
// schema order, vectors in schema order.
type RecordEnvelope struct {
	ID      uint64
	Scalars []ScalarValue
	Vectors [][]float32
}

// EncodeRecord serializes a RecordEnvelope, then compresses it with the
// record-path codec (lz4; see compress.go).
func EncodeRecord(r RecordEnvelope) ([]byte, error) {
	e := &encoder{}
	e.u64(r.ID)
	e.u32(uint32(len(r.Scalars)))
	for _, sv := range r.Scalars {
		e.u8(uint8(sv.Tag))
		switch sv.Tag {
		case ScalarInt:
			e.u64(uint64(sv.I))
		case ScalarDouble:
			e.f64(sv.D)
		case ScalarString:
			e.str(sv.S)
		}
	}
	e.u32(uint32(len(r.Vectors)))
	for _, v := range r.Vectors {
		e.floats(v)
	}
	return compressRecord(e.buf)
}

// DecodeRecord decompresses and deserializes a RecordEnvelope.
func DecodeRecord(raw []byte) (RecordEnvelope, error) {
	var r RecordEnvelope
	buf, err := decompressRecord(raw)
	if err != nil {
		return r, err
	}
	d := &decoder{buf: buf}

	id, err := d.u64()
	if err != nil {
		return r, err
	}
	r.ID = id

	ns, err := d.u32()
	if err != nil {
		return r, err
	}
	// Zero-length tuples decode as nil, so a record written with nil
	// slices reads back equal to itself.
	if ns > 0 {
		r.Scalars = make([]ScalarValue, ns)
	}
	for i := range r.Scalars {
		tag, err := d.u8()
		if err != nil {
			return r, err
		}
		sv := ScalarValue{Tag: ScalarTag(tag)}
		switch sv.Tag {
		case ScalarInt:
			u, err := d.u64()
			if err != nil {
				return r, err
			}
			sv.I = int64(u)
		case ScalarDouble:
			f, err := d.f64()
			if err != nil {
				return r, err
			}
			sv.D = f
		case ScalarString:
			s, err := d.str()
			if err != nil {
				return r, err
			}
			sv.S = s
		}
		r.Scalars[i] = sv
	}

	nvec, err := d.u32()
	if err != nil {
		return r, err
	}
	if nvec > 0 {
		r.Vectors = make([][]float32, nvec)
	}
	for i := range r.Vectors {
		v, err := d.floats()
		if err != nil {
			return r, err
		}
		r.Vectors[i] = v
	}
	return r, nil
}
