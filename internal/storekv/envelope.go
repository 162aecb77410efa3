package storekv

import (
	"encoding/binary"
	"math"

	"github.com/vortexdb/vortexdb/internal/vdberrors"
)

// envelope.go holds the shared length-prefixed binary primitives the
// schema, record and index-partition envelopes are built from: every
// variable-length field (string, vector, list) is a uint32 count/byte
// length followed by its payload, little-endian throughout.

type encoder struct{ buf []byte }

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) u32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) u64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *encoder) f64(v float64) {
	e.u64(math.Float64bits(v))
}
func (e *encoder) bytes(b []byte) {
	e.u32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}
func (e *encoder) str(s string) { e.bytes([]byte(s)) }
func (e *encoder) floats(v []float32) {
	e.u32(uint32(len(v)))
	for _, f := range v {
		e.buf = binary.LittleEndian.AppendUint32(e.buf, math.Float32bits(f))
	}
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) remaining() int { return len(d.buf) - d.pos }

func (d *decoder) u8() (uint8, error) {
	if d.remaining() < 1 {
		return 0, vdberrors.Corruptionf("storekv: truncated envelope reading u8")
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	if d.remaining() < 4 {
		return 0, vdberrors.Corruptionf("storekv: truncated envelope reading u32")
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if d.remaining() < 8 {
		return 0, vdberrors.Corruptionf("storekv: truncated envelope reading u64")
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) f64() (float64, error) {
	v, err := d.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	if d.remaining() < int(n) {
		return nil, vdberrors.Corruptionf("storekv: truncated envelope reading %d bytes", n)
	}
	v := d.buf[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return v, nil
}

func (d *decoder) str() (string, error) {
	b, err := d.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) floats() ([]float32, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	if d.remaining() < int(n)*4 {
		return nil, vdberrors.Corruptionf("storekv: truncated envelope reading %d floats", n)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(d.buf[d.pos:]))
		d.pos += 4
	}
	return out, nil
}
