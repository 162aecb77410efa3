package storekv

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/vortexdb/vortexdb/internal/vdberrors"
)

// Record envelopes sit on the hot PutRecord/GetRecord path, where lz4's
// lower latency matters more than its compression ratio (grounded in
// hupe1980-vecgo's codec package, which treats compression as a
// swappable bytes-in/bytes-out concern).
func compressRecord(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, vdberrors.IOf(err, "storekv: lz4 compress record")
	}
	if err := w.Close(); err != nil {
		return nil, vdberrors.IOf(err, "storekv: lz4 finalize")
	}
	return buf.Bytes(), nil
}

func decompressRecord(b []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(b))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, vdberrors.CorruptionWrap(err, "storekv: lz4 decompress record")
	}
	return out, nil
}

// Index partition envelopes are cold, large (§6: "tens of megabytes") and
// written rarely (only on dirty-index flush at Close), so zstd's better
// ratio is worth its higher CPU cost relative to lz4.
var zstdEncoder, _ = zstd.NewWriter(nil)

func compressPartition(b []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(b, nil), nil
}

func decompressPartition(b []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, vdberrors.IOf(err, "storekv: zstd reader init")
	}
	defer dec.Close()
	out, err := dec.DecodeAll(b, nil)
	if err != nil {
		return nil, vdberrors.CorruptionWrap(err, "storekv: zstd decompress partition")
	}
	return out, nil
}
