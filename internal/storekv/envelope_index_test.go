package storekv

import "testing"

func TestPartitionPlan(t *testing.T) {
	cases := []struct {
		nlist, dim        int
		wantN, wantSize int
	}{
		{nlist: 0, dim: 128, wantN: 0, wantSize: 0},
		{nlist: 100, dim: 128, wantN: 1, wantSize: 100},
		{nlist: 100000, dim: 128, wantN: 100, wantSize: 1000},
		{nlist: 100000, dim: 256, wantN: 200, wantSize: 500},
	}
	for _, c := range cases {
		n, size := PartitionPlan(c.nlist, c.dim)
		if n != c.wantN || size != c.wantSize {
			t.Errorf("PartitionPlan(%d, %d) = (%d, %d), want (%d, %d)",
				c.nlist, c.dim, n, size, c.wantN, c.wantSize)
		}
	}
}

func TestPartitionBoundsLastAbsorbsRemainder(t *testing.T) {
	nlist := 2050 // 3 partitions of 683; the last covers 684
	n, size := PartitionPlan(nlist, 128)
	total := 0
	for p := 0; p < n; p++ {
		start, end := PartitionBounds(nlist, n, size, p)
		if start != total {
			t.Fatalf("partition %d start = %d, want %d", p, start, total)
		}
		total = end
	}
	if total != nlist {
		t.Fatalf("partitions cover %d centroids, want %d", total, nlist)
	}
}

func TestEncodeDecodeIndexPartitionRoundTrip(t *testing.T) {
	p := IndexPartitionEnvelope{
		FieldName:     "v",
		Dim:           2,
		Nlist:         3,
		CentroidStart: 1,
		Centroids:     [][]float32{{1, 2}, {3, 4}},
		Lists: [][]IvfListEntryWire{
			{{Key: 10, Vector: []float32{1.1, 2.1}}},
			{},
		},
	}
	raw, err := EncodeIndexPartition(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeIndexPartition(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.FieldName != p.FieldName || got.Dim != p.Dim || got.Nlist != p.Nlist {
		t.Fatalf("metadata mismatch: got %+v", got)
	}
	if len(got.Centroids) != len(p.Centroids) || len(got.Lists) != len(p.Lists) {
		t.Fatalf("shape mismatch: got %+v", got)
	}
}

func TestDecodeIndexPartitionTruncatedIsCorruption(t *testing.T) {
	p := IndexPartitionEnvelope{FieldName: "v", Dim: 2, Nlist: 1, Centroids: [][]float32{{1, 2}}}
	raw, err := EncodeIndexPartition(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeIndexPartition(raw[:len(raw)/2]); err == nil {
		t.Fatal("expected error decoding truncated partition")
	}
}
