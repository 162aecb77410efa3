// Package distance implements the inner-loop distance kernels shared by the
// IVF index, full scan and the ANN search engine. Every function here must
// stay allocation-free: it runs once per candidate, per query.
package distance

// L2Sq returns the squared Euclidean distance between a and b. Both slices
// must have equal length; the kernel does not check this on every
// candidate and reads len(a) elements from each slice.
func L2Sq(a, b []float32) float32 {
	n := len(a)
	var sum float32
	i := 0
	// Unrolled by 8 lanes: on the inputs this package sees (dense
	// embedding vectors, dims in the tens to low thousands) this keeps
	// the loop overhead well under the multiply-add cost without
	// reaching for actual SIMD intrinsics, which Go does not expose
	// without assembly.
	for ; i+8 <= n; i += 8 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		d4 := a[i+4] - b[i+4]
		d5 := a[i+5] - b[i+5]
		d6 := a[i+6] - b[i+6]
		d7 := a[i+7] - b[i+7]
		sum += d0*d0 + d1*d1 + d2*d2 + d3*d3 + d4*d4 + d5*d5 + d6*d6 + d7*d7
	}
	for ; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// L1 returns the sum of absolute differences between a and b.
func L1(a, b []float32) float32 {
	n := len(a)
	var sum float32
	i := 0
	for ; i+8 <= n; i += 8 {
		sum += abs32(a[i]-b[i]) + abs32(a[i+1]-b[i+1]) + abs32(a[i+2]-b[i+2]) + abs32(a[i+3]-b[i+3]) +
			abs32(a[i+4]-b[i+4]) + abs32(a[i+5]-b[i+5]) + abs32(a[i+6]-b[i+6]) + abs32(a[i+7]-b[i+7])
	}
	for ; i < n; i++ {
		sum += abs32(a[i] - b[i])
	}
	return sum
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
