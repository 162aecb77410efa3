package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestL2SqZeroOnIdentical(t *testing.T) {
	v := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	require.Equal(t, float32(0), L2Sq(v, v))
}

func TestL2SqKnownValue(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 2}
	require.Equal(t, float32(9), L2Sq(a, b))
}

func TestL2SqUnrolledTailMatchesScalar(t *testing.T) {
	for n := 0; n < 20; n++ {
		a := make([]float32, n)
		b := make([]float32, n)
		for i := range a {
			a[i] = float32(i) * 1.5
			b[i] = float32(i) * -0.5
		}
		got := L2Sq(a, b)
		want := scalarL2Sq(a, b)
		require.InDelta(t, want, got, 1e-3, "n=%d", n)
	}
}

func TestL1KnownValue(t *testing.T) {
	a := []float32{0, -2, 3}
	b := []float32{1, 2, 0}
	require.Equal(t, float32(8), L1(a, b))
}

func scalarL2Sq(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return float32(sum)
}

func TestAbs32(t *testing.T) {
	require.Equal(t, float32(3), abs32(-3))
	require.Equal(t, float32(3), abs32(3))
	require.True(t, !math.Signbit(float64(abs32(-0.0))))
}
