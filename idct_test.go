package mjpeg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// idctNaive is the textbook O(64^2) separable inverse DCT-II with the
// JPEG +128 level shift, used only to cross-check the fixed-point
// butterfly against a formulation that is correct by construction.
func idctNaive(dst *[64]float64, coeff *[64]int32) {
	cFactor := func(u int) float64 {
		if u == 0 {
			return 1 / math.Sqrt2
		}
		return 1
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			sum := 0.0
			for v := 0; v < 8; v++ {
				for u := 0; u < 8; u++ {
					sum += cFactor(u) * cFactor(v) * float64(coeff[v*8+u]) *
						math.Cos(float64(2*x+1)*float64(u)*math.Pi/16) *
						math.Cos(float64(2*y+1)*float64(v)*math.Pi/16)
				}
			}
			dst[y*8+x] = sum/4 + 128
		}
	}
}

func TestInverseDCT8MatchesNaiveTransform(t *testing.T) {
	var coeff [64]int32
	coeff[0] = 300
	coeff[1] = -120
	coeff[8] = 75
	coeff[9] = 33
	coeff[18] = -54
	coeff[35] = 17
	coeff[63] = -9

	var fixed [64]uint8
	inverseDCT8(fixed[:], 8, &coeff)

	var exact [64]float64
	idctNaive(&exact, &coeff)

	for i := 0; i < 64; i++ {
		want := exact[i]
		if want < 0 {
			want = 0
		}
		if want > 255 {
			want = 255
		}
		require.InDelta(t, want, float64(fixed[i]), 2.0, "sample %d", i)
	}
}

func TestInverseDCT8ZeroBlockIsMidGray(t *testing.T) {
	var coeff [64]int32
	var dst [64]uint8
	inverseDCT8(dst[:], 8, &coeff)
	for i, v := range dst {
		require.EqualValues(t, 128, v, "sample %d", i)
	}
}

func TestInverseDCT8PureDCIsUniform(t *testing.T) {
	var coeff [64]int32
	coeff[0] = 400
	var dst [64]uint8
	inverseDCT8(dst[:], 8, &coeff)
	first := dst[0]
	for i, v := range dst {
		require.Equal(t, first, v, "sample %d should match DC-only uniform block", i)
	}
	require.Greater(t, first, uint8(128))
}

func TestDequantizeAppliesNaturalOrderTable(t *testing.T) {
	qt := &quantTable{valid: true, precision: 8}
	for i := range qt.values {
		qt.values[i] = uint16(i + 1)
	}
	src := make([]int16, 64)
	for i := range src {
		src[i] = 2
	}
	var dst [64]int32
	dequantize(&dst, src, qt)
	for i, v := range dst {
		require.EqualValues(t, 2*(i+1), v)
	}
}
