package mjpeg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeCbCrNeutralChromaIsZero(t *testing.T) {
	r, g, b := computeCbCr(128, 128)
	require.Zero(t, r)
	require.Zero(t, g)
	require.Zero(t, b)
}

func TestComputeCbCrPrimaries(t *testing.T) {
	// Full-range BT.601-ish: maximum Cr pushes red up, maximum Cb pushes
	// blue up, and both pull green down.
	r, g, b := computeCbCr(255, 255)
	require.Greater(t, r, int32(170))
	require.Less(t, g, int32(-130))
	require.Greater(t, b, int32(220))

	r, g, b = computeCbCr(0, 0)
	require.Less(t, r, int32(-170))
	require.Greater(t, g, int32(130))
	require.Less(t, b, int32(-220))
}

func TestPackPixelChannelOrder(t *testing.T) {
	dst := make([]byte, 4)

	packPixel(dst, 0, FormatRGB, 100, 50, -20, 10)
	require.Equal(t, []byte{150, 80, 110}, dst[:3])

	packPixel(dst, 0, FormatBGR, 100, 50, -20, 10)
	require.Equal(t, []byte{110, 80, 150}, dst[:3])

	packPixel(dst, 0, FormatRGBA, 100, 50, -20, 10)
	require.Equal(t, []byte{150, 80, 110, 255}, dst)

	packPixel(dst, 0, FormatBGRA, 300, 0, 0, 0)
	require.Equal(t, []byte{255, 255, 255, 255}, dst, "oversaturated luma clamps, alpha stays opaque")
}

func TestConvertRowYCbCrUpsamples420(t *testing.T) {
	// A 4-pixel row from a 4:2:0 layout: luma at full resolution, chroma
	// at half resolution replicated 2x horizontally.
	y := componentPlane{samples: []byte{10, 20, 30, 40}, stride: 4}
	cb := componentPlane{samples: []byte{128, 128}, stride: 2, hShift: 1, vShift: 1}
	cr := componentPlane{samples: []byte{128, 128}, stride: 2, hShift: 1, vShift: 1}

	dst := make([]byte, 4*3)
	convertRowYCbCr(dst, FormatRGB, 4, 0, [3]componentPlane{y, cb, cr})

	for x := 0; x < 4; x++ {
		expected := byte(10 * (x + 1))
		require.Equal(t, []byte{expected, expected, expected}, dst[x*3:x*3+3], "pixel %d", x)
	}
}

func TestConvertRowYGrayToColor(t *testing.T) {
	dst := make([]byte, 2*4)
	convertRowY(dst, FormatRGBA, []byte{7, 200})
	require.Equal(t, []byte{7, 7, 7, 255, 200, 200, 200, 255}, dst)

	gray := make([]byte, 2)
	convertRowY(gray, FormatGray8, []byte{7, 200})
	require.Equal(t, []byte{7, 200}, gray)
}

func TestConvertRowCMYKNeutral(t *testing.T) {
	// Plain CMYK (no Adobe transform): the stored planes already hold
	// 255 - ink, so each output channel is stored * K / 255 (rounded)
	// pushed through the linear-to-sRGB table. Stored 255 with K=255 is
	// paper white; K=0 is black regardless of the other planes.
	plane := func(v byte) componentPlane {
		return componentPlane{samples: []byte{v}, stride: 1}
	}

	dst := make([]byte, 3)
	convertRowCMYK(dst, FormatRGB, 1, 0, TransformUnknown,
		[4]componentPlane{plane(255), plane(255), plane(255), plane(255)})
	require.Equal(t, []byte{255, 255, 255}, dst, "no ink with full K is white")

	convertRowCMYK(dst, FormatRGB, 1, 0, TransformUnknown,
		[4]componentPlane{plane(255), plane(255), plane(255), plane(0)})
	require.Equal(t, []byte{0, 0, 0}, dst, "K=0 is black")

	convertRowCMYK(dst, FormatRGB, 1, 0, TransformUnknown,
		[4]componentPlane{plane(0), plane(0), plane(0), plane(255)})
	require.Equal(t, []byte{0, 0, 0}, dst, "full ink is black")
}

func TestConvertRowYCCKNeutralGray(t *testing.T) {
	// A neutral YCCK sample (Y=128, Cb=Cr=128, K=255) inverts to
	// C=M=Y=128 exactly (each chroma term evaluates to -1 after the
	// >>12, cancelling the luma's +128 offset against 255 - 127), so
	// the output is the sRGB encoding of mid linear gray.
	plane := func(v byte) componentPlane {
		return componentPlane{samples: []byte{v}, stride: 1}
	}
	dst := make([]byte, 3)
	convertRowCMYK(dst, FormatRGB, 1, 0, TransformYCCK,
		[4]componentPlane{plane(128), plane(128), plane(128), plane(255)})
	mid := linearToSrgb[128]
	require.Equal(t, []byte{mid, mid, mid}, dst)
}

func TestComputeYCCKNeutral(t *testing.T) {
	c, m, yc := computeYCCK(128, 128, 128)
	require.EqualValues(t, 128, c)
	require.EqualValues(t, 128, m)
	require.EqualValues(t, 128, yc)
}

func TestLinearToSrgbTableShape(t *testing.T) {
	require.EqualValues(t, 0, linearToSrgb[0])
	require.EqualValues(t, 255, linearToSrgb[255])
	for i := 1; i < 256; i++ {
		require.GreaterOrEqual(t, linearToSrgb[i], linearToSrgb[i-1], "table must be monotonic at %d", i)
	}
	// The encode curve lifts dark linear values well above identity.
	require.Greater(t, linearToSrgb[16], uint8(60))
}

func TestPixelFormatWidths(t *testing.T) {
	require.Equal(t, 1, FormatGray8.bytesPerPixel())
	require.Equal(t, 3, FormatRGB.bytesPerPixel())
	require.Equal(t, 3, FormatBGR.bytesPerPixel())
	require.Equal(t, 4, FormatRGBA.bytesPerPixel())
	require.Equal(t, 4, FormatBGRA.bytesPerPixel())
}
