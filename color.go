package mjpeg

import "math"

// Chroma upsampling and color-space conversion: full-range BT.601-ish
// fixed-point coefficients and shift-based nearest-neighbor upsampling
// (source index x >> shift, where shift is log2(hMax) -
// log2(componentSampling)). Power-of-two sampling ratios are the only
// ones real encoders emit, so the shift covers 1x, 1x2, 2x1, 2x2 and
// the 4:1 cases in one loop.

// PixelFormat names an output pixel layout.
type PixelFormat int

const (
	FormatGray8 PixelFormat = iota
	FormatRGB
	FormatBGR
	FormatRGBA
	FormatBGRA
)

func (f PixelFormat) bytesPerPixel() int {
	switch f {
	case FormatGray8:
		return 1
	case FormatRGB, FormatBGR:
		return 3
	case FormatRGBA, FormatBGRA:
		return 4
	}
	return 0
}

// log2Pow2 returns log2(v) for a power-of-two v in [1,4], the sampling
// factor range real encoders emit.
func log2Pow2(v int) int {
	switch v {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	}
	return 0
}

// computeCbCr computes the full-range YCbCr-to-RGB offsets added to a
// luma sample. cb and cr are the
// raw 0..255 chroma samples; the fixed-point bias terms already fold in
// the -128 centering (91750*128 - 11711232 == 32768, i.e. +0.5 for the
// final >>16 rounding).
func computeCbCr(cb, cr int32) (r, g, b int32) {
	r = (cr*91750 - 11711232) >> 16
	g = (cb*-22479 + cr*-46596 + 8874368) >> 16
	b = (cb*115671 - 14773120) >> 16
	return
}

// packPixel writes one converted pixel into dst at the given byte
// offset according to format, clamping rather than wrapping.
func packPixel(dst []byte, off int, format PixelFormat, y, r, g, b int32) {
	rr := byteClamp(y + r)
	gg := byteClamp(y + g)
	bb := byteClamp(y + b)
	switch format {
	case FormatRGB:
		dst[off], dst[off+1], dst[off+2] = rr, gg, bb
	case FormatBGR:
		dst[off], dst[off+1], dst[off+2] = bb, gg, rr
	case FormatRGBA:
		dst[off], dst[off+1], dst[off+2], dst[off+3] = rr, gg, bb, 0xff
	case FormatBGRA:
		dst[off], dst[off+1], dst[off+2], dst[off+3] = bb, gg, rr, 0xff
	}
}

// computeYCCK inverts Adobe's YCCK encoding back to the stored-CMY
// convention (255 - ink coverage), with dedicated 12-bit fixed-point
// constants; K passes through untouched.
func computeYCCK(y0, cb, cr int32) (c, m, yc int32) {
	c = 255 - (y0 + ((5734*cr - 735052) >> 12))
	m = 255 - (y0 + ((-1410*cb - 2925*cr + 554844) >> 12))
	yc = 255 - (y0 + ((7258*cb - 929038) >> 12))
	return
}

// linearToSrgb maps a linear-light 8-bit value to its sRGB-encoded
// counterpart. The C*K/255 multiply happens in linear light, so the
// CMYK/YCCK output path re-encodes through this table before writing.
var linearToSrgb = buildLinearToSrgbTable()

func buildLinearToSrgbTable() (t [256]uint8) {
	for i := range t {
		l := float64(i) / 255
		s := l * 12.92
		if l > 0.0031308 {
			s = 1.055*math.Pow(l, 1/2.4) - 0.055
		}
		t[i] = uint8(math.Round(s * 255))
	}
	return
}

// packCMYK multiplies the stored-convention CMY channels (255 - ink)
// by K with round-to-nearest, re-encodes linear to sRGB, and writes
// one pixel.
func packCMYK(dst []byte, off int, format PixelFormat, c, m, yc, k int32) {
	rr := linearToSrgb[byteClamp((c*k+127)/255)]
	gg := linearToSrgb[byteClamp((m*k+127)/255)]
	bb := linearToSrgb[byteClamp((yc*k+127)/255)]
	switch format {
	case FormatRGB:
		dst[off], dst[off+1], dst[off+2] = rr, gg, bb
	case FormatBGR:
		dst[off], dst[off+1], dst[off+2] = bb, gg, rr
	case FormatRGBA:
		dst[off], dst[off+1], dst[off+2], dst[off+3] = rr, gg, bb, 0xff
	case FormatBGRA:
		dst[off], dst[off+1], dst[off+2], dst[off+3] = bb, gg, rr, 0xff
	}
}

// componentPlane is one component's decoded samples for an MCU row
// band: width x height 8-bit samples (post-IDCT) plus the shift amount
// needed to map a full-resolution pixel coordinate to this plane's
// coordinate.
type componentPlane struct {
	samples []byte
	stride  int
	hShift  int
	vShift  int
}

// convertRowY writes one row of output from a single luma plane.
func convertRowY(dst []byte, format PixelFormat, y []byte) {
	bpp := format.bytesPerPixel()
	for x, v := range y {
		switch format {
		case FormatGray8:
			dst[x] = v
		default:
			off := x * bpp
			for i := 0; i < bpp; i++ {
				dst[off+i] = v
			}
			if format == FormatRGBA || format == FormatBGRA {
				dst[off+3] = 0xff
			}
		}
	}
}

// convertRowYCbCr writes one row of RGB(A)/BGR(A) output from three
// component planes (Y, Cb, Cr), upsampling chroma by the shift-based
// nearest-neighbor rule.
func convertRowYCbCr(dst []byte, format PixelFormat, width, row int, planes [3]componentPlane) {
	bpp := format.bytesPerPixel()
	y := planes[0]
	cbp := planes[1]
	crp := planes[2]

	ySrc := y.samples[(row>>y.vShift)*y.stride:]
	cbSrc := cbp.samples[(row>>cbp.vShift)*cbp.stride:]
	crSrc := crp.samples[(row>>crp.vShift)*crp.stride:]

	for x := 0; x < width; x++ {
		yy := int32(ySrc[x>>y.hShift])
		cb := int32(cbSrc[x>>cbp.hShift])
		cr := int32(crSrc[x>>crp.hShift])
		r, g, b := computeCbCr(cb, cr)
		packPixel(dst, x*bpp, format, yy, r, g, b)
	}
}

// convertRowCMYK writes one row of RGB(A)/BGR(A) output from four
// component planes, handling both plain CMYK (transform ==
// TransformUnknown, planes already hold the stored CMY convention) and
// Adobe's YCCK (transform == TransformYCCK, first three planes are
// Y/Cb/Cr and go through the YCCK inverse before the K multiply).
func convertRowCMYK(dst []byte, format PixelFormat, width, row int, transform ColorTransform, planes [4]componentPlane) {
	bpp := format.bytesPerPixel()
	p0, p1, p2, p3 := planes[0], planes[1], planes[2], planes[3]

	s0 := p0.samples[(row>>p0.vShift)*p0.stride:]
	s1 := p1.samples[(row>>p1.vShift)*p1.stride:]
	s2 := p2.samples[(row>>p2.vShift)*p2.stride:]
	s3 := p3.samples[(row>>p3.vShift)*p3.stride:]

	for x := 0; x < width; x++ {
		k := int32(s3[x>>p3.hShift])
		c0 := int32(s0[x>>p0.hShift])
		c1 := int32(s1[x>>p1.hShift])
		c2 := int32(s2[x>>p2.hShift])

		c, m, yc := c0, c1, c2
		if transform == TransformYCCK {
			c, m, yc = computeYCCK(c0, c1, c2)
		}
		packCMYK(dst, x*bpp, format, c, m, yc, k)
	}
}
