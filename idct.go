package mjpeg

// Scalar fixed-point inverse DCT: two passes (rows then columns) over
// the already-dequantized natural-order coefficient block, producing
// one 8x8 plane of 8-bit samples. Even/odd butterfly with 12-bit
// fixed-point constants, 0x200 row bias with >>10, 0x10000+(128<<17)
// column bias with >>17, and an AC-all-zero DC-only fast path per row.

type idctButterfly struct {
	x0, x1, x2, x3 int32
	y0, y1, y2, y3 int32
}

func (b *idctButterfly) compute(s0, s1, s2, s3, s4, s5, s6, s7 int32) {
	n0 := (s2 + s6) * 2217
	t2 := n0 + s6*-7567
	t3 := n0 + s2*3135
	t0 := (s0 + s4) << 12
	t1 := (s0 - s4) << 12
	b.x0 = t0 + t3
	b.x3 = t0 - t3
	b.x1 = t1 + t2
	b.x2 = t1 - t2

	p1 := s7 + s1
	p2 := s5 + s3
	p3 := s7 + s3
	p4 := s5 + s1
	p5 := (p3 + p4) * 4816
	p1 = p1*-3685 + p5
	p2 = p2*-10497 + p5
	p3 = p3 * -8034
	p4 = p4 * -1597
	b.y0 = p1 + p3 + s7*1223
	b.y1 = p2 + p4 + s5*8410
	b.y2 = p2 + p3 + s3*12586
	b.y3 = p1 + p4 + s1*6149
}

func byteClamp(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// dequantize multiplies the natural-order coefficient block by its
// quantization table. src and qt are both natural order (zig-zag
// undone at table-load and decode time).
func dequantize(dst *[64]int32, src []int16, qt *quantTable) {
	for i := 0; i < 64; i++ {
		dst[i] = int32(src[i]) * int32(qt.values[i])
	}
}

// inverseDCT8 runs the row pass then the column pass over a dequantized
// 8x8 coefficient block, writing 64 clamped 8-bit samples to dst in
// row-major order with the given stride.
func inverseDCT8(dst []uint8, stride int, coeff *[64]int32) {
	var temp [64]int32

	for i := 0; i < 8; i++ {
		row := coeff[i*8 : i*8+8]
		if row[1] != 0 || row[2] != 0 || row[3] != 0 || row[4] != 0 ||
			row[5] != 0 || row[6] != 0 || row[7] != 0 {
			var b idctButterfly
			b.compute(row[0], row[1], row[2], row[3], row[4], row[5], row[6], row[7])
			const bias = 0x200
			b.x0 += bias
			b.x1 += bias
			b.x2 += bias
			b.x3 += bias
			v := temp[i*8 : i*8+8]
			v[0] = (b.x0 + b.y3) >> 10
			v[1] = (b.x1 + b.y2) >> 10
			v[2] = (b.x2 + b.y1) >> 10
			v[3] = (b.x3 + b.y0) >> 10
			v[4] = (b.x3 - b.y0) >> 10
			v[5] = (b.x2 - b.y1) >> 10
			v[6] = (b.x1 - b.y2) >> 10
			v[7] = (b.x0 - b.y3) >> 10
		} else {
			dc := row[0] << 2
			v := temp[i*8 : i*8+8]
			for j := range v {
				v[j] = dc
			}
		}
	}

	for i := 0; i < 8; i++ {
		var b idctButterfly
		b.compute(temp[i], temp[i+8], temp[i+16], temp[i+24], temp[i+32], temp[i+40], temp[i+48], temp[i+56])
		const bias = 0x10000 + (128 << 17)
		b.x0 += bias
		b.x1 += bias
		b.x2 += bias
		b.x3 += bias
		dst[0*stride+i] = byteClamp((b.x0 + b.y3) >> 17)
		dst[1*stride+i] = byteClamp((b.x1 + b.y2) >> 17)
		dst[2*stride+i] = byteClamp((b.x2 + b.y1) >> 17)
		dst[3*stride+i] = byteClamp((b.x3 + b.y0) >> 17)
		dst[4*stride+i] = byteClamp((b.x3 - b.y0) >> 17)
		dst[5*stride+i] = byteClamp((b.x2 - b.y1) >> 17)
		dst[6*stride+i] = byteClamp((b.x1 - b.y2) >> 17)
		dst[7*stride+i] = byteClamp((b.x0 - b.y3) >> 17)
	}
}

