package mjpeg

// Forward DCT and quantization for the baseline Huffman encoder. fdct
// is the IJG jpeg_fdct_islow-derived integer transform, in the natural
// (not zig-zag) block order this package uses everywhere else; it
// leaves every coefficient scaled by a factor of 8 relative to the
// unscaled DCT-II, and quantizeBlock applies the matching divide-by-8q
// step.

const (
	fdctFix0298631336 = 2446
	fdctFix0390180644 = 3196
	fdctFix0541196100 = 4433
	fdctFix0765366865 = 6270
	fdctFix0899976223 = 7373
	fdctFix1175875602 = 9633
	fdctFix1501321110 = 12299
	fdctFix1847759065 = 15137
	fdctFix1961570560 = 16069
	fdctFix2053119869 = 16819
	fdctFix2562915447 = 20995
	fdctFix3072711026 = 25172

	fdctConstBits = 13
	fdctPass1Bits = 2
)

// fdct runs the IJG-derived two-pass integer forward DCT in place over
// a natural-order 8x8 block of centered (-128..127) samples, leaving
// each coefficient scaled by a factor of 8 relative to the unscaled
// DCT-II, per div's caller in quantizeBlock.
func fdct(b *[64]int32) {
	for i := 0; i < 8; i++ {
		row := b[i*8 : i*8+8]
		tmp0 := row[0] + row[7]
		tmp7 := row[0] - row[7]
		tmp1 := row[1] + row[6]
		tmp6 := row[1] - row[6]
		tmp2 := row[2] + row[5]
		tmp5 := row[2] - row[5]
		tmp3 := row[3] + row[4]
		tmp4 := row[3] - row[4]

		tmp10 := tmp0 + tmp3
		tmp13 := tmp0 - tmp3
		tmp11 := tmp1 + tmp2
		tmp12 := tmp1 - tmp2

		row[0] = (tmp10 + tmp11) << fdctPass1Bits
		row[4] = (tmp10 - tmp11) << fdctPass1Bits

		z1 := (tmp12 + tmp13) * fdctFix0541196100
		row[2] = fdctDescale(z1+tmp13*fdctFix0765366865, fdctConstBits-fdctPass1Bits)
		row[6] = fdctDescale(z1-tmp12*fdctFix1847759065, fdctConstBits-fdctPass1Bits)

		z1 = tmp4 + tmp7
		z2 := tmp5 + tmp6
		z3 := tmp4 + tmp6
		z4 := tmp5 + tmp7
		z5 := (z3 + z4) * fdctFix1175875602

		t4 := tmp4 * fdctFix0298631336
		t5 := tmp5 * fdctFix2053119869
		t6 := tmp6 * fdctFix3072711026
		t7 := tmp7 * fdctFix1501321110
		z1 = z1 * -fdctFix0899976223
		z2 = z2 * -fdctFix2562915447
		z3 = z3*-fdctFix1961570560 + z5
		z4 = z4*-fdctFix0390180644 + z5

		row[7] = fdctDescale(t4+z1+z3, fdctConstBits-fdctPass1Bits)
		row[5] = fdctDescale(t5+z2+z4, fdctConstBits-fdctPass1Bits)
		row[3] = fdctDescale(t6+z2+z3, fdctConstBits-fdctPass1Bits)
		row[1] = fdctDescale(t7+z1+z4, fdctConstBits-fdctPass1Bits)
	}

	for i := 0; i < 8; i++ {
		tmp0 := b[i] + b[56+i]
		tmp7 := b[i] - b[56+i]
		tmp1 := b[8+i] + b[48+i]
		tmp6 := b[8+i] - b[48+i]
		tmp2 := b[16+i] + b[40+i]
		tmp5 := b[16+i] - b[40+i]
		tmp3 := b[24+i] + b[32+i]
		tmp4 := b[24+i] - b[32+i]

		tmp10 := tmp0 + tmp3
		tmp13 := tmp0 - tmp3
		tmp11 := tmp1 + tmp2
		tmp12 := tmp1 - tmp2

		b[i] = fdctDescale(tmp10+tmp11, fdctPass1Bits)
		b[32+i] = fdctDescale(tmp10-tmp11, fdctPass1Bits)

		z1 := (tmp12 + tmp13) * fdctFix0541196100
		b[16+i] = fdctDescale(z1+tmp13*fdctFix0765366865, fdctConstBits+fdctPass1Bits)
		b[48+i] = fdctDescale(z1-tmp12*fdctFix1847759065, fdctConstBits+fdctPass1Bits)

		z1 = tmp4 + tmp7
		z2 := tmp5 + tmp6
		z3 := tmp4 + tmp6
		z4 := tmp5 + tmp7
		z5 := (z3 + z4) * fdctFix1175875602

		t4 := tmp4 * fdctFix0298631336
		t5 := tmp5 * fdctFix2053119869
		t6 := tmp6 * fdctFix3072711026
		t7 := tmp7 * fdctFix1501321110
		z1 = z1 * -fdctFix0899976223
		z2 = z2 * -fdctFix2562915447
		z3 = z3*-fdctFix1961570560 + z5
		z4 = z4*-fdctFix0390180644 + z5

		b[56+i] = fdctDescale(t4+z1+z3, fdctConstBits+fdctPass1Bits)
		b[40+i] = fdctDescale(t5+z2+z4, fdctConstBits+fdctPass1Bits)
		b[24+i] = fdctDescale(t6+z2+z3, fdctConstBits+fdctPass1Bits)
		b[8+i] = fdctDescale(t7+z1+z4, fdctConstBits+fdctPass1Bits)
	}
}

func fdctDescale(x, n int32) int32 {
	return (x + (1 << (n - 1))) >> uint(n)
}

// quantizeBlock divides every fdct coefficient (already scaled by 8) by
// 8*qt[i] with round-to-nearest, producing the natural-order quantized
// coefficients the Huffman encoder DC/AC routines expect, per
// writer.go's div(b[...], 8*quant[...]).
func quantizeBlock(out *[64]int16, coeff *[64]int32, qt *quantTable) {
	for i := 0; i < 64; i++ {
		out[i] = int16(fdctDiv(coeff[i], 8*int32(qt.values[i])))
	}
}

// fdctDiv divides with round-to-nearest of the magnitude; the rounding
// term needs an explicit sign fixup since integer division truncates
// toward zero.
func fdctDiv(a, b int32) int32 {
	if a >= 0 {
		return (a + b/2) / b
	}
	return -((-a + b/2) / b)
}
