package mjpeg

// QM-coder (arithmetic) entropy decoding per ITU-T T.81 Annex D,
// following the Independent JPEG Group's jdarith.c down to the packed
// 113-entry Qe/NMPS/NLPS table and the context-bin offsets (20, 14,
// 189, 217) of Annex F. Do not simplify this file without re-checking
// it against a conformance decode: a single transposed bin is a silent
// wrong-pixel bug, not a crash.

const (
	arithNumTables      = 16
	arithDCStatBins     = 64
	arithACStatBins     = 256
	arithMaxCompsInScan = 4
)

// jpegAritab packs, per probability state, the 16-bit Qe estimate, the
// next-state indices and the MPS switch flag:
// (Qe << 16) | (NMPS << 8) | (switch << 7) | NLPS. It holds states
// 0..112; the fixed state 113 used by fixedBin is supplied by arithDecode.
var jpegAritab = [113]uint32{
	0x5a1d0181, 0x2586020e, 0x11140310, 0x080b0412, 0x03d80514, 0x01da0617,
	0x00e50719, 0x006f081c, 0x0036091e, 0x001a0a21, 0x000d0b23, 0x00060c09,
	0x00030d0a, 0x00010d0c, 0x5a7f0f8f, 0x3f251024, 0x2cf21126, 0x207c1227,
	0x17b91328, 0x1182142a, 0x0cef152b, 0x09a1162d, 0x072f172e, 0x055c1830,
	0x04061931, 0x03031a33, 0x02401b34, 0x01b11c36, 0x01441d38, 0x00f51e39,
	0x00b71f3b, 0x008a203c, 0x0068213e, 0x004e223f, 0x003b2320, 0x002c0921,
	0x5ae125a5, 0x484c2640, 0x3a0d2741, 0x2ef12843, 0x261f2944, 0x1f332a45,
	0x19a82b46, 0x15182c48, 0x11772d49, 0x0e742e4a, 0x0bfb2f4b, 0x09f8304d,
	0x0861314e, 0x0706324f, 0x05cd3330, 0x04de3432, 0x040f3532, 0x03633633,
	0x02d43734, 0x025c3835, 0x01f83936, 0x01a43a37, 0x01603b38, 0x01253c39,
	0x00f63d3a, 0x00cb3e3b, 0x00ab3f3d, 0x008f203d, 0x5b1241c1, 0x4d044250,
	0x412c4351, 0x37d84452, 0x2fe84553, 0x293c4654, 0x23794756, 0x1edf4857,
	0x1aa94957, 0x174e4a48, 0x14244b48, 0x119c4c4a, 0x0f6b4d4a, 0x0d514e4b,
	0x0bb64f4d, 0x0a40304d, 0x583251d0, 0x4d1c5258, 0x438e5359, 0x3bdd545a,
	0x34ee555b, 0x2eae565c, 0x299a575d, 0x25164756, 0x557059d8, 0x4ca95a5f,
	0x44d95b60, 0x3e225c61, 0x38245d63, 0x32b45e63, 0x2e17565d, 0x56a860df,
	0x4f466165, 0x47e56266, 0x41cf6367, 0x3c3d6468, 0x375e5d63, 0x52316669,
	0x4c0f676a, 0x4639686b, 0x415e6367, 0x56276ae9, 0x50e76b6c, 0x4b85676d,
	0x55976d6e, 0x504f6b6f, 0x5a106fee, 0x55226d70, 0x59eb6ff0,
}

// arithBuffer is the raw byte cursor the QM-coder reads from: distinct
// from bitReader because the arithmetic coder consumes whole bytes
// (with 0xFF 0x00 destuffing) directly into its c/a/ct registers rather
// than an MSB-first bit accumulator.
type arithBuffer struct {
	data []byte
	pos  int
	end  int
}

func newArithBuffer(data []byte, start, end int) *arithBuffer {
	return &arithBuffer{data: data, pos: start, end: end}
}

// getByte reads one entropy-coded byte, silently destuffing 0xFF 0x00.
// It returns 0 once the cursor runs off the end or reaches a marker,
// leaving the cursor on the marker's 0xFF so handleRestart can find it.
func (a *arithBuffer) getByte() byte {
	if a.pos >= a.end {
		return 0
	}
	v := a.data[a.pos]
	if v == 0xFF {
		if a.pos+1 < a.end && a.data[a.pos+1] == 0x00 {
			a.pos += 2 // skip the stuff byte
			return 0xFF
		}
		return 0
	}
	a.pos++
	return v
}

// arithmeticState is the QM-coder's registers plus every context-
// adaptive statistics array, reset at SOI and at every consumed restart
// marker.
type arithmeticState struct {
	a, c uint32
	ct   int

	lastDC    [arithMaxCompsInScan]int32
	dcContext [arithMaxCompsInScan]int

	dcStats [arithNumTables][arithDCStatBins]uint8
	acStats [arithNumTables][arithACStatBins]uint8

	fixedBin [1]uint8 // fixedBin[0] == 113, a fixed 0.5-probability context for sign bits
}

func newArithmeticState() *arithmeticState {
	s := &arithmeticState{}
	s.fixedBin[0] = 113
	return s
}

// restart reseeds the coder's c/a/ct registers from the next two bytes
// of entropy data and clears every adaptive statistic (INITDEC, T.81
// Figure F.25).
func (s *arithmeticState) restart(buf *arithBuffer) {
	v0 := buf.getByte()
	v1 := buf.getByte()
	s.c = uint32(v0)<<8 | uint32(v1)
	s.a = 0x10000
	s.ct = 0
	s.dcStats = [arithNumTables][arithDCStatBins]uint8{}
	s.acStats = [arithNumTables][arithACStatBins]uint8{}
	s.lastDC = [arithMaxCompsInScan]int32{}
	s.dcContext = [arithMaxCompsInScan]int{}
}

// arithDecode is the QM-coder's single-bit decision procedure (T.81
// sections D.2.4/D.2.5): renormalizes a, conditionally exchanges the
// MPS/LPS interval based on the current probability estimate, and
// returns the decoded bit while updating *st's probability state.
func arithDecode(s *arithmeticState, buf *arithBuffer, st *uint8) int {
	for s.a < 0x8000 {
		s.ct--
		if s.ct < 0 {
			s.c = (s.c << 8) | uint32(buf.getByte())
			s.ct += 8
		}
		s.a <<= 1
	}

	sv := *st
	var qe uint32
	if idx := int(sv & 0x7F); idx < len(jpegAritab) {
		qe = jpegAritab[idx]
	} else {
		// State 113 (fixedBin): Qe 0x5a1d, both next states 113, no switch.
		qe = 0x5a1d7171
	}
	nextLPS := uint8(qe & 0xFF)
	qe >>= 8
	nextMPS := uint8(qe & 0xFF)
	qe >>= 8

	temp := s.a - qe
	s.a = temp
	temp <<= uint(s.ct)

	var decision int
	if s.c >= temp {
		s.c -= temp
		if s.a < qe {
			s.a = qe
			*st = (sv & 0x80) ^ nextMPS
		} else {
			s.a = qe
			*st = (sv & 0x80) ^ nextLPS
			sv ^= 0x80
		}
	} else if s.a < 0x8000 {
		if s.a < qe {
			*st = (sv & 0x80) ^ nextLPS
			sv ^= 0x80
		} else {
			*st = (sv & 0x80) ^ nextMPS
		}
	}
	decision = int(sv >> 7)
	return decision
}

// arithDecodeMCULossless decodes one differential sample per component,
// for a lossless scan: out holds the running reconstructed
// predictor value (not a bare diff), matching huffDecodeMCULossless's
// contract so lossless.go's predictor loop is entropy-coding-agnostic.
func arithDecodeMCULossless(buf *arithBuffer, tables *tableStore, s *arithmeticState, comps []scanComponent, out []int16) {
	for j, sc := range comps {
		ci := sc.predictorIdx
		tbl := sc.dcTable
		st := s.dcStats[tbl][s.dcContext[ci]:]

		if arithDecode(s, buf, &st[0]) != 0 {
			sign := arithDecode(s, buf, &st[1])
			base := st[2+sign:]

			m := arithDecode(s, buf, &base[0])
			if m != 0 {
				ext := s.dcStats[tbl][20:]
				i := 0
				for arithDecode(s, buf, &ext[i]) != 0 {
					m <<= 1
					i++
				}
			}

			dcL := int(tables.arith.dcL[tbl])
			dcU := int(tables.arith.dcU[tbl])
			if m < (1<<uint(dcL))>>1 {
				s.dcContext[ci] = 0
			} else if m > (1<<uint(dcU))>>1 {
				s.dcContext[ci] = 12 + sign*4
			} else {
				s.dcContext[ci] = 4 + sign*4
			}

			v := m
			mag := base[14:]
			i := 0
			for {
				m >>= 1
				if m == 0 {
					break
				}
				if arithDecode(s, buf, &mag[i]) != 0 {
					v |= m
				}
				i++
			}
			v++
			if sign != 0 {
				v = -v
			}
			s.lastDC[ci] += int32(v)
		} else {
			s.dcContext[ci] = 0
		}

		out[j] = int16(s.lastDC[ci])
	}
}

// arithDecodeDC runs the shared DC decode procedure used by both
// arithDecodeMCU and arithDecodeDCFirst: Figure F.19's conditioning and
// magnitude decode, updating s.lastDC[ci] and returning it.
func arithDecodeDC(buf *arithBuffer, tables *tableStore, s *arithmeticState, ci int, tbl uint8) int32 {
	st := s.dcStats[tbl][s.dcContext[ci]:]

	if arithDecode(s, buf, &st[0]) == 0 {
		s.dcContext[ci] = 0
		return s.lastDC[ci]
	}

	sign := arithDecode(s, buf, &st[1])
	base := st[2+sign:]

	m := arithDecode(s, buf, &base[0])
	if m != 0 {
		ext := s.dcStats[tbl][20:]
		i := 0
		for arithDecode(s, buf, &ext[i]) != 0 {
			m <<= 1
			i++
		}
	}

	dcL := int(tables.arith.dcL[tbl])
	dcU := int(tables.arith.dcU[tbl])
	if m < (1<<uint(dcL))>>1 {
		s.dcContext[ci] = 0
	} else if m > (1<<uint(dcU))>>1 {
		s.dcContext[ci] = 12 + sign*4
	} else {
		s.dcContext[ci] = 4 + sign*4
	}

	v := m
	mag := base[14:]
	i := 0
	for {
		m >>= 1
		if m == 0 {
			break
		}
		if arithDecode(s, buf, &mag[i]) != 0 {
			v |= m
		}
		i++
	}
	v++
	if sign != 0 {
		v = -v
	}
	s.lastDC[ci] += int32(v)
	return s.lastDC[ci]
}

// arithDecodeMCU decodes one whole interleaved or non-interleaved
// sequential block (DC + full AC run), T.81 Figures F.19/F.20.
func arithDecodeMCU(buf *arithBuffer, tables *tableStore, s *arithmeticState, sc scanComponent, out []int16) {
	for i := range out {
		out[i] = 0
	}

	ci := sc.predictorIdx
	out[0] = int16(arithDecodeDC(buf, tables, s, ci, sc.dcTable))

	acStats := &s.acStats[sc.acTable]
	acK := int(tables.arith.acK[sc.acTable])

	for k := 1; k < 64; k++ {
		st := acStats[3*(k-1):]
		if arithDecode(s, buf, &st[0]) != 0 {
			break
		}
		for arithDecode(s, buf, &st[1]) == 0 {
			st = acStats[3*k:]
			k++
			if k >= 64 {
				return
			}
		}

		sign := arithDecode(s, buf, &s.fixedBin[0])
		base := st[2:]

		m := arithDecode(s, buf, &base[0])
		if m != 0 {
			if arithDecode(s, buf, &base[0]) != 0 {
				m <<= 1
				var ext []uint8
				if k <= acK {
					ext = acStats[189:]
				} else {
					ext = acStats[217:]
				}
				i := 0
				for arithDecode(s, buf, &ext[i]) != 0 {
					m <<= 1
					i++
				}
			}
		}
		v := m
		mag := base[14:]
		i := 0
		for {
			m >>= 1
			if m == 0 {
				break
			}
			if arithDecode(s, buf, &mag[i]) != 0 {
				v |= m
			}
			i++
		}
		v++
		if sign != 0 {
			v = -v
		}
		out[zigZag[k]] = int16(v)
	}
}

// arithDecodeDCFirst decodes the DC coefficient's first pass in a
// progressive scan (T.81 G.2.1).
func arithDecodeDCFirst(buf *arithBuffer, tables *tableStore, s *arithmeticState, sc scanComponent, successiveLow uint, out []int16) {
	for i := range out {
		out[i] = 0
	}
	ci := sc.predictorIdx
	dc := arithDecodeDC(buf, tables, s, ci, sc.dcTable)
	out[0] = int16(dc << successiveLow)
}

// arithDecodeDCRefine appends one refinement bit using the fixed 0.5-
// probability context (T.81 G.2.2).
func arithDecodeDCRefine(buf *arithBuffer, s *arithmeticState, successiveLow uint, out []int16) {
	if arithDecode(s, buf, &s.fixedBin[0]) != 0 {
		out[0] |= int16(1 << successiveLow)
	}
}

// arithDecodeACFirst decodes one spectral band's first pass for a
// non-interleaved progressive scan (T.81 G.2.3).
func arithDecodeACFirst(buf *arithBuffer, tables *tableStore, s *arithmeticState, acTable uint8, ss, se, successiveLow uint, out []int16) {
	acStats := &s.acStats[acTable]
	acK := int(tables.arith.acK[acTable])

	k := int(ss)
	for k <= int(se) {
		st := acStats[3*(k-1):]
		if arithDecode(s, buf, &st[0]) != 0 {
			break // EOB
		}
		for arithDecode(s, buf, &st[1]) == 0 {
			st = acStats[3*k:]
			k++
		}

		sign := arithDecode(s, buf, &s.fixedBin[0])
		base := st[2:]

		m := arithDecode(s, buf, &base[0])
		if m != 0 {
			if arithDecode(s, buf, &base[0]) != 0 {
				m <<= 1
				var ext []uint8
				if k <= acK {
					ext = acStats[189:]
				} else {
					ext = acStats[217:]
				}
				i := 0
				for arithDecode(s, buf, &ext[i]) != 0 {
					m <<= 1
					i++
				}
			}
		}

		v := m
		mag := base[14:]
		i := 0
		for {
			m >>= 1
			if m == 0 {
				break
			}
			if arithDecode(s, buf, &mag[i]) != 0 {
				v |= m
			}
			i++
		}
		v++
		if sign != 0 {
			v = -v
		}
		out[zigZag[k]] = int16(v << successiveLow)
		k++
	}
}

// arithDecodeACRefine refines a previously-decoded spectral band: an
// EOBx scan establishes how far the previous
// pass actually wrote before the refinement loop begins.
func arithDecodeACRefine(buf *arithBuffer, s *arithmeticState, acTable uint8, ss, se, successiveLow uint, out []int16) {
	acStats := &s.acStats[acTable]

	p1 := int16(1 << successiveLow)
	m1 := int16(-1 << successiveLow)

	start, end := int(ss), int(se)

	kex := end
	for ; kex > 0; kex-- {
		if out[zigZag[kex]] != 0 {
			break
		}
	}

	for k := start; k <= end; k++ {
		st := acStats[3*(k-1):]

		if k > kex {
			if arithDecode(s, buf, &st[0]) != 0 {
				break // EOB
			}
		}

		for {
			coef := &out[zigZag[k]]
			if *coef != 0 {
				if arithDecode(s, buf, &st[2]) != 0 {
					if *coef < 0 {
						*coef += m1
					} else {
						*coef += p1
					}
				}
				break
			}

			if arithDecode(s, buf, &st[1]) != 0 {
				if arithDecode(s, buf, &s.fixedBin[0]) != 0 {
					*coef = m1
				} else {
					*coef = p1
				}
				break
			}

			st = acStats[3*k:]
			k++
			if k > end {
				break
			}
		}
	}
}
