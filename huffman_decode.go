package mjpeg

// Huffman entropy decode routines. Six routines cover every scan
// shape: a single-sample lossless MCU, a whole baseline/
// extended-sequential 8x8 block, and the four progressive passes (DC
// first/refine, AC first/refine). None of these routines can fail: a
// corrupt bitstream decodes to zero symbols and finite output, so a
// truncated file renders a degraded image rather than an error.

// huffmanState holds the DC predictors and the progressive AC end-of-
// band run counter, both reset together at SOI and at every consumed
// restart marker.
type huffmanState struct {
	lastDC [arithMaxCompsInScan]int32
	eobRun int
}

func (h *huffmanState) restart() {
	h.lastDC = [4]int32{}
	h.eobRun = 0
}

// huffDecodeMCULossless decodes one Huffman-coded difference per
// component and adds the running predictor value. out must have length
// >= len(comps); predictorIdx selects the h.lastDC slot (one per
// component in the scan).
func huffDecodeMCULossless(br *bitReader, tables *tableStore, h *huffmanState, comps []scanComponent, out []int16) {
	for j, sc := range comps {
		dc := &tables.huff[0][sc.dcTable]
		s := dc.decode(br)
		var diff int32
		if s != 0 {
			diff = br.receive(uint(s))
		}
		diff += h.lastDC[sc.predictorIdx]
		out[j] = int16(diff)
	}
}

// huffDecodeMCU decodes one whole interleaved or non-interleaved 8x8
// block: DC coefficient plus the full AC run, in natural (de-zig-
// zagged) order, per T.81 Annex F. out must have length 64 and is
// zeroed first.
func huffDecodeMCU(br *bitReader, tables *tableStore, h *huffmanState, sc scanComponent, out []int16) {
	for i := range out {
		out[i] = 0
	}

	dc := &tables.huff[0][sc.dcTable]
	ac := &tables.huff[1][sc.acTable]

	s := dc.decode(br)
	var diff int32
	if s != 0 {
		diff = br.receive(uint(s))
	}
	diff += h.lastDC[sc.predictorIdx]
	h.lastDC[sc.predictorIdx] = diff
	out[0] = int16(diff)

	for i := 1; i < 64; {
		symbol := ac.decode(br)
		if symbol == 0 {
			break // EOB
		}
		bits := int(symbol & 0x0F)
		if bits == 0 {
			i += 16 // ZRL
			continue
		}
		i += int(symbol >> 4)
		if i >= 64 {
			break
		}
		v := br.receive(uint(bits))
		out[zigZag[i]] = int16(v)
		i++
	}
}

// huffDecodeDCFirst decodes the first (most significant) bits of a
// block's DC coefficient in a progressive scan.
func huffDecodeDCFirst(br *bitReader, tables *tableStore, h *huffmanState, sc scanComponent, successiveLow uint, out []int16) {
	for i := range out {
		out[i] = 0
	}
	dc := &tables.huff[0][sc.dcTable]
	s := dc.decode(br)
	var diff int32
	if s != 0 {
		diff = br.receive(uint(s))
	}
	diff += h.lastDC[sc.predictorIdx]
	h.lastDC[sc.predictorIdx] = diff
	out[0] = int16(diff << successiveLow)
}

// huffDecodeDCRefine appends one refinement bit to an already-decoded
// DC coefficient.
func huffDecodeDCRefine(br *bitReader, successiveLow uint, out []int16) {
	out[0] |= int16(br.getBits(1) << successiveLow)
}

// huffDecodeACFirst decodes one spectral band of AC coefficients for a
// non-interleaved progressive first scan, carrying eob_run across
// blocks within the scan.
func huffDecodeACFirst(br *bitReader, tables *tableStore, h *huffmanState, acTable uint8, ss, se, successiveLow uint, out []int16) {
	ac := &tables.huff[1][acTable]

	if h.eobRun > 0 {
		h.eobRun--
		return
	}

	for i := ss; i <= se; i++ {
		symbol := ac.decode(br)
		run := int(symbol >> 4)
		s := int(symbol & 0x0F)
		i += uint(run)

		if s != 0 {
			if i > se {
				break
			}
			v := br.receive(uint(s))
			out[zigZag[i]] = int16(int32(v) << successiveLow)
		} else {
			if run != 15 {
				h.eobRun = 1 << uint(run)
				if run != 0 {
					h.eobRun += int(br.getBits(uint(run)))
				}
				h.eobRun--
				break
			}
		}
	}
}

// huffDecodeACRefine refines a previously-decoded spectral band,
// interleaving newly-significant coefficients with correction bits for
// already-significant ones, per T.81 section G.1.2.3.
func huffDecodeACRefine(br *bitReader, tables *tableStore, h *huffmanState, acTable uint8, ss, se, successiveLow uint, out []int16) {
	ac := &tables.huff[1][acTable]

	p1 := int16(1 << successiveLow)
	m1 := int16(-1 << successiveLow)

	k := int(ss)
	end := int(se)

	if h.eobRun == 0 {
		for k <= end {
			symbol := ac.decode(br)
			run := int(symbol >> 4)
			s := int32(symbol & 0x0F)

			if s != 0 {
				if br.getBits(1) != 0 {
					s = int32(p1)
				} else {
					s = int32(m1)
				}
			} else if run != 15 {
				h.eobRun = 1 << uint(run)
				if run != 0 {
					h.eobRun += int(br.getBits(uint(run)))
				}
				break
			}

			for {
				coef := &out[zigZag[k]]
				if *coef != 0 {
					if br.getBits(1) != 0 && (*coef&p1) == 0 {
						if *coef >= 0 {
							*coef += p1
						} else {
							*coef += m1
						}
					}
				} else {
					run--
					if run < 0 {
						break
					}
				}
				k++
				if k > end {
					break
				}
			}

			if s != 0 && k < 64 {
				out[zigZag[k]] = int16(s)
			}
			k++
		}
	}

	if h.eobRun > 0 {
		for ; k <= end; k++ {
			coef := &out[zigZag[k]]
			if *coef != 0 {
				if br.getBits(1) != 0 && (*coef&p1) == 0 {
					if *coef >= 0 {
						*coef += p1
					} else {
						*coef += m1
					}
				}
			}
		}
		h.eobRun--
	}
}
