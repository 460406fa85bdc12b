package mjpeg

import (
	"context"
	"encoding/binary"

	"golang.org/x/sync/errgroup"
)

// Scan and MCU scheduling. Entropy decode is inherently sequential
// (every scan is one bitstream) unless each MCU row is its own restart
// interval; the IDCT + color-conversion pass touches each MCU row
// independently and runs across an errgroup worker pool either way.

// renderRowsPerBand is the batch size of the render stage: IDCT and
// color conversion dispatch in bands of this many MCU rows.
const renderRowsPerBand = 8

// entropyCursor walks the entropy-coded payload of one scan, tracking
// both bit-level (Huffman) and byte-level (arithmetic) positions so
// handleRestart can resynchronize either one after consuming an RSTn
// marker.
type entropyCursor struct {
	data []byte
	pos  int
	end  int

	br *bitReader
	ab *arithBuffer
}

func newEntropyCursor(data []byte, start, end int, arithmetic bool) *entropyCursor {
	c := &entropyCursor{data: data, pos: start, end: end}
	if arithmetic {
		c.ab = newArithBuffer(data, start, end)
	} else {
		c.br = newBitReader(data, start, end)
	}
	return c
}

// isRestartMarkerAt reports whether data[p:p+2] is 0xFF 0xD0-0xD7.
func isRestartMarkerAt(data []byte, p int) bool {
	return p+1 < len(data) && data[p] == 0xFF && data[p+1] >= 0xD0 && data[p+1] <= 0xD7
}

// handleRestart consumes one expected RSTn marker at the current byte-
// aligned position, advancing the cursor past it. It returns false (no
// marker present, e.g. truncated stream) without erroring; decode
// carries on rather than aborting.
func (c *entropyCursor) handleRestart() bool {
	var bytePos int
	if c.br != nil {
		bytePos = c.br.pos
	} else {
		bytePos = c.ab.pos
	}
	// Skip any stuffed padding before the marker is found.
	for bytePos+1 < c.end && c.data[bytePos] == 0xFF && c.data[bytePos+1] == 0xFF {
		bytePos++
	}
	if !isRestartMarkerAt(c.data, bytePos) {
		return false
	}
	bytePos += 2
	if c.br != nil {
		c.br.pos = bytePos
		c.br.restart()
	} else {
		c.ab.pos = bytePos
	}
	return true
}

// scanRunner executes one scan's entropy decode loop over every MCU
// (or, for non-interleaved/lossless scans, every block/sample),
// dispatching through the Huffman or arithmetic routines and applying
// the restart interval.
type scanRunner struct {
	p       *Parser
	cursor  *entropyCursor
	huff    *huffmanState
	arith   *arithmeticState
	isArith bool
}

func newScanRunner(p *Parser, cursor *entropyCursor) *scanRunner {
	r := &scanRunner{p: p, cursor: cursor, isArith: p.frame.entropy == ArithmeticCoding}
	if r.isArith {
		r.arith = newArithmeticState()
		r.arith.restart(cursor.ab)
	} else {
		r.huff = &huffmanState{}
	}
	return r
}

// decodeInterleavedScan runs one baseline/extended-sequential or
// progressive DC scan across every MCU of the frame, in component-
// major block order within each MCU.
func (r *scanRunner) decodeInterleavedScan(sh *scanHeader, pass func(sc scanComponent, blk []int16)) {
	f := r.p.frame
	restartCount := 0
	for my := 0; my < f.ymcu; my++ {
		for mx := 0; mx < f.xmcu; mx++ {
			for _, sc := range sh.components {
				comp := &f.components[sc.componentIndex]
				for by := 0; by < int(comp.VSampling); by++ {
					for bx := 0; bx < int(comp.HSampling); bx++ {
						blockX := mx*int(comp.HSampling) + bx
						blockY := my*int(comp.VSampling) + by
						pass(sc, f.blockAt(sc.componentIndex, blockX, blockY))
					}
				}
			}
			if f.restartInterval > 0 {
				restartCount++
				if restartCount == f.restartInterval && !(my == f.ymcu-1 && mx == f.xmcu-1) {
					restartCount = 0
					if r.cursor.handleRestart() {
						if r.isArith {
							r.arith.restart(r.cursor.ab)
						} else {
							r.huff.restart()
						}
					}
				}
			}
		}
	}
}

// decodeNonInterleavedScan runs one progressive AC scan, which by T.81
// rule always carries exactly one component and is scanned block by
// block in that component's own grid (no MCU grouping).
func (r *scanRunner) decodeNonInterleavedScan(sc scanComponent, pass func(blk []int16)) {
	f := r.p.frame
	comp := &f.components[sc.componentIndex]
	restartCount := 0
	last := comp.blocksWide*comp.blocksHigh - 1
	n := 0
	for by := 0; by < comp.blocksHigh; by++ {
		for bx := 0; bx < comp.blocksWide; bx++ {
			pass(f.blockAt(sc.componentIndex, bx, by))
			if f.restartInterval > 0 {
				restartCount++
				if restartCount == f.restartInterval && n != last {
					restartCount = 0
					if r.cursor.handleRestart() {
						if r.isArith {
							r.arith.restart(r.cursor.ab)
						} else {
							r.huff.restart()
						}
					}
				}
			}
			n++
		}
	}
}

// runScan dispatches one already-parsed SOS to the correct Huffman or
// arithmetic routine set based on the frame's mode and the scan
// header's spectral selection / successive approximation fields.
func (r *scanRunner) runScan(sh *scanHeader) error {
	f := r.p.frame
	tables := r.p.tables

	switch f.mode {
	case ModeBaselineSequential, ModeExtendedSequential:
		r.decodeInterleavedScan(sh, func(sc scanComponent, blk []int16) {
			if r.isArith {
				arithDecodeMCU(r.cursor.ab, tables, r.arith, sc, blk)
			} else {
				huffDecodeMCU(r.cursor.br, tables, r.huff, sc, blk)
			}
		})
		return nil

	case ModeProgressive:
		if sh.ss == 0 {
			if sh.ah == 0 {
				r.decodeInterleavedScan(sh, func(sc scanComponent, blk []int16) {
					if r.isArith {
						arithDecodeDCFirst(r.cursor.ab, tables, r.arith, sc, uint(sh.al), blk)
					} else {
						huffDecodeDCFirst(r.cursor.br, tables, r.huff, sc, uint(sh.al), blk)
					}
				})
			} else {
				r.decodeInterleavedScan(sh, func(sc scanComponent, blk []int16) {
					if r.isArith {
						arithDecodeDCRefine(r.cursor.ab, r.arith, uint(sh.al), blk)
					} else {
						huffDecodeDCRefine(r.cursor.br, uint(sh.al), blk)
					}
				})
			}
			return nil
		}

		sc := sh.components[0]
		if sh.ah == 0 {
			r.decodeNonInterleavedScan(sc, func(blk []int16) {
				if r.isArith {
					arithDecodeACFirst(r.cursor.ab, tables, r.arith, sc.acTable, uint(sh.ss), uint(sh.se), uint(sh.al), blk)
				} else {
					huffDecodeACFirst(r.cursor.br, tables, r.huff, sc.acTable, uint(sh.ss), uint(sh.se), uint(sh.al), blk)
				}
			})
		} else {
			r.decodeNonInterleavedScan(sc, func(blk []int16) {
				if r.isArith {
					arithDecodeACRefine(r.cursor.ab, r.arith, sc.acTable, uint(sh.ss), uint(sh.se), uint(sh.al), blk)
				} else {
					huffDecodeACRefine(r.cursor.br, tables, r.huff, sc.acTable, uint(sh.ss), uint(sh.se), uint(sh.al), blk)
				}
			})
		}
		return nil

	default:
		return unsupported("runScan", "lossless scans use decodeLosslessScan, not runScan")
	}
}

// findScanEnd returns the offset of the byte following this scan's
// entropy-coded data: the next non-restart marker at a byte-aligned
// position.
func findScanEnd(data []byte, start int) int {
	i := start
	for i+1 < len(data) {
		if data[i] == 0xFF && data[i+1] != 0x00 && !isRestartMarkerAt(data, i) {
			return i
		}
		i++
	}
	return len(data)
}

// parseScanHeader reads one SOS payload into a scanHeader, resolving
// each scan component's table selectors and predictor slot against the
// frame's component list.
func parseScanHeader(f *frame, payload []byte) (*scanHeader, error) {
	if len(payload) < 1 {
		return nil, malformed("parseScanHeader", "empty SOS segment")
	}
	n := int(payload[0])
	if n == 0 || n > 4 || 1+n*2+3 > len(payload) {
		return nil, malformed("parseScanHeader", "invalid scan component count")
	}
	sh := &scanHeader{}
	for i := 0; i < n; i++ {
		b := payload[1+i*2:]
		id := b[0]
		ci := -1
		for idx, c := range f.components {
			if c.ID == id {
				ci = idx
				break
			}
		}
		if ci < 0 {
			return nil, malformed("parseScanHeader", "scan references unknown component id %d", id)
		}
		sh.components = append(sh.components, scanComponent{
			componentIndex: ci,
			dcTable:        b[1] >> 4,
			acTable:        b[1] & 0x0F,
			predictorIdx:   i,
		})
	}
	tail := payload[1+n*2:]
	sh.ss, sh.se, sh.ah, sh.al = tail[0], tail[1], tail[2]>>4, tail[2]&0x0F
	sh.predictor = sh.ss
	return sh, nil
}

// decodeFrame walks every scan from p.pos to EOI, decoding coefficients
// (progressive/sequential) or samples (lossless) and returns the
// converted Surface. The returned string carries a diagnostic when the
// marker sequence after a scan is cut short or unreadable (no EOI, a
// non-marker byte, a truncated or overlong segment): the EOI marker is
// treated as optional and a corrupt entropy-coded payload still
// renders, so such streams stop early and convert whatever decoded
// instead of failing. An entropy decoder that loses synchronization
// adds no diagnostic of its own.
func decodeFrame(ctx context.Context, p *Parser, format PixelFormat, onProgress func(int, int)) (*Surface, string, error) {
	f := p.frame
	if f.mode == ModeLossless {
		s, err := decodeLosslessFrame(ctx, p, format)
		return s, "", err
	}

	f.allocateCoeffs()
	defer f.freeCoeffs()

	pos := p.pos
	data := p.data
	tables := p.tables
	info := ""

	for {
		if pos+1 >= len(data) {
			info = "stream ends without EOI"
			break
		}
		marker := uint(binary.BigEndian.Uint16(data[pos:]))
		if marker == markerEOI {
			break
		}
		if marker < markerTEM {
			info = "invalid marker in scan sequence; rendering decoded scans"
			break
		}
		if pos+4 > len(data) {
			info = "truncated segment header; rendering decoded scans"
			break
		}
		segLen := int(binary.BigEndian.Uint16(data[pos+2:]))
		if segLen < 2 || pos+2+segLen > len(data) {
			info = "segment length past end of stream; rendering decoded scans"
			break
		}
		payload := data[pos+4 : pos+2+segLen]

		switch marker {
		case markerDHT:
			if err := p.parseDHT(payload); err != nil {
				return nil, "", err
			}
			pos += 2 + segLen
		case markerDAC:
			if err := p.parseDAC(payload); err != nil {
				return nil, "", err
			}
			pos += 2 + segLen
		case markerDRI:
			if err := p.parseDRI(payload); err != nil {
				return nil, "", err
			}
			f.restartInterval = p.restartIntervalPending
			pos += 2 + segLen
		case markerDNL:
			if len(payload) == 2 {
				f.dnlHeight = int(binary.BigEndian.Uint16(payload))
				p.header.DNLHeight = f.dnlHeight
			}
			pos += 2 + segLen
		case markerCOM:
			pos += 2 + segLen
		case markerSOS:
			sh, err := parseScanHeader(f, payload)
			if err != nil {
				return nil, "", err
			}
			scanStart := pos + 2 + segLen
			scanEnd := findScanEnd(data, scanStart)
			ran, err := decodeScanRowParallel(ctx, p, sh, scanStart, scanEnd)
			if !ran {
				cursor := newEntropyCursor(data, scanStart, scanEnd, f.entropy == ArithmeticCoding)
				runner := newScanRunner(p, cursor)
				err = runner.runScan(sh)
			}
			if err != nil {
				return nil, "", err
			}
			pos = scanEnd
		default:
			pos += 2 + segLen
		}

		select {
		case <-ctx.Done():
			return nil, "", cancelled("decodeFrame")
		default:
		}
	}

	s, err := renderFrame(ctx, f, tables, format, onProgress)
	return s, info, err
}

// decodeScanRowParallel is the restart-interval-parallel driver: when
// each MCU row is one restart interval (a DRI equal to xmcu, or a
// "Mango1" APP14 chunk listing the byte offset of every row), the
// rows' entropy segments are independent and decode concurrently, each
// with freshly reset predictors/contexts. Returns false (fall back to
// the serial scanRunner) when the preconditions do not hold.
func decodeScanRowParallel(ctx context.Context, p *Parser, sh *scanHeader, scanStart, scanEnd int) (bool, error) {
	f := p.frame
	if f.mode != ModeBaselineSequential && f.mode != ModeExtendedSequential {
		return false, nil
	}
	if single, _ := ctx.Value(singleThreadKey{}).(bool); single {
		return false, nil
	}

	// Segment starts, one per MCU row.
	var starts []int
	switch {
	case p.mango1 != nil && len(p.mango1.rowOffsets) >= f.ymcu-1:
		starts = make([]int, f.ymcu)
		starts[0] = scanStart
		for i := 1; i < f.ymcu; i++ {
			off := int(p.mango1.rowOffsets[i-1])
			if off <= scanStart || off >= scanEnd {
				return false, nil
			}
			starts[i] = off
		}
	case f.restartInterval == f.xmcu:
		starts = append(starts, scanStart)
		for i := scanStart; i+1 < scanEnd; i++ {
			if isRestartMarkerAt(p.data, i) {
				starts = append(starts, i+2)
			}
		}
		if len(starts) != f.ymcu {
			return false, nil
		}
	default:
		return false, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for my := 0; my < f.ymcu; my++ {
		my := my
		segStart := starts[my]
		segEnd := scanEnd
		if my+1 < f.ymcu {
			segEnd = starts[my+1]
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return cancelled("decodeScanRowParallel")
			default:
			}
			cursor := newEntropyCursor(p.data, segStart, segEnd, f.entropy == ArithmeticCoding)
			runner := newScanRunner(p, cursor)
			for mx := 0; mx < f.xmcu; mx++ {
				for _, sc := range sh.components {
					comp := &f.components[sc.componentIndex]
					for by := 0; by < int(comp.VSampling); by++ {
						for bx := 0; bx < int(comp.HSampling); bx++ {
							blk := f.blockAt(sc.componentIndex, mx*int(comp.HSampling)+bx, my*int(comp.VSampling)+by)
							if runner.isArith {
								arithDecodeMCU(cursor.ab, p.tables, runner.arith, sc, blk)
							} else {
								huffDecodeMCU(cursor.br, p.tables, runner.huff, sc, blk)
							}
						}
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return true, err
	}
	return true, nil
}

// renderFrame runs IDCT and color conversion for every MCU row, one
// goroutine per band of renderRowsPerBand rows. The pool is unbounded
// unless the caller asked for single-threaded decode, which limits it
// to one goroutine.
func renderFrame(ctx context.Context, f *frame, tables *tableStore, format PixelFormat, onProgress func(int, int)) (*Surface, error) {
	surface := NewSurface(f.width, f.height, format)
	be := selectBackend()

	planes := make([]rawPlane, len(f.components))
	for i, c := range f.components {
		planes[i] = rawPlane{
			samples: make([]byte, c.blocksWide*8*c.blocksHigh*8),
			stride:  c.blocksWide * 8,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if single, _ := ctx.Value(singleThreadKey{}).(bool); single {
		// Caller asked for DecodeOptions.Multithread=false: collapse the
		// row-band worker pool to one goroutine so bands run strictly in
		// order, producing the same output the unbounded pool does, just
		// serially.
		g.SetLimit(1)
	}

	for band := 0; band < f.ymcu; band += renderRowsPerBand {
		band := band
		g.Go(func() error {
			end := band + renderRowsPerBand
			if end > f.ymcu {
				end = f.ymcu
			}
			var coeff [64]int32
			for my := band; my < end; my++ {
				select {
				case <-gctx.Done():
					return cancelled("renderFrame")
				default:
				}
				for i, c := range f.components {
					for by := 0; by < int(c.VSampling); by++ {
						blockY := my*int(c.VSampling) + by
						for bx := 0; bx < c.blocksWide; bx++ {
							blk := f.blockAt(i, bx, blockY)
							dequantize(&coeff, blk, &tables.quant[c.QuantTable])
							if f.precision == 12 {
								// 12-bit frames reconstruct to 8-bit output:
								// dropping the four extra magnitude bits before
								// the transform keeps the same level shift.
								for j := range coeff {
									coeff[j] >>= 4
								}
							}
							dst := planes[i].samples[blockY*8*planes[i].stride+bx*8:]
							be.idct(dst, planes[i].stride, &coeff)
						}
					}
				}
			}
			if onProgress != nil {
				onProgress(end*f.yblock, f.height)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	convertPlanes(f, format, surface, planes)
	return surface, nil
}

// rawPlane is one component's post-IDCT 8-bit sample plane at its own
// (not yet upsampled) resolution.
type rawPlane struct {
	samples []byte
	stride  int
}

func convertPlanes(f *frame, format PixelFormat, surface *Surface, planes []rawPlane) {
	switch len(f.components) {
	case 1:
		for y := 0; y < f.height; y++ {
			row := planes[0].samples[y*planes[0].stride : y*planes[0].stride+f.width]
			convertRowY(surface.Row(y), format, row)
		}
	case 3:
		cp := [3]componentPlane{}
		for i, c := range f.components {
			cp[i] = componentPlane{
				samples: planes[i].samples,
				stride:  planes[i].stride,
				hShift:  log2Pow2(f.hMax) - log2Pow2(int(c.HSampling)),
				vShift:  log2Pow2(f.vMax) - log2Pow2(int(c.VSampling)),
			}
		}
		for y := 0; y < f.height; y++ {
			convertRowYCbCr(surface.Row(y), format, f.width, y, cp)
		}
	case 4:
		cp := [4]componentPlane{}
		for i, c := range f.components {
			cp[i] = componentPlane{
				samples: planes[i].samples,
				stride:  planes[i].stride,
				hShift:  log2Pow2(f.hMax) - log2Pow2(int(c.HSampling)),
				vShift:  log2Pow2(f.vMax) - log2Pow2(int(c.VSampling)),
			}
		}
		for y := 0; y < f.height; y++ {
			convertRowCMYK(surface.Row(y), format, f.width, y, f.transform, cp)
		}
	}
}

// decodeLosslessFrame drives a lossless scan to completion and writes
// samples directly (downshifted by precision - 8 to 8-bit output),
// without an IDCT/color stage.
func decodeLosslessFrame(ctx context.Context, p *Parser, format PixelFormat) (*Surface, error) {
	f := p.frame
	// Only grayscale and three-channel lossless frames have an output
	// mapping; two- and four-component frames are legal bitstreams but
	// nothing sensible lands in an RGB(A) surface.
	if n := len(f.components); n != 1 && n != 3 {
		return nil, unsupported("decodeLosslessFrame", "lossless frame with %d components has no output mapping", n)
	}

	pos := p.pos
	data := p.data
	if pos+1 >= len(data) {
		return nil, malformed("decodeLosslessFrame", "missing SOS")
	}
	marker := uint(binary.BigEndian.Uint16(data[pos:]))
	if marker != markerSOS {
		return nil, malformed("decodeLosslessFrame", "expected SOS after lossless SOF")
	}
	segLen := int(binary.BigEndian.Uint16(data[pos+2:]))
	payload := data[pos+4 : pos+2+segLen]
	sh, err := parseScanHeader(f, payload)
	if err != nil {
		return nil, err
	}
	if len(sh.components) != len(f.components) {
		return nil, unsupported("decodeLosslessFrame", "partial lossless scans not supported")
	}
	scanStart := pos + 2 + segLen
	scanEnd := findScanEnd(data, scanStart)

	cursor := newEntropyCursor(data, scanStart, scanEnd, f.entropy == ArithmeticCoding)
	isArith := f.entropy == ArithmeticCoding
	var huff *huffmanState
	var arith *arithmeticState
	if isArith {
		arith = newArithmeticState()
		arith.restart(cursor.ab)
	} else {
		huff = &huffmanState{}
	}

	out := make([][]int32, len(sh.components))
	for i := range out {
		out[i] = make([]int32, f.width*f.height)
	}

	entropyDecode := func(raw []int16) {
		if isArith {
			arithDecodeMCULossless(cursor.ab, p.tables, arith, sh.components, raw)
		} else {
			huffDecodeMCULossless(cursor.br, p.tables, huff, sh.components, raw)
		}
	}
	setPredictor := func(ci int, value int32) {
		if isArith {
			arith.lastDC[sh.components[ci].predictorIdx] = value
		} else {
			huff.lastDC[sh.components[ci].predictorIdx] = value
		}
	}
	onRestart := func() bool {
		ok := cursor.handleRestart()
		if ok {
			if isArith {
				arith.restart(cursor.ab)
			} else {
				huff.restart()
			}
		}
		return ok
	}

	decodeLosslessScan(f.width, f.height, sh.components, sh.predictor, uint(sh.al), f.precision,
		f.restartInterval, entropyDecode, setPredictor, onRestart, out)

	select {
	case <-ctx.Done():
		return nil, cancelled("decodeLosslessFrame")
	default:
	}

	surface := NewSurface(f.width, f.height, format)
	shift := uint(f.precision - 8)
	if len(sh.components) == 1 {
		line := make([]byte, f.width)
		for y := 0; y < f.height; y++ {
			for x := 0; x < f.width; x++ {
				line[x] = byteClamp(out[0][y*f.width+x] >> shift)
			}
			convertRowY(surface.Row(y), format, line)
		}
		return surface, nil
	}

	bpp := format.bytesPerPixel()
	for y := 0; y < f.height; y++ {
		row := surface.Row(y)
		for x := 0; x < f.width; x++ {
			r := byteClamp(out[0][y*f.width+x] >> shift)
			g := byteClamp(out[1][y*f.width+x] >> shift)
			b := byteClamp(out[2][y*f.width+x] >> shift)
			off := x * bpp
			switch format {
			case FormatRGB:
				row[off], row[off+1], row[off+2] = r, g, b
			case FormatBGR:
				row[off], row[off+1], row[off+2] = b, g, r
			case FormatRGBA:
				row[off], row[off+1], row[off+2], row[off+3] = r, g, b, 0xff
			case FormatBGRA:
				row[off], row[off+1], row[off+2], row[off+3] = b, g, r, 0xff
			}
		}
	}
	return surface, nil
}
