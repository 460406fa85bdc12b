package mjpeg

// Baseline-sequential Huffman encoder: Y-only or 4:2:0 YCbCr MCUs,
// one restart interval per MCU row so row bands can be produced
// independently (and concurrently) and concatenated with RSTn
// separators.

import (
	"bytes"
	"context"
	"encoding/binary"
	"image/color"
	"math"

	"golang.org/x/sync/errgroup"
)

// EncodeOptions configures one call to Encode.
type EncodeOptions struct {
	// Quality is in [0,1]; see scaleQuantTable for the exact mapping.
	// Encode treats a value <= 0 as 0.75 and a value above 1 as 1.
	Quality float32

	// Multithread enables per-row-band parallel encode. Output bytes are
	// identical either way: each row is an independent restart interval
	// with its own predictor reset, so the only thing Multithread
	// changes is how many goroutines produce them.
	Multithread bool

	// ICC, when non-empty, is embedded as one or more APP2 segments
	// using the ICC_PROFILE\0 chunking convention.
	ICC []byte

	// Callback reports row-band completion, like DecodeOptions.Callback.
	Callback func(x, y, width, height int, progress float32)
}

// encComponent is one encoded component's Huffman tables, quant-table
// selector, and DC predictor.
type encComponent struct {
	id        byte
	hSampling int
	vSampling int
	quantDest byte
	dcTable   *huffEncodeTable
	acTable   *huffEncodeTable
	dcDest    byte
	acDest    byte
	predictor int32
}

// Encode converts a Surface to baseline-sequential JPEG bytes. Only
// the pixel formats Surface itself supports are accepted; the caller
// is responsible for any upstream format conversion.
func Encode(s *Surface, opts EncodeOptions) ([]byte, Status) {
	if s == nil || s.Width <= 0 || s.Height <= 0 {
		return nil, Status{Success: false, Err: malformed("Encode", "empty surface")}
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = 0.75
	}
	if quality > 1 {
		quality = 1
	}

	lumaQuant := scaleQuantTable(stdLuminanceQuant, quality)
	chromaQuant := scaleQuantTable(stdChrominanceQuant, quality)

	gray := s.Format == FormatGray8
	var mcuW, mcuH int
	var comps []*encComponent
	lumaQT := &quantTable{valid: true, precision: 8, values: lumaQuant}
	chromaQT := &quantTable{valid: true, precision: 8, values: chromaQuant}

	lumaDC := buildEncodeTable(stdLumaDCBits, stdLumaDCValues)
	lumaAC := buildEncodeTable(stdLumaACBits, stdLumaACValues)
	chromaDC := buildEncodeTable(stdChromaDCBits, stdChromaDCValues)
	chromaAC := buildEncodeTable(stdChromaACBits, stdChromaACValues)

	if gray {
		mcuW, mcuH = 8, 8
		comps = []*encComponent{
			{id: 1, hSampling: 1, vSampling: 1, quantDest: 0, dcTable: lumaDC, acTable: lumaAC, dcDest: 0, acDest: 0},
		}
	} else {
		mcuW, mcuH = 16, 16
		comps = []*encComponent{
			{id: 1, hSampling: 2, vSampling: 2, quantDest: 0, dcTable: lumaDC, acTable: lumaAC, dcDest: 0, acDest: 0},
			{id: 2, hSampling: 1, vSampling: 1, quantDest: 1, dcTable: chromaDC, acTable: chromaAC, dcDest: 1, acDest: 1},
			{id: 3, hSampling: 1, vSampling: 1, quantDest: 1, dcTable: chromaDC, acTable: chromaAC, dcDest: 1, acDest: 1},
		}
	}

	xmcu := (s.Width + mcuW - 1) / mcuW
	ymcu := (s.Height + mcuH - 1) / mcuH

	entropy, err := encodeScan(s, comps, gray, lumaQT, chromaQT, xmcu, ymcu, mcuW, mcuH, opts)
	if err != nil {
		return nil, Status{Success: false, Err: err}
	}

	var buf bytes.Buffer
	writeMarker(&buf, markerSOI, nil)
	if len(opts.ICC) > 0 {
		writeICCSegments(&buf, opts.ICC)
	}
	writeDQT(&buf, 0, &lumaQT.values)
	if !gray {
		writeDQT(&buf, 1, &chromaQT.values)
	}
	writeSOF0(&buf, s.Width, s.Height, comps)
	writeDHT(&buf, 0, 0, stdLumaDCBits, stdLumaDCValues)
	writeDHT(&buf, 1, 0, stdLumaACBits, stdLumaACValues)
	if !gray {
		writeDHT(&buf, 0, 1, stdChromaDCBits, stdChromaDCValues)
		writeDHT(&buf, 1, 1, stdChromaACBits, stdChromaACValues)
	}
	if ymcu > 1 {
		writeDRI(&buf, xmcu)
	}
	writeSOS(&buf, comps)
	buf.Write(entropy)
	writeMarker(&buf, markerEOI, nil)

	return buf.Bytes(), Status{Success: true, Direct: true}
}

// scaleQuantTable maps quality to a quantization scale:
// q = ((1 + clamp(1-quality,0,1))^11 * 8) / 1024, then each entry is
// round((base*q + 0.5*1024)/1024) clamped to [2,255].
func scaleQuantTable(base [64]uint16, quality float32) [64]uint16 {
	clampQ := 1 - float64(quality)
	if clampQ < 0 {
		clampQ = 0
	}
	if clampQ > 1 {
		clampQ = 1
	}
	q := (math.Pow(1+clampQ, 11) * 8) / 1024

	var out [64]uint16
	for i, t := range base {
		v := (float64(t)*q + 0.5*1024) / 1024
		scaled := int(math.Round(v))
		if scaled < 2 {
			scaled = 2
		}
		if scaled > 255 {
			scaled = 255
		}
		out[i] = uint16(scaled)
	}
	return out
}

// encodeScan converts, subsamples, and Huffman-encodes the whole image,
// one goroutine per MCU row when opts.Multithread, concatenating the
// per-row entropy streams with RSTn separators in between (never after
// the last row).
func encodeScan(s *Surface, comps []*encComponent, gray bool, lumaQT, chromaQT *quantTable, xmcu, ymcu, mcuW, mcuH int, opts EncodeOptions) ([]byte, error) {
	rows := make([][]byte, ymcu)

	ctx := context.Background()
	g, _ := errgroup.WithContext(ctx)
	if !opts.Multithread {
		g.SetLimit(1)
	}

	for my := 0; my < ymcu; my++ {
		my := my
		g.Go(func() error {
			// Each row is its own restart interval: clone the component
			// descriptors so this goroutine's DC predictors (reset to 0
			// here) never alias another row's, which run concurrently
			// when opts.Multithread is set.
			rowComps := cloneEncComponents(comps)
			bw := newBitWriter()
			for mx := 0; mx < xmcu; mx++ {
				if gray {
					encodeGrayMCU(bw, rowComps[0], lumaQT, s, mx, my, &rowComps[0].predictor)
				} else {
					encodeColorMCU(bw, rowComps, lumaQT, chromaQT, s, mx, my)
				}
			}
			bw.flush()
			rows[my] = bw.bytes()
			if opts.Callback != nil {
				opts.Callback(0, my*mcuH, s.Width, s.Height, float32(my+1)/float32(ymcu))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []byte
	for my := 0; my < ymcu; my++ {
		out = append(out, rows[my]...)
		if my != ymcu-1 {
			out = append(out, 0xFF, byte(0xD0+my%8))
		}
	}
	return out, nil
}

// cloneEncComponents copies the component descriptors (Huffman/quant
// table pointers are shared and read-only; predictor starts at 0) so
// concurrent row goroutines never share mutable state.
func cloneEncComponents(comps []*encComponent) []*encComponent {
	out := make([]*encComponent, len(comps))
	for i, c := range comps {
		cp := *c
		cp.predictor = 0
		out[i] = &cp
	}
	return out
}

// encodeGrayMCU encodes one 8x8 luma-only MCU.
func encodeGrayMCU(bw *bitWriter, c *encComponent, qt *quantTable, s *Surface, mx, my int, predictor *int32) {
	var yBlock [64]int32
	sampleBlock(s, mx*8, my*8, 1, 1, &yBlock, grayPixel)

	var coeff [64]int32
	copy(coeff[:], yBlock[:])
	fdct(&coeff)
	var q [64]int16
	quantizeBlock(&q, &coeff, qt)
	encodeBlock(bw, c.dcTable, c.acTable, &q, predictor)
}

// encodeColorMCU encodes one 16x16 MCU as four Y blocks plus one
// box-filtered Cb and Cr block (4:2:0).
func encodeColorMCU(bw *bitWriter, comps []*encComponent, lumaQT, chromaQT *quantTable, s *Surface, mx, my int) {
	var full [3][16 * 16]int32 // Y, Cb, Cr at full resolution within the MCU
	for j := 0; j < 16; j++ {
		for i := 0; i < 16; i++ {
			y, cb, cr := colorPixel(s, mx*16+i, my*16+j)
			full[0][j*16+i] = y
			full[1][j*16+i] = cb
			full[2][j*16+i] = cr
		}
	}

	for sub := 0; sub < 4; sub++ {
		ox, oy := (sub%2)*8, (sub/2)*8
		var block [64]int32
		for j := 0; j < 8; j++ {
			for i := 0; i < 8; i++ {
				block[j*8+i] = full[0][(oy+j)*16+(ox+i)] - 128
			}
		}
		fdct(&block)
		var q [64]int16
		quantizeBlock(&q, &block, lumaQT)
		encodeBlock(bw, comps[0].dcTable, comps[0].acTable, &q, &comps[0].predictor)
	}

	for plane := 1; plane <= 2; plane++ {
		var block [64]int32
		for j := 0; j < 8; j++ {
			for i := 0; i < 8; i++ {
				sum := full[plane][(2*j)*16+2*i] + full[plane][(2*j)*16+2*i+1] +
					full[plane][(2*j+1)*16+2*i] + full[plane][(2*j+1)*16+2*i+1]
				block[j*8+i] = (sum+2)/4 - 128
			}
		}
		fdct(&block)
		var q [64]int16
		quantizeBlock(&q, &block, chromaQT)
		encodeBlock(bw, comps[plane].dcTable, comps[plane].acTable, &q, &comps[plane].predictor)
	}
}

// sampleBlock fills dst with (luma-128)-centered samples starting at
// (x0,y0), edge-replicating past the surface bounds, per hSub/vSub
// (unused for the 8x8 gray path, kept for symmetry with the 16x16 path).
func sampleBlock(s *Surface, x0, y0, hSub, vSub int, dst *[64]int32, sample func(*Surface, int, int) int32) {
	for j := 0; j < 8; j++ {
		for i := 0; i < 8; i++ {
			dst[j*8+i] = sample(s, x0+i*hSub, y0+j*vSub) - 128
		}
	}
}

func clampCoord(v, max int) int {
	if v < 0 {
		return 0
	}
	if v >= max {
		return max - 1
	}
	return v
}

// grayPixel reads one luma sample, converting on the fly when the
// surface isn't already FormatGray8.
func grayPixel(s *Surface, x, y int) int32 {
	x = clampCoord(x, s.Width)
	y = clampCoord(y, s.Height)
	row := s.Row(y)
	bpp := s.Format.bytesPerPixel()
	switch s.Format {
	case FormatGray8:
		return int32(row[x])
	case FormatRGB, FormatRGBA:
		r, g, b := row[x*bpp], row[x*bpp+1], row[x*bpp+2]
		yy, _, _ := color.RGBToYCbCr(r, g, b)
		return int32(yy)
	case FormatBGR, FormatBGRA:
		b, g, r := row[x*bpp], row[x*bpp+1], row[x*bpp+2]
		yy, _, _ := color.RGBToYCbCr(r, g, b)
		return int32(yy)
	}
	return 0
}

// colorPixel reads one pixel and returns full-range Y/Cb/Cr via the
// standard library's forward transform.
func colorPixel(s *Surface, x, y int) (yy, cb, cr int32) {
	x = clampCoord(x, s.Width)
	y = clampCoord(y, s.Height)
	row := s.Row(y)
	bpp := s.Format.bytesPerPixel()
	var r, g, b byte
	switch s.Format {
	case FormatRGB, FormatRGBA:
		r, g, b = row[x*bpp], row[x*bpp+1], row[x*bpp+2]
	case FormatBGR, FormatBGRA:
		b, g, r = row[x*bpp], row[x*bpp+1], row[x*bpp+2]
	case FormatGray8:
		r, g, b = row[x], row[x], row[x]
	}
	y8, cb8, cr8 := color.RGBToYCbCr(r, g, b)
	return int32(y8), int32(cb8), int32(cr8)
}

func writeMarker(buf *bytes.Buffer, marker uint, payload []byte) {
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(marker))
	buf.Write(hdr[:])
	if payload != nil {
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)+2))
		buf.Write(lenBuf[:])
		buf.Write(payload)
	}
}

func writeDQT(buf *bytes.Buffer, dest byte, values *[64]uint16) {
	payload := make([]byte, 0, 1+64)
	payload = append(payload, dest)
	for i := 0; i < 64; i++ {
		payload = append(payload, byte(values[zigZag[i]]))
	}
	writeMarker(buf, markerDQT, payload)
}

func writeSOF0(buf *bytes.Buffer, width, height int, comps []*encComponent) {
	payload := make([]byte, 0, 6+3*len(comps))
	payload = append(payload, 8)
	payload = append(payload, byte(height>>8), byte(height))
	payload = append(payload, byte(width>>8), byte(width))
	payload = append(payload, byte(len(comps)))
	for _, c := range comps {
		payload = append(payload, c.id, byte(c.hSampling<<4|c.vSampling), c.quantDest)
	}
	writeMarker(buf, markerSOF0, payload)
}

func writeDHT(buf *bytes.Buffer, class, dest byte, bits [17]uint8, values []uint8) {
	payload := make([]byte, 0, 1+16+len(values))
	payload = append(payload, class<<4|dest)
	payload = append(payload, bits[1:]...)
	payload = append(payload, values...)
	writeMarker(buf, markerDHT, payload)
}

func writeDRI(buf *bytes.Buffer, interval int) {
	var payload [2]byte
	binary.BigEndian.PutUint16(payload[:], uint16(interval))
	writeMarker(buf, markerDRI, payload[:])
}

func writeSOS(buf *bytes.Buffer, comps []*encComponent) {
	payload := make([]byte, 0, 4+2*len(comps))
	payload = append(payload, byte(len(comps)))
	for _, c := range comps {
		payload = append(payload, c.id, c.dcDest<<4|c.acDest)
	}
	payload = append(payload, 0, 63, 0)
	writeMarker(buf, markerSOS, payload)
}

// writeICCSegments splits an ICC profile across one or more APP2
// segments using the de facto ICC_PROFILE\0 chunking convention, each
// payload capped at 65000 bytes.
func writeICCSegments(buf *bytes.Buffer, icc []byte) {
	const chunkSize = 65000 - 2 - 14
	total := (len(icc) + chunkSize - 1) / chunkSize
	if total == 0 {
		return
	}
	for i := 0; i < total; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(icc) {
			end = len(icc)
		}
		payload := make([]byte, 0, 14+end-start)
		payload = append(payload, "ICC_PROFILE\x00"...)
		payload = append(payload, byte(i+1), byte(total))
		payload = append(payload, icc[start:end]...)
		writeMarker(buf, markerAPP2, payload)
	}
}
