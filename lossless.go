package mjpeg

// Lossless (SOF3/SOF11) scan decode: per-pixel prediction from
// already-reconstructed neighbors, driven by one of the eight T.81
// Annex H predictor selectors. Samples are decoded in
// component-interleaved MCU order exactly like a Huffman/arithmetic
// sequential scan, but each "block" is a single sample rather than an
// 8x8 DCT block. Pixel writing is left to the caller; this file hands
// back raw sample planes.

// losslessPredict evaluates one of T.81 Annex H's eight predictors.
// a = left sample, b = above sample, c = above-left sample.
func losslessPredict(selector uint8, a, b, c int32) int32 {
	switch selector {
	case 0:
		return 0
	case 1:
		return a
	case 2:
		return b
	case 3:
		return c
	case 4:
		return a + b - c
	case 5:
		return a + ((b - c) >> 1)
	case 6:
		return b + ((a - c) >> 1)
	case 7:
		return (a + b) >> 1
	}
	return 0
}

// losslessScanState tracks, per component in the scan, one scanline
// cache: cache[c][x] holds the previous row's reconstructed sample at
// column x until the current row's decode overwrites it left to right,
// so while decoding column x the entries at x and x+1 are still "c"
// (above-left) and "b" (above) for the following sample.
type losslessScanState struct {
	predictor uint8
	width     int
	cache     [arithMaxCompsInScan][]int32
}

func newLosslessScanState(predictor uint8, width, numComps int) *losslessScanState {
	s := &losslessScanState{predictor: predictor, width: width}
	for c := 0; c < numComps; c++ {
		s.cache[c] = make([]int32, width)
	}
	return s
}

// predictNext stores the just-reconstructed sample at (x, y) into the
// scanline cache and returns the prediction for the sample decoded
// next in raster order; the entropy decoder adds this value to the
// next raw diff.
func (s *losslessScanState) predictNext(ci, x, y int, raw int32) int32 {
	cache := s.cache[ci]
	var b, c int32
	if x+1 < s.width {
		b = cache[x+1]
	}
	c = cache[x]
	cache[x] = raw

	switch {
	case s.predictor == 0:
		return 0
	case x == s.width-1:
		// Next sample starts a new row; its only decoded neighbor is the
		// sample directly above it, column 0 of the row just finished.
		return cache[0]
	case y == 0 || s.predictor == 1:
		return raw
	default:
		return losslessPredict(s.predictor, raw, b, c)
	}
}

// decodeLosslessScan drives one entire lossless scan: for every pixel,
// in raster order, call the entropy decoder (Huffman or arithmetic)
// once per component and write the reconstructed sample into
// out[component] (row-major, width*height).
//
// entropyDecode must decode one raw differential sample per component
// of the scan into raw[0:len(comps)], adding the running predictor
// value held in its own per-component slot exactly like
// huffDecodeMCULossless/arithDecodeMCULossless do. setPredictor stores
// the prediction for component ci's next sample into that slot. The
// first sample of the scan, and the first sample after every consumed
// restart marker, is predicted as 1 << (precision - Pt - 1) per T.81
// section H.2.2.
func decodeLosslessScan(
	width, height int,
	comps []scanComponent,
	predictor uint8,
	pointTransform uint,
	precision int,
	restartInterval int,
	entropyDecode func(raw []int16),
	setPredictor func(ci int, value int32),
	onRestart func() bool,
	out [][]int32,
) {
	st := newLosslessScanState(predictor, width, len(comps))
	raw := make([]int16, len(comps))

	defaultPred := int32(1) << uint(precision-int(pointTransform)-1)
	for ci := range comps {
		setPredictor(ci, defaultPred)
	}

	mcuCount := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			entropyDecode(raw)
			for ci := range comps {
				sample := int32(raw[ci])
				out[ci][y*width+x] = sample
				setPredictor(ci, st.predictNext(ci, x, y, sample))
			}
			if restartInterval > 0 {
				mcuCount++
				if mcuCount == restartInterval && !(y == height-1 && x == width-1) {
					mcuCount = 0
					if onRestart() {
						for ci := range comps {
							setPredictor(ci, defaultPred)
						}
					}
				}
			}
		}
	}
}
