package mjpeg

// Frame components, MCU geometry, and the coefficient store backing
// both sequential (scan-at-a-time) and progressive/multi-scan
// (whole-image) decode.

// Component is one frame component from an SOFn segment: identifier,
// sampling factors and quantization table selector.
type Component struct {
	ID         uint8
	HSampling  uint8
	VSampling  uint8
	QuantTable uint8

	// blockOffset is this component's starting index within one MCU's
	// flattened block list (component-major, row-major within the
	// component's sampling grid).
	blockOffset int
	blocksWide  int // number of 8x8 blocks across the full image, rounded up
	blocksHigh  int
}

// EncodingMode is the frame's coding mode, from the SOFn marker.
type EncodingMode int

const (
	ModeBaselineSequential EncodingMode = iota
	ModeExtendedSequential
	ModeProgressive
	ModeLossless
)

func (m EncodingMode) String() string {
	switch m {
	case ModeBaselineSequential:
		return "baseline sequential"
	case ModeExtendedSequential:
		return "extended sequential"
	case ModeProgressive:
		return "progressive"
	case ModeLossless:
		return "lossless"
	}
	return "unknown"
}

// EntropyCoding distinguishes Huffman from arithmetic coding.
type EntropyCoding int

const (
	HuffmanCoding EntropyCoding = iota
	ArithmeticCoding
)

// ColorTransform records the APP14 Adobe transform byte, driving the
// CMYK/YCCK color path in color.go.
type ColorTransform int

const (
	TransformUnknown ColorTransform = iota // RGB or CMYK depending on component count
	TransformYCbCr
	TransformYCCK
)

// frame holds everything parsed from one SOFn and its subsequent scans.
type frame struct {
	mode       EncodingMode
	entropy    EntropyCoding
	precision  int
	width      int
	height     int
	dnlHeight  int // DNL-provided height, recorded but not applied
	components []Component
	hMax, vMax int
	xblock     int // 8 * hMax
	yblock     int // 8 * vMax
	xmcu, ymcu int
	transform  ColorTransform

	restartInterval int

	// coeffs holds the whole-image, natural-order quantized coefficients
	// for every component. Progressive decode accumulates every scan
	// here and converts to pixels once, after the last scan; sequential
	// images fill it in a single scan so the IDCT/color stage has one
	// code path regardless of mode.
	coeffs [][]int16 // per component, blocksWide*blocksHigh*64 entries
}

func (f *frame) blocksInMCU() int {
	n := 0
	for _, c := range f.components {
		n += int(c.HSampling) * int(c.VSampling)
	}
	return n
}

// computeGeometry derives hMax/vMax, xblock/yblock, per-component block
// grids, and xmcu/ymcu from the component sampling factors.
func (f *frame) computeGeometry() error {
	if len(f.components) == 0 {
		return malformed("computeGeometry", "frame has no components")
	}
	total := 0
	f.hMax, f.vMax = 1, 1
	for _, c := range f.components {
		if c.HSampling < 1 || c.HSampling > 4 || c.VSampling < 1 || c.VSampling > 4 {
			return malformed("computeGeometry", "sampling factor out of range [1,4]")
		}
		total += int(c.HSampling) * int(c.VSampling)
		if int(c.HSampling) > f.hMax {
			f.hMax = int(c.HSampling)
		}
		if int(c.VSampling) > f.vMax {
			f.vMax = int(c.VSampling)
		}
	}
	if total > 10 {
		return malformed("computeGeometry", "sum of hsf*vsf exceeds JPEG limit of 10")
	}

	f.xblock = 8 * f.hMax
	f.yblock = 8 * f.vMax
	f.xmcu = (f.width + f.xblock - 1) / f.xblock
	f.ymcu = (f.height + f.yblock - 1) / f.yblock

	offset := 0
	for i := range f.components {
		c := &f.components[i]
		c.blockOffset = offset
		c.blocksWide = f.xmcu * int(c.HSampling)
		c.blocksHigh = f.ymcu * int(c.VSampling)
		offset += int(c.HSampling) * int(c.VSampling)
	}
	return nil
}

// allocateCoeffs allocates the whole-image coefficient arrays on first
// SOS. The buffer lives until color conversion finishes.
func (f *frame) allocateCoeffs() {
	if f.coeffs != nil {
		return
	}
	f.coeffs = make([][]int16, len(f.components))
	for i, c := range f.components {
		f.coeffs[i] = make([]int16, c.blocksWide*c.blocksHigh*64)
	}
}

func (f *frame) freeCoeffs() {
	f.coeffs = nil
}

// blockAt returns the 64 natural-order coefficients for block (bx,by) of
// component ci.
func (f *frame) blockAt(ci, bx, by int) []int16 {
	c := f.components[ci]
	idx := (by*c.blocksWide + bx) * 64
	return f.coeffs[ci][idx : idx+64]
}

// scanComponent is one component's configuration for the current scan:
// its entropy table selectors and predictor/context slot.
type scanComponent struct {
	componentIndex int // index into frame.components
	dcTable        uint8
	acTable        uint8
	predictorIdx   int // index into huffmanState.lastDC / arithmetic dc_context
}

// scanHeader is the decoded SOS payload plus the frame it applies to.
type scanHeader struct {
	components []scanComponent
	ss, se     uint8 // spectral selection start/end
	ah, al     uint8 // successive approximation high/low
	predictor  uint8 // lossless predictor selector (reuses ss's byte)
}
