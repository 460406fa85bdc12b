package mjpeg

import "encoding/binary"

// Marker parser: walks a contiguous byte slice, dispatches segment
// handlers, fills the table store, and locates the entropy-coded scan
// payload. A marker is 0xFF followed by a non-zero byte; 0xFF 0x00
// inside entropy-coded data is a stuff byte handled by the bit buffer,
// never here. Runs of padding 0xFF bytes before a real marker are
// tolerated.

const (
	markerTEM   = 0xFF01
	markerSOF0  = 0xFFC0
	markerSOF1  = 0xFFC1
	markerSOF2  = 0xFFC2
	markerSOF3  = 0xFFC3
	markerDHT   = 0xFFC4
	markerSOF5  = 0xFFC5
	markerSOF6  = 0xFFC6
	markerSOF7  = 0xFFC7
	markerJPG   = 0xFFC8
	markerSOF9  = 0xFFC9
	markerSOF10 = 0xFFCA
	markerSOF11 = 0xFFCB
	markerDAC   = 0xFFCC
	markerSOF13 = 0xFFCD
	markerSOF14 = 0xFFCE
	markerSOF15 = 0xFFCF

	markerRST0 = 0xFFD0
	markerRST7 = 0xFFD7
	markerSOI  = 0xFFD8
	markerEOI  = 0xFFD9
	markerSOS  = 0xFFDA
	markerDQT  = 0xFFDB
	markerDNL  = 0xFFDC
	markerDRI  = 0xFFDD
	markerDHP  = 0xFFDE
	markerEXP  = 0xFFDF

	markerAPP0  = 0xFFE0
	markerAPP1  = 0xFFE1
	markerAPP2  = 0xFFE2
	markerAPP14 = 0xFFEE
	markerAPP15 = 0xFFEF

	markerCOM = 0xFFFE
)

func isRST(marker uint) bool { return marker >= markerRST0 && marker <= markerRST7 }

func isSOF(marker uint) bool {
	return marker >= markerSOF0 && marker <= markerSOF15 &&
		marker != markerDHT && marker != markerJPG && marker != markerDAC
}

// Header is the information available after Open: image geometry and
// captured metadata.
type Header struct {
	Width, Height int
	Precision     int
	Mode          EncodingMode
	Entropy       EntropyCoding
	Components    []Component
	XBlock, YBlock int

	// Format is the natural output format for this stream: grayscale for
	// single-component frames, interleaved RGB otherwise (CMYK/YCCK
	// streams convert to RGB).
	Format PixelFormat

	Transform ColorTransform // APP14 Adobe transform byte

	// Exif/XMP/ICC are captured as opaque payload bytes only, left for
	// the caller to interpret; ICC segments are reassembled across
	// multiple APP2 chunks in order.
	Exif []byte
	XMP  []byte
	ICC  []byte

	// JFIF APP0 density, captured but not consumed by the pixel
	// pipeline.
	HasJFIF     bool
	DensityUnit uint8
	DensityX    uint16
	DensityY    uint16

	DNLHeight int // recorded, never applied
}

// mango1Info is the optional "Mango1" APP14 payload: a decode interval
// and per-row absolute byte offsets permitting row-parallel entropy
// decode even without a DRI.
type mango1Info struct {
	interval   int
	rowOffsets []uint32
}

// Parser is the result of Open: it has consumed SOI through the first
// SOF and recorded where the scan data begins. Decode continues parsing
// from there.
type Parser struct {
	data   []byte
	pos    int // offset of the first byte after SOF's segment
	tables *tableStore
	frame  *frame
	header Header
	mango1 *mango1Info
	icc    map[int][]byte // ICC segment index -> payload, reassembled in Header.ICC
	iccN   int

	restartIntervalPending int // set by a DRI seen before SOF
}

// Header returns the parsed frame geometry and metadata.
func (p *Parser) Header() Header { return p.header }

// Open parses SOI through the first SOF marker and returns a Parser
// ready for Decode; the remaining stream is left for Decode to walk.
func Open(data []byte) (*Parser, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, malformed("Open", "missing SOI signature")
	}

	p := &Parser{data: data, tables: newTableStore(), icc: map[int][]byte{}}
	i := 2
	for i+1 < len(data) {
		// Tolerate runs of padding 0xFF before a marker.
		for i < len(data) && data[i] == 0xFF && i+1 < len(data) && data[i+1] == 0xFF {
			i++
		}
		if data[i] != 0xFF {
			return nil, malformed("Open", "expected marker at offset %d", i)
		}
		marker := uint(binary.BigEndian.Uint16(data[i:]))
		if marker < markerTEM {
			return nil, malformed("Open", "invalid marker 0x%x", marker)
		}

		if isRST(marker) || marker == markerSOI {
			return nil, malformed("Open", "unexpected marker 0x%x before SOF", marker)
		}
		if marker == markerEOI {
			return nil, malformed("Open", "EOI before any scan")
		}

		if i+4 > len(data) {
			return nil, malformed("Open", "truncated segment header")
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2:]))
		if segLen < 2 || i+2+segLen > len(data) {
			return nil, malformed("Open", "segment length disagrees with data")
		}
		payload := data[i+4 : i+2+segLen]

		var err error
		switch {
		case marker == markerAPP0:
			err = p.parseAPP0(payload)
		case marker == markerAPP1:
			err = p.parseAPP1(payload)
		case marker == markerAPP2:
			err = p.parseAPP2(payload)
		case marker == markerAPP14:
			err = p.parseAPP14(payload)
		case marker >= markerAPP0 && marker <= markerAPP15:
			// other APPn segments carry no metadata we surface
		case marker == markerDQT:
			err = p.parseDQT(payload)
		case marker == markerDHT:
			err = p.parseDHT(payload)
		case marker == markerDAC:
			err = p.parseDAC(payload)
		case marker == markerDRI:
			err = p.parseDRI(payload)
		case marker == markerCOM:
			// comments are skipped
		case marker == markerDHP || marker == markerEXP:
			return nil, unsupported("Open", "hierarchical marker 0x%x not supported", marker)
		case isSOF(marker):
			err = p.parseSOF(marker, payload)
			if err == nil {
				p.pos = i + 2 + segLen
				p.finalizeICC()
				return p, nil
			}
		default:
			return nil, unsupported("Open", "unsupported or reserved marker 0x%x", marker)
		}
		if err != nil {
			return nil, err
		}
		i += 2 + segLen
	}
	return nil, malformed("Open", "no SOF marker found")
}

func (p *Parser) finalizeICC() {
	if len(p.icc) == 0 {
		return
	}
	var buf []byte
	for seq := 1; seq <= p.iccN; seq++ {
		buf = append(buf, p.icc[seq]...)
	}
	p.header.ICC = buf
}

func (p *Parser) parseDRI(payload []byte) error {
	if len(payload) != 2 {
		return malformed("parseDRI", "DRI segment must be 2 bytes")
	}
	p.restartIntervalPending = int(binary.BigEndian.Uint16(payload))
	return nil
}
