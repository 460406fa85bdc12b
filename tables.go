package mjpeg

// Table store: up to four quantization tables, two classes (DC/AC)
// times four destinations of Huffman tables, and arithmetic
// conditioning parameters, plus the acceleration structures built when
// each table is loaded. Huffman decode uses the classic IJG shape: a
// 2^K lookahead table for short codes backed by a per-length
// maxcode/valoffset walk (T.81 Figures C.1, C.2, F.15).

const (
	huffLookupBits = 9
	huffLookupSize = 1 << huffLookupBits
	maxQuantTables = 4
	maxHuffTables  = 4 // per class
	maxArithTables = 16
)

// quantTable holds 64 coefficients in natural (row-major, post zig-zag)
// order; DQT segments carry them in zig-zag order.
type quantTable struct {
	valid     bool
	precision int // 8 or 16
	values    [64]uint16
}

// zigZag maps a zig-zag scan index to its natural row-major index.
var zigZag = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

func (q *quantTable) setZigZag(values []uint16) {
	for i, v := range values {
		q.values[zigZag[i]] = v
	}
	q.valid = true
}

// huffTable is a canonical Huffman decode table: size[1..16] counts
// plus the concatenated value[] vector, from which configure() derives
// maxCode/valueOffset per length and a 2^K lookup table for codes of
// length <= K.
type huffTable struct {
	valid       bool
	size        [17]uint8 // size[1..16], size[0] unused
	values      []uint8
	maxCode     [18]uint64 // left-justified in the register width, 1-filled below
	valueOffset [18]int32
	lookupSize  [huffLookupSize]uint8
	lookupValue [huffLookupSize]uint8
}

// configure builds the canonical codes (Figures C.1/C.2 of T.81) and the
// acceleration tables (Figure F.15/F.16-equivalent lookup), failing with
// Malformed on code-length overflow (more than 256 symbols, or a length
// greater than 16 with too many codes to represent).
func (h *huffTable) configure() error {
	var huffSize [257]uint8
	var huffCode [257]uint32

	p := 0
	for l := 1; l <= 16; l++ {
		for c := 0; c < int(h.size[l]); c++ {
			if p >= 256 {
				return malformed("huffTable.configure", "more than 256 Huffman symbols")
			}
			huffSize[p] = uint8(l)
			p++
		}
	}
	total := p
	huffSize[p] = 0

	code := uint32(0)
	si := huffSize[0]
	p = 0
	for huffSize[p] != 0 {
		for huffSize[p] == si {
			huffCode[p] = code
			code++
			p++
		}
		// The counts must describe a legal prefix code: at each length the
		// next free code may not exceed the code space of that length.
		if code > uint32(1)<<uint(si) {
			return malformed("huffTable.configure", "Huffman code overflow at length %d", si)
		}
		code <<= 1
		si++
		if si > 17 {
			return malformed("huffTable.configure", "Huffman code length overflow")
		}
	}

	p = 0
	for l := 1; l <= 16; l++ {
		if h.size[l] != 0 {
			h.valueOffset[l] = int32(p) - int32(huffCode[p])
			p += int(h.size[l])
			mc := uint64(huffCode[p-1])
			mc <<= uint(bitReaderWordBits - l)
			mc |= (uint64(1) << uint(bitReaderWordBits-l)) - 1
			h.maxCode[l] = mc
		} else {
			h.maxCode[l] = 0xFFFFF
		}
	}
	h.valueOffset[17] = 0
	h.maxCode[17] = 0xFFFFF

	for i := range h.lookupSize {
		h.lookupSize[i] = huffLookupBits + 1
		h.lookupValue[i] = 0
	}

	p = 0
	for l := 1; l <= huffLookupBits; l++ {
		for i := 0; i < int(h.size[l]); i++ {
			value := h.values[p]
			lookBits := huffCode[p] << uint(huffLookupBits-l)
			p++
			count := 1 << uint(huffLookupBits-l)
			for mask := 0; mask < count; mask++ {
				x := int(lookBits) | mask
				h.lookupSize[x] = uint8(l)
				h.lookupValue[x] = value
			}
		}
	}
	if total != len(h.values) {
		return malformed("huffTable.configure", "size/value vector mismatch")
	}
	h.valid = true
	return nil
}

// decode reads the next Huffman symbol from br: peek huffLookupBits
// bits, use the lookup table directly when the code is short enough,
// otherwise walk maxCode[] left-justified. A corrupt
// bitstream decodes to symbol 0 rather than an error, so truncated or
// desynchronized scans still produce finite all-zero output.
func (h *huffTable) decode(br *bitReader) uint8 {
	index := br.peekBits(huffLookupBits)
	size := h.lookupSize[index]
	if size <= huffLookupBits {
		br.getBits(uint(size))
		return h.lookupValue[index]
	}

	br.refill()
	x := br.accum
	c := int(size)
	for x > h.maxCode[c] {
		c++
		if c > 16 {
			br.getBits(16)
			return 0
		}
	}
	offset := int64(x>>uint(bitReaderWordBits-c)) + int64(h.valueOffset[c])
	br.getBits(uint(c))
	if offset < 0 || offset >= int64(len(h.values)) {
		return 0
	}
	return h.values[offset]
}

// arithConditioning holds the DC L/U and AC Kx conditioning parameters
// for the 16 destinations of each class (DAC segment, T.81 B.2.4.3).
type arithConditioning struct {
	dcL, dcU [maxArithTables]uint8
	acK      [maxArithTables]uint8
}

func newArithConditioning() *arithConditioning {
	a := &arithConditioning{}
	for i := range a.dcU {
		a.dcU[i] = 1
	}
	for i := range a.acK {
		a.acK[i] = 5
	}
	return a
}

// tableStore holds every table a frame can reference: created by
// DQT/DHT/DAC, overwritten by a later definition at the same
// destination index, destroyed with the parser.
type tableStore struct {
	quant [maxQuantTables]quantTable
	huff  [2][maxHuffTables]huffTable // [class][destination], class 0=DC/lossless, 1=AC
	arith arithConditioning
}

func newTableStore() *tableStore {
	return &tableStore{arith: *newArithConditioning()}
}
