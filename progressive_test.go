package mjpeg

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildProgressiveFlatGray hand-assembles a minimal three-scan
// progressive stream for one flat 8x8 luma block: a DC-first scan at
// Al=1 carrying a DC delta of +8, a DC-refine scan appending a zero
// bit, and an AC-first scan that is a single end-of-band symbol. With a
// flat all-ones quantization table the reconstruction is uniform:
// dequantized DC 16 -> level-shifted sample 130.
func buildProgressiveFlatGray() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})

	dqt := make([]byte, 65)
	for i := 1; i < 65; i++ {
		dqt[i] = 1
	}
	writeMarker(&buf, markerDQT, dqt)

	writeDHT(&buf, 0, 0, stdLumaDCBits, stdLumaDCValues)
	writeDHT(&buf, 1, 0, stdLumaACBits, stdLumaACValues)

	writeMarker(&buf, markerSOF2, []byte{8, 0, 8, 0, 8, 1, 1, 0x11, 0})

	dcT := buildEncodeTable(stdLumaDCBits, stdLumaDCValues)
	acT := buildEncodeTable(stdLumaACBits, stdLumaACValues)

	// Scan 1: DC first, Ss=0 Se=0 Ah=0 Al=1, delta +8.
	writeMarker(&buf, markerSOS, []byte{1, 1, 0x00, 0, 0, 0x01})
	bw := newBitWriter()
	size, bits := magnitudeBits(8)
	bw.putBits(uint32(dcT.code[size]), int(dcT.size[size]))
	bw.putBits(bits, int(size))
	bw.flush()
	buf.Write(bw.bytes())

	// Scan 2: DC refine, Ah=1 Al=0, one zero correction bit.
	writeMarker(&buf, markerSOS, []byte{1, 1, 0x00, 0, 0, 0x10})
	bw = newBitWriter()
	bw.putBits(0, 1)
	bw.flush()
	buf.Write(bw.bytes())

	// Scan 3: AC first, Ss=1 Se=63 Ah=0 Al=0, one EOB.
	writeMarker(&buf, markerSOS, []byte{1, 1, 0x00, 1, 63, 0x00})
	bw = newBitWriter()
	bw.putBits(uint32(acT.code[0x00]), int(acT.size[0x00]))
	bw.flush()
	buf.Write(bw.bytes())

	buf.Write([]byte{0xFF, 0xD9})
	return buf.Bytes()
}

func TestDecodeProgressiveFlatGray(t *testing.T) {
	data := buildProgressiveFlatGray()

	p, err := Open(data)
	require.NoError(t, err)
	require.Equal(t, ModeProgressive, p.Header().Mode)
	require.Equal(t, HuffmanCoding, p.Header().Entropy)

	out, status := p.Decode(FormatGray8, DecodeOptions{})
	require.True(t, status.Success)
	require.Empty(t, status.Info)
	for i, v := range out.Pixels {
		require.EqualValues(t, 130, v, "sample %d", i)
	}
}

func TestDecodeProgressiveToRGBA(t *testing.T) {
	data := buildProgressiveFlatGray()
	p, err := Open(data)
	require.NoError(t, err)
	out, status := p.Decode(FormatRGBA, DecodeOptions{Multithread: true})
	require.True(t, status.Success)
	for x := 0; x < 8; x++ {
		require.Equal(t, []byte{130, 130, 130, 255}, out.Row(3)[x*4:x*4+4])
	}
}

// progACBits/progACValues form a tiny AC table carrying the EOB1 symbol
// (0x10) the Annex K sequential tables have no use for: progressive
// encoders define their own tables for exactly this reason.
var progACBits = [17]uint8{0, 1, 2}
var progACValues = []uint8{0x10, 0x00, 0x01}

func TestProgressiveACFirstEOBRunSpansBlocks(t *testing.T) {
	// Two blocks, one AC-first symbol (r=1, s=0): eob_run = 2 covers both
	// blocks, so neither receives a coefficient and only one symbol plus
	// one appended run bit is consumed.
	acT := buildEncodeTable(progACBits, progACValues)
	bw := newBitWriter()
	bw.putBits(uint32(acT.code[0x10]), int(acT.size[0x10]))
	bw.putBits(0, 1) // eob_run = (1<<1) + 0 - 1 = 1, plus the current block
	bw.flush()

	tables := newTableStore()
	tables.huff[1][0] = *buildStdHuffTable(progACBits, progACValues)

	br := newBitReader(bw.bytes(), 0, len(bw.bytes()))
	h := &huffmanState{}
	blockA := make([]int16, 64)
	blockB := make([]int16, 64)
	huffDecodeACFirst(br, tables, h, 0, 1, 63, 0, blockA)
	require.Equal(t, 1, h.eobRun)
	huffDecodeACFirst(br, tables, h, 0, 1, 63, 0, blockB)
	require.Equal(t, 0, h.eobRun)
	for i := 0; i < 64; i++ {
		require.Zero(t, blockA[i])
		require.Zero(t, blockB[i])
	}
}

func TestProgressiveACRefineAddsSignificantCoefficient(t *testing.T) {
	// Band 1..63 previously holds a nonzero at zig-zag index 1; the
	// refine scan sends symbol (run=0, s=1), a sign bit of 1 (positive
	// is bit 1 per the first-branch assignment), a correction bit for
	// the existing coefficient, then an EOB for the rest of the band.
	acT := buildEncodeTable(progACBits, progACValues)
	bw := newBitWriter()
	bw.putBits(uint32(acT.code[0x01]), int(acT.size[0x01]))
	bw.putBits(1, 1) // new coefficient is +1<<Al
	bw.putBits(0, 1) // no correction for the existing nonzero at k=1
	bw.putBits(uint32(acT.code[0x00]), int(acT.size[0x00]))
	bw.flush()

	tables := newTableStore()
	tables.huff[1][0] = *buildStdHuffTable(progACBits, progACValues)

	block := make([]int16, 64)
	block[zigZag[1]] = 4 // previously significant, magnitude 4, Al=1 scans

	br := newBitReader(bw.bytes(), 0, len(bw.bytes()))
	h := &huffmanState{}
	huffDecodeACRefine(br, tables, h, 0, 1, 63, 1, block)

	require.EqualValues(t, 4, block[zigZag[1]], "existing coefficient unchanged by zero correction bit")
	require.EqualValues(t, 2, block[zigZag[2]], "new coefficient becomes +1<<Al")
}
