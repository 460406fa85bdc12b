package mjpeg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArithStateTableShape(t *testing.T) {
	// T.81 Table D.2 has 113 probability states; every packed entry's
	// next-state indices must stay inside the table (the MPS/LPS bytes
	// index jpegAritab after masking off the sense bit).
	require.Len(t, jpegAritab, 113)
	for i, e := range jpegAritab {
		nextLPS := e & 0xFF
		nextMPS := (e >> 8) & 0xFF
		qe := e >> 16
		require.Less(t, int(nextLPS&0x7F), 113, "state %d LPS", i)
		require.Less(t, int(nextMPS&0x7F), 113, "state %d MPS", i)
		require.LessOrEqual(t, qe, uint32(0x5B12), "state %d Qe above the coder's maximum estimate", i)
		require.Greater(t, qe, uint32(0), "state %d Qe", i)
	}
}

func TestArithRestartSeedsRegisters(t *testing.T) {
	buf := newArithBuffer([]byte{0xAB, 0xCD, 0x12}, 0, 3)
	s := newArithmeticState()
	s.dcStats[0][5] = 9
	s.lastDC[1] = 42

	s.restart(buf)
	require.EqualValues(t, 0xABCD, s.c)
	require.EqualValues(t, 0x10000, s.a)
	require.Zero(t, s.ct)
	require.Zero(t, s.dcStats[0][5], "statistics reset on restart")
	require.Zero(t, s.lastDC[1], "predictors reset on restart")
	require.EqualValues(t, 113, s.fixedBin[0], "fixed equiprobable context survives restart")
}

func TestArithBufferDestuffs(t *testing.T) {
	buf := newArithBuffer([]byte{0x11, 0xFF, 0x00, 0x22}, 0, 4)
	require.EqualValues(t, 0x11, buf.getByte())
	require.EqualValues(t, 0xFF, buf.getByte())
	require.EqualValues(t, 0x22, buf.getByte())
	// Past the end the buffer materializes zeros.
	require.EqualValues(t, 0, buf.getByte())
	require.EqualValues(t, 0, buf.getByte())
}

func TestArithDecodeZeroStreamYieldsEmptyBlock(t *testing.T) {
	// An all-zero entropy payload must decode to a finite all-zero block:
	// the first DC decision is MPS (0, "no difference") and the first AC
	// decision flips to LPS (end of block), so truncated streams decode
	// to finite output.
	data := make([]byte, 16)
	buf := newArithBuffer(data, 0, len(data))
	s := newArithmeticState()
	s.restart(buf)

	tables := newTableStore()
	out := make([]int16, 64)
	arithDecodeMCU(buf, tables, s, scanComponent{componentIndex: 0, dcTable: 0, acTable: 0, predictorIdx: 0}, out)
	for i, v := range out {
		require.Zero(t, v, "coefficient %d", i)
	}
	require.Zero(t, s.lastDC[0])
}
