package mjpeg

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenRejectsOversampledFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	// Sum of hsf*vsf = 16+4+1 = 21, past the JPEG limit of 10.
	writeMarker(&buf, markerSOF0, []byte{
		8, 0, 8, 0, 8, 3,
		1, 0x44, 0,
		2, 0x22, 0,
		3, 0x11, 0,
	})

	_, err := Open(buf.Bytes())
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, Malformed, kind)
}

func TestOpenRejectsHierarchicalMarker(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	writeMarker(&buf, markerDHP, []byte{8, 0, 8, 0, 8, 1, 1, 0x11, 0})

	_, err := Open(buf.Bytes())
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, Unsupported, kind)
}

func TestOpenRejectsDifferentialSOF(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	writeMarker(&buf, markerSOF5, []byte{8, 0, 8, 0, 8, 1, 1, 0x11, 0})

	_, err := Open(buf.Bytes())
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, Unsupported, kind)
}

func TestOpenRejectsOverfullHuffmanTable(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	// Three codes of length one cannot form a prefix code.
	dht := []byte{0x00, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2}
	writeMarker(&buf, markerDHT, dht)

	_, err := Open(buf.Bytes())
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, Malformed, kind)
}

func TestOpenAcceptsSingleLength16Code(t *testing.T) {
	var bits [17]uint8
	bits[16] = 1
	h := &huffTable{size: bits, values: []uint8{7}}
	require.NoError(t, h.configure())
	require.True(t, h.valid)

	// A lone code at length 16 is all zero bits.
	data := []byte{0x00, 0x00}
	br := newBitReader(data, 0, len(data))
	require.EqualValues(t, 7, h.decode(br))
}

func TestOpenCapturesMetadata(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})

	jfif := []byte{'J', 'F', 'I', 'F', 0, 1, 2, 1, 0x01, 0x2C, 0x01, 0x2C, 0, 0}
	writeMarker(&buf, markerAPP0, jfif)

	exifPayload := []byte("II*\x00exifdata")
	writeMarker(&buf, markerAPP1, append([]byte("Exif\x00\x00"), exifPayload...))

	iccA := []byte{1, 2, 3, 4}
	iccB := []byte{5, 6, 7}
	app2 := append([]byte("ICC_PROFILE\x00"), 1, 2)
	writeMarker(&buf, markerAPP2, append(app2, iccA...))
	app2 = append([]byte("ICC_PROFILE\x00"), 2, 2)
	writeMarker(&buf, markerAPP2, append(app2, iccB...))

	adobe := []byte{'A', 'd', 'o', 'b', 'e', 0, 100, 0, 0, 0, 0, 2}
	writeMarker(&buf, markerAPP14, adobe)

	dqt := make([]byte, 65)
	for i := 1; i < 65; i++ {
		dqt[i] = 1
	}
	writeMarker(&buf, markerDQT, dqt)
	writeMarker(&buf, markerSOF0, []byte{8, 0, 16, 0, 16, 1, 1, 0x11, 0})

	p, err := Open(buf.Bytes())
	require.NoError(t, err)

	h := p.Header()
	require.True(t, h.HasJFIF)
	require.EqualValues(t, 1, h.DensityUnit)
	require.EqualValues(t, 300, h.DensityX)
	require.EqualValues(t, 300, h.DensityY)
	require.Equal(t, exifPayload, h.Exif)
	require.Equal(t, append(append([]byte(nil), iccA...), iccB...), h.ICC)
	require.Equal(t, TransformYCCK, h.Transform)
	require.Equal(t, 16, h.Width)
	require.Equal(t, 16, h.Height)
	require.Equal(t, ModeBaselineSequential, h.Mode)
}

func TestOpenParsesMango1RowOffsets(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})

	chunk := []byte{'M', 'a', 'n', 'g', 'o', '1', 0, 0, 0, 8}
	chunk = append(chunk, 0, 0, 1, 0) // row 1 starts at absolute offset 256
	chunk = append(chunk, 0, 0, 2, 0) // row 2 at 512
	writeMarker(&buf, markerAPP14, chunk)
	writeMarker(&buf, markerSOF0, []byte{8, 0, 24, 0, 24, 1, 1, 0x11, 0})

	p, err := Open(buf.Bytes())
	require.NoError(t, err)
	require.NotNil(t, p.mango1)
	require.Equal(t, 8, p.mango1.interval)
	require.Equal(t, []uint32{256, 512}, p.mango1.rowOffsets)
}

func TestOpenTolerates0xFFPadding(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	buf.Write([]byte{0xFF, 0xFF, 0xFF}) // padding before the next marker
	writeMarker(&buf, markerSOF0, []byte{8, 0, 8, 0, 8, 1, 1, 0x11, 0})

	p, err := Open(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 8, p.Header().Width)
}

func TestMCUGeometry(t *testing.T) {
	f := &frame{
		width: 33, height: 17,
		components: []Component{
			{ID: 1, HSampling: 2, VSampling: 2, QuantTable: 0},
			{ID: 2, HSampling: 1, VSampling: 1, QuantTable: 1},
			{ID: 3, HSampling: 1, VSampling: 1, QuantTable: 1},
		},
	}
	require.NoError(t, f.computeGeometry())
	require.Equal(t, 16, f.xblock)
	require.Equal(t, 16, f.yblock)
	require.Equal(t, 3, f.xmcu)
	require.Equal(t, 2, f.ymcu)
	require.Equal(t, 6, f.blocksInMCU())

	// ceil(width/xblock) * ceil(height/yblock) == xmcu * ymcu
	require.Equal(t, ((33+15)/16)*((17+15)/16), f.xmcu*f.ymcu)
}
