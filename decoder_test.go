package mjpeg

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func newGradientSurface(w, h int, format PixelFormat) *Surface {
	s := NewSurface(w, h, format)
	bpp := format.bytesPerPixel()
	for y := 0; y < h; y++ {
		row := s.Row(y)
		for x := 0; x < w; x++ {
			off := x * bpp
			row[off] = byte((x*255 + w/2) / w)
			if bpp >= 3 {
				row[off+1] = byte((y*255 + h/2) / h)
				row[off+2] = byte((x + y) % 256)
			}
			if bpp == 4 {
				row[off+3] = 0xff
			}
		}
	}
	return s
}

func TestDecodeFlatColorSingleMCU(t *testing.T) {
	s := NewSurface(8, 8, FormatRGB)
	for i := range s.Pixels {
		s.Pixels[i] = 128
	}

	data, status := Encode(s, EncodeOptions{Quality: 0.9})
	require.True(t, status.Success)

	p, err := Open(data)
	require.NoError(t, err)
	require.Equal(t, 16, p.Header().XBlock)
	require.Equal(t, 16, p.Header().YBlock)

	out, decStatus := p.Decode(FormatRGBA, DecodeOptions{})
	require.True(t, decStatus.Success)
	for y := 0; y < 8; y++ {
		row := out.Row(y)
		for x := 0; x < 8; x++ {
			require.Equal(t, []byte{128, 128, 128, 255}, row[x*4:x*4+4], "pixel (%d,%d)", x, y)
		}
	}
}

func TestDecodeOutputIdenticalAcrossThreadModes(t *testing.T) {
	for _, format := range []PixelFormat{FormatGray8, FormatRGB} {
		s := newGradientSurface(48, 48, format)
		data, status := Encode(s, EncodeOptions{Quality: 0.8})
		require.True(t, status.Success)

		p1, err := Open(data)
		require.NoError(t, err)
		serial, st1 := p1.Decode(format, DecodeOptions{Multithread: false})
		require.True(t, st1.Success)

		p2, err := Open(data)
		require.NoError(t, err)
		parallel, st2 := p2.Decode(format, DecodeOptions{Multithread: true})
		require.True(t, st2.Success)

		require.Equal(t, serial.Pixels, parallel.Pixels, "format %v", format)
	}
}

// scanDataRange locates the entropy-coded payload of the first SOS
// segment in an encoded stream.
func scanDataRange(t *testing.T, data []byte) (start, end int) {
	t.Helper()
	i := bytes.Index(data, []byte{0xFF, 0xDA})
	require.Greater(t, i, 0, "stream has no SOS")
	segLen := int(data[i+2])<<8 | int(data[i+3])
	return i + 2 + segLen, len(data) - 2
}

func TestDecodeTruncatedStreamRendersPrefix(t *testing.T) {
	s := newGradientSurface(32, 32, FormatGray8)
	data, status := Encode(s, EncodeOptions{Quality: 0.8})
	require.True(t, status.Success)

	p, err := Open(data)
	require.NoError(t, err)
	full, st := p.Decode(FormatGray8, DecodeOptions{})
	require.True(t, st.Success)

	scanStart, scanEnd := scanDataRange(t, data)
	cut := scanStart + (scanEnd-scanStart)*3/5
	truncated := data[:cut]

	tp, err := Open(truncated)
	require.NoError(t, err)
	out, tst := tp.Decode(FormatGray8, DecodeOptions{})
	require.True(t, tst.Success, "truncated stream must still decode")
	require.NotEmpty(t, tst.Info)

	// The first MCU row was entropy-coded well before the cut.
	for y := 0; y < 8; y++ {
		require.Equal(t, full.Row(y), out.Row(y), "row %d", y)
	}
}

func TestDecodeCorruptedRestartMarker(t *testing.T) {
	s := newGradientSurface(16, 16, FormatGray8)
	data, status := Encode(s, EncodeOptions{Quality: 0.85})
	require.True(t, status.Success)

	p, err := Open(data)
	require.NoError(t, err)
	pristine, st := p.Decode(FormatGray8, DecodeOptions{})
	require.True(t, st.Success)

	scanStart, scanEnd := scanDataRange(t, data)
	rst := -1
	for i := scanStart; i+1 < scanEnd; i++ {
		if isRestartMarkerAt(data, i) {
			rst = i
			break
		}
	}
	require.Greater(t, rst, 0, "encoder should emit one RST between the two MCU rows")

	// Flipping the marker number still leaves a valid RSTn: the decoder
	// resynchronizes on any of 0xD0..0xD7 and both rows come out intact.
	renumbered := append([]byte(nil), data...)
	renumbered[rst+1] ^= 0x01
	rp, err := Open(renumbered)
	require.NoError(t, err)
	out, rst1 := rp.Decode(FormatGray8, DecodeOptions{})
	require.True(t, rst1.Success)
	require.Equal(t, pristine.Pixels, out.Pixels)

	// Destroying the marker byte entirely desynchronizes the second row,
	// but the first row still decodes and the call still succeeds.
	destroyed := append([]byte(nil), data...)
	destroyed[rst+1] = 0x7F
	dp, err := Open(destroyed)
	require.NoError(t, err)
	out2, dst := dp.Decode(FormatGray8, DecodeOptions{Multithread: false})
	require.True(t, dst.Success)
	for y := 0; y < 8; y++ {
		require.Equal(t, pristine.Row(y), out2.Row(y), "row %d", y)
	}
}

func TestDecodeICCProfileRoundTrip(t *testing.T) {
	icc := make([]byte, 150000)
	for i := range icc {
		icc[i] = byte(i*31 + i>>8)
	}

	s := newGradientSurface(16, 16, FormatGray8)
	data, status := Encode(s, EncodeOptions{Quality: 0.8, ICC: icc})
	require.True(t, status.Success)

	p, err := Open(data)
	require.NoError(t, err)
	require.Equal(t, icc, p.Header().ICC)
}

func TestDecodeBoundaryDimensions(t *testing.T) {
	for _, dim := range []struct{ w, h int }{{1, 1}, {1, 17}, {17, 1}} {
		s := NewSurface(dim.w, dim.h, FormatGray8)
		for i := range s.Pixels {
			s.Pixels[i] = 200
		}
		data, status := Encode(s, EncodeOptions{Quality: 0.9})
		require.True(t, status.Success, "%dx%d", dim.w, dim.h)

		p, err := Open(data)
		require.NoError(t, err)
		require.Equal(t, dim.w, p.Header().Width)
		require.Equal(t, dim.h, p.Header().Height)

		out, decStatus := p.Decode(FormatGray8, DecodeOptions{})
		require.True(t, decStatus.Success)
		for i, v := range out.Pixels {
			require.InDelta(t, 200, int(v), 2, "%dx%d sample %d", dim.w, dim.h, i)
		}
	}
}

func TestDecodeIntoCallerSurface(t *testing.T) {
	s := newGradientSurface(24, 24, FormatGray8)
	data, status := Encode(s, EncodeOptions{Quality: 0.85})
	require.True(t, status.Success)

	p, err := Open(data)
	require.NoError(t, err)
	reference, st := p.Decode(FormatGray8, DecodeOptions{})
	require.True(t, st.Success)

	p2, err := Open(data)
	require.NoError(t, err)
	exact := NewSurface(24, 24, FormatGray8)
	dst := p2.DecodeInto(exact, DecodeOptions{})
	require.True(t, dst.Success)
	require.True(t, dst.Direct)
	require.Equal(t, reference.Pixels, exact.Pixels)

	p3, err := Open(data)
	require.NoError(t, err)
	smaller := NewSurface(16, 16, FormatGray8)
	clipped := p3.DecodeInto(smaller, DecodeOptions{})
	require.True(t, clipped.Success)
	require.False(t, clipped.Direct)
	for y := 0; y < 16; y++ {
		require.Equal(t, reference.Row(y)[:16], smaller.Row(y))
	}
}

func TestDecodeProgressCallback(t *testing.T) {
	s := newGradientSurface(32, 32, FormatGray8)
	data, status := Encode(s, EncodeOptions{Quality: 0.8})
	require.True(t, status.Success)

	p, err := Open(data)
	require.NoError(t, err)
	calls := 0
	var last float32
	_, decStatus := p.Decode(FormatGray8, DecodeOptions{
		Multithread: false,
		Callback: func(x, y, width, height int, progress float32) {
			calls++
			require.Equal(t, 32, width)
			require.Equal(t, 32, height)
			if progress > last {
				last = progress
			}
		},
	})
	require.True(t, decStatus.Success)
	require.Greater(t, calls, 0)
	require.InDelta(t, 1.0, last, 0.01)
}
