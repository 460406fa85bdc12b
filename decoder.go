package mjpeg

// Decoder API. Open (marker.go) returns a *Parser; Decode drives the
// scheduler to completion and reports a Status: success is sticky on a
// rejected header or a fatal table build, but a corrupt entropy-coded
// payload still yields a usable (if degraded) image.

import (
	"context"

	"github.com/pkg/errors"
)

// DecodeOptions configures one call to (*Parser).Decode.
type DecodeOptions struct {
	// Multithread enables the row-band worker pool. Decoder output is
	// identical whether this is true or false.
	Multithread bool

	// SIMD selects a SIMD IDCT backend when available. Only the scalar
	// path exists (backend.go), so this field is accepted but has no
	// effect.
	SIMD bool

	// Quality and ICC mirror EncodeOptions but are unused on decode.
	Quality float32
	ICC     []byte

	// Callback receives (x, y, width, height, progress) after each
	// completed render band of renderRowsPerBand MCU rows. The rectangle
	// is always the whole image (0, 0, Width, Height); progress is the
	// fraction of rows rendered. Lossless frames make no calls. It may be
	// called from worker goroutines in arbitrary order; the caller is
	// responsible for any serialization.
	Callback func(x, y, width, height int, progress float32)
}

// Status reports the outcome of a Decode or Encode call.
type Status struct {
	Success bool
	// Direct is true iff the output landed in the destination without an
	// extra blit: always for Decode (the returned Surface is produced in
	// the requested format), and for DecodeInto only when the caller's
	// surface matched the decoded geometry exactly.
	Direct bool
	Info   string
	Err    error
}

// Decode parses every scan from the Parser's current position through
// EOI, reconstructs pixels, and writes them into a newly allocated
// Surface in the requested format.
func (p *Parser) Decode(format PixelFormat, opts DecodeOptions) (*Surface, Status) {
	ctx := context.Background()
	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(ctx)
	defer cancel()

	onProgress := func(y, height int) {
		if opts.Callback == nil {
			return
		}
		progress := float32(1.0)
		if height > 0 {
			progress = float32(y) / float32(height)
			if progress > 1 {
				progress = 1
			}
		}
		opts.Callback(0, 0, p.header.Width, p.header.Height, progress)
	}

	if !opts.Multithread {
		ctx = context.WithValue(ctx, singleThreadKey{}, true)
	}

	surface, info, err := decodeFrame(ctx, p, format, onProgress)
	if err != nil {
		// Truncated or desynchronized entropy payloads never reach here:
		// decodeFrame renders whatever decoded, and reports a cut-short
		// or unreadable marker sequence through info. What does reach here is a rejected table build, an
		// unsupported mode, or cancellation, all of which fail the whole
		// call.
		return nil, Status{Success: false, Err: errors.WithStack(err)}
	}
	return surface, Status{Success: true, Direct: true, Info: info}
}

// DecodeInto decodes into a caller-owned Surface, converting to its
// format and honoring its stride. The image is first decoded into a
// new Surface and then copied into dst. When the destination's
// dimensions and stride match the decoded image exactly the whole
// buffer is copied at once and Status.Direct stays true; otherwise the
// decoded rows are copied in one by one, clipped to the destination
// rectangle, and Status.Direct is false.
func (p *Parser) DecodeInto(dst *Surface, opts DecodeOptions) Status {
	surface, status := p.Decode(dst.Format, opts)
	if !status.Success {
		return status
	}
	if dst.Width == surface.Width && dst.Height == surface.Height && dst.Stride == surface.Stride {
		copy(dst.Pixels, surface.Pixels)
		return status
	}

	status.Direct = false
	bpp := dst.Format.bytesPerPixel()
	rows := dst.Height
	if surface.Height < rows {
		rows = surface.Height
	}
	width := dst.Width
	if surface.Width < width {
		width = surface.Width
	}
	for y := 0; y < rows; y++ {
		copy(dst.Row(y)[:width*bpp], surface.Row(y)[:width*bpp])
	}
	return status
}

// singleThreadKey is an unexported context key recording the caller's
// Multithread=false choice. renderFrame's SetLimit(1) collapses the
// render worker pool to one goroutine, and decodeFrame skips the
// row-parallel entropy decode (decodeScanRowParallel) in favor of the
// serial scan runner. Both paths decode the same rows with the same
// per-interval state resets, so the output is byte-identical.
type singleThreadKey struct{}
