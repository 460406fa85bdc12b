package mjpeg

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies why a decode or encode operation failed.
type ErrorKind int

const (
	// Malformed means the bitstream itself is structurally wrong: a
	// length field disagreeing with segment contents, an oversize table,
	// an out of range quantization precision, a Huffman code overflow,
	// a bad spectral range, or data truncated before a mandatory marker.
	Malformed ErrorKind = iota
	// Unsupported means the stream is well-formed JPEG but selects a
	// mode this codec does not implement: arithmetic encode, hierarchical
	// frames, or a precision value outside the chosen mode's allowed set.
	Unsupported
	// Cancelled means the decode's context was cancelled mid-decode.
	// Decode creates that context itself and takes none from the caller.
	Cancelled
)

func (k ErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case Unsupported:
		return "unsupported"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// CodecError is the error type returned across the package boundary. The
// Kind lets callers distinguish a corrupt stream from an unimplemented
// feature without parsing the message text.
type CodecError struct {
	Kind ErrorKind
	Op   string
	err  error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("mjpeg: %s: %s: %v", e.Op, e.Kind, e.err)
}

func (e *CodecError) Unwrap() error { return e.err }

func malformed(op string, format string, args ...interface{}) error {
	return &CodecError{Kind: Malformed, Op: op, err: errors.Errorf(format, args...)}
}

func unsupported(op string, format string, args ...interface{}) error {
	return &CodecError{Kind: Unsupported, Op: op, err: errors.Errorf(format, args...)}
}

func cancelled(op string) error {
	return &CodecError{Kind: Cancelled, Op: op, err: errors.New("operation cancelled")}
}

// KindOf extracts the ErrorKind from an error produced by this package,
// unwrapping through any github.com/pkg/errors annotation. It reports
// false when err did not originate here.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CodecError
	for err != nil {
		if c, ok := err.(*CodecError); ok {
			ce = c
			break
		}
		err = errors.Unwrap(err)
	}
	if ce == nil {
		return 0, false
	}
	return ce.Kind, true
}
