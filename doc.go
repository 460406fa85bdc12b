// Package mjpeg implements a JPEG codec: a baseline, extended-sequential,
// progressive and lossless decoder, and a baseline sequential encoder.
//
// The pipeline mirrors ITU-T T.81 / ISO 10918-1: a marker parser walks the
// byte stream and fills the table store (quantization, Huffman, arithmetic
// conditioning), the bit buffer feeds the entropy decoders, decoded
// coefficients pass through dequantize+IDCT, and the color processor
// upsamples chroma and converts to the caller's requested sample format.
// The scheduler drives single- or multi-threaded decode over MCU rows or
// restart intervals. The encoder runs the inverse path for baseline
// sequential output only.
//
// This package does not read files, dispatch on file extension, or manage
// a generic pixel surface beyond the minimal Surface contract in
// surface.go: callers own I/O and final-format blitting.
package mjpeg
