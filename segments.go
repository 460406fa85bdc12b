package mjpeg

import (
	"bytes"
	"encoding/binary"
)

// Segment handlers for APPn/DQT/DHT/DAC/SOFn payloads: table loads,
// frame geometry, and the application chunks the decoder surfaces
// (JFIF density, Exif/XMP/ICC payload bytes, the Adobe transform byte,
// and the "Mango1" per-row offset chunk).

var jfifSig = []byte("JFIF\x00")
var exifSig = []byte("Exif\x00\x00")
var xmpSig = []byte("http://ns.adobe.com/xap/1.0/\x00")
var iccSig = []byte("ICC_PROFILE\x00")
var adobeSig = []byte("Adobe")
var mango1Sig = []byte("Mango1")

func (p *Parser) parseAPP0(payload []byte) error {
	if len(payload) >= 5 && bytes.Equal(payload[:5], jfifSig) {
		if len(payload) < 14 {
			return malformed("parseAPP0", "JFIF segment too short")
		}
		p.header.HasJFIF = true
		p.header.DensityUnit = payload[7]
		p.header.DensityX = binary.BigEndian.Uint16(payload[8:10])
		p.header.DensityY = binary.BigEndian.Uint16(payload[10:12])
	}
	return nil
}

func (p *Parser) parseAPP1(payload []byte) error {
	if len(payload) >= len(exifSig) && bytes.Equal(payload[:len(exifSig)], exifSig) {
		p.header.Exif = append([]byte(nil), payload[len(exifSig):]...)
		return nil
	}
	if len(payload) >= len(xmpSig) && bytes.Equal(payload[:len(xmpSig)], xmpSig) {
		p.header.XMP = append([]byte(nil), payload[len(xmpSig):]...)
		return nil
	}
	return nil
}

func (p *Parser) parseAPP2(payload []byte) error {
	if len(payload) < len(iccSig)+2 || !bytes.Equal(payload[:len(iccSig)], iccSig) {
		return nil
	}
	seq := int(payload[len(iccSig)])
	total := int(payload[len(iccSig)+1])
	if total > p.iccN {
		p.iccN = total
	}
	p.icc[seq] = append([]byte(nil), payload[len(iccSig)+2:]...)
	return nil
}

func (p *Parser) parseAPP14(payload []byte) error {
	if len(payload) == 12 && bytes.Equal(payload[:5], adobeSig) {
		transform := payload[11]
		if transform <= 2 {
			p.header.Transform = ColorTransform(transform)
		}
		return nil
	}
	if len(payload) >= 10 && bytes.Equal(payload[:6], mango1Sig) {
		interval := int(binary.BigEndian.Uint32(payload[6:10]))
		rest := payload[10:]
		rows := len(rest) / 4
		offsets := make([]uint32, rows)
		for i := 0; i < rows; i++ {
			offsets[i] = binary.BigEndian.Uint32(rest[i*4:])
		}
		p.mango1 = &mango1Info{interval: interval, rowOffsets: offsets}
	}
	return nil
}

func (p *Parser) parseDQT(payload []byte) error {
	i := 0
	for i < len(payload) {
		precBits := payload[i] >> 4
		dest := payload[i] & 0x0F
		if dest >= maxQuantTables {
			return malformed("parseDQT", "quantization destination %d out of range", dest)
		}
		i++
		var values [64]uint16
		if precBits == 0 {
			if i+64 > len(payload) {
				return malformed("parseDQT", "truncated 8-bit quantization table")
			}
			for j := 0; j < 64; j++ {
				values[j] = uint16(payload[i+j])
			}
			i += 64
		} else if precBits == 1 {
			if i+128 > len(payload) {
				return malformed("parseDQT", "truncated 16-bit quantization table")
			}
			for j := 0; j < 64; j++ {
				values[j] = binary.BigEndian.Uint16(payload[i+2*j:])
			}
			i += 128
		} else {
			return malformed("parseDQT", "invalid quantization precision %d", precBits)
		}
		q := &p.tables.quant[dest]
		q.precision = 8
		if precBits == 1 {
			q.precision = 16
		}
		q.setZigZag(values[:])
	}
	return nil
}

func (p *Parser) parseDHT(payload []byte) error {
	i := 0
	for i < len(payload) {
		class := payload[i] >> 4
		dest := payload[i] & 0x0F
		if class > 1 || dest >= maxHuffTables {
			return malformed("parseDHT", "invalid Huffman class/destination")
		}
		i++
		if i+16 > len(payload) {
			return malformed("parseDHT", "truncated Huffman size vector")
		}
		var sizes [17]uint8
		total := 0
		for l := 1; l <= 16; l++ {
			sizes[l] = payload[i+l-1]
			total += int(sizes[l])
		}
		i += 16
		if total > 256 {
			return malformed("parseDHT", "more than 256 Huffman symbols")
		}
		if i+total > len(payload) {
			return malformed("parseDHT", "truncated Huffman value vector")
		}
		values := append([]uint8(nil), payload[i:i+total]...)
		i += total

		h := &huffTable{size: sizes, values: values}
		if err := h.configure(); err != nil {
			return err
		}
		p.tables.huff[class][dest] = *h
	}
	return nil
}

func (p *Parser) parseDAC(payload []byte) error {
	i := 0
	for i+1 < len(payload) {
		class := payload[i] >> 4
		dest := payload[i] & 0x0F
		value := payload[i+1]
		i += 2
		if dest >= maxArithTables {
			return malformed("parseDAC", "arithmetic destination out of range")
		}
		if class == 0 {
			p.tables.arith.dcL[dest] = value & 0x0F
			p.tables.arith.dcU[dest] = value >> 4
		} else {
			p.tables.arith.acK[dest] = value
		}
	}
	return nil
}

func (p *Parser) parseSOF(marker uint, payload []byte) error {
	if len(payload) < 6 {
		return malformed("parseSOF", "SOF segment too short")
	}
	precision := int(payload[0])
	height := int(binary.BigEndian.Uint16(payload[1:3]))
	width := int(binary.BigEndian.Uint16(payload[3:5]))
	nComp := int(payload[5])
	if nComp == 0 || 6+nComp*3 > len(payload) {
		return malformed("parseSOF", "SOF component count disagrees with segment length")
	}

	f := &frame{width: width, height: height, precision: precision}
	switch marker {
	case markerSOF0:
		f.mode, f.entropy = ModeBaselineSequential, HuffmanCoding
	case markerSOF1:
		f.mode, f.entropy = ModeExtendedSequential, HuffmanCoding
	case markerSOF2:
		f.mode, f.entropy = ModeProgressive, HuffmanCoding
	case markerSOF3:
		f.mode, f.entropy = ModeLossless, HuffmanCoding
	case markerSOF9:
		f.mode, f.entropy = ModeExtendedSequential, ArithmeticCoding
	case markerSOF10:
		f.mode, f.entropy = ModeProgressive, ArithmeticCoding
	case markerSOF11:
		f.mode, f.entropy = ModeLossless, ArithmeticCoding
	case markerSOF5, markerSOF6, markerSOF7, markerSOF13, markerSOF14, markerSOF15:
		return unsupported("parseSOF", "differential (hierarchical) frame not supported")
	default:
		return unsupported("parseSOF", "unsupported SOF marker 0x%x", marker)
	}

	switch f.mode {
	case ModeBaselineSequential:
		if precision != 8 {
			return unsupported("parseSOF", "baseline frames are 8-bit, got %d", precision)
		}
	case ModeExtendedSequential, ModeProgressive:
		if precision != 8 && precision != 12 {
			return unsupported("parseSOF", "precision %d not allowed for this mode", precision)
		}
	case ModeLossless:
		if precision < 2 || precision > 16 {
			return unsupported("parseSOF", "lossless precision %d out of range [2,16]", precision)
		}
	}

	for i := 0; i < nComp; i++ {
		b := payload[6+i*3:]
		c := Component{
			ID:         b[0],
			HSampling:  b[1] >> 4,
			VSampling:  b[1] & 0x0F,
			QuantTable: b[2],
		}
		if c.QuantTable >= maxQuantTables {
			return malformed("parseSOF", "quantization table selector out of range")
		}
		f.components = append(f.components, c)
	}
	if err := f.computeGeometry(); err != nil {
		return err
	}
	f.restartInterval = p.restartIntervalPending

	p.frame = f
	p.header.Width = width
	p.header.Height = height
	p.header.Precision = precision
	p.header.Mode = f.mode
	p.header.Entropy = f.entropy
	p.header.Components = f.components
	p.header.XBlock = f.xblock
	p.header.YBlock = f.yblock
	if len(f.components) == 1 {
		p.header.Format = FormatGray8
	} else {
		p.header.Format = FormatRGB
	}
	return nil
}
