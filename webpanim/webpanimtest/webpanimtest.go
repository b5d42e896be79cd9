// Package webpanimtest builds small WebP files for tests. Every frame is a
// solid color lossless bitstream.
package webpanimtest

import (
	"encoding/binary"
	"image/color"
)

type Frame struct {
	X, Y          int
	Width, Height int
	Color         color.NRGBA
	DurationMS    int
	NoBlend       bool
	Dispose       bool
}

// Solid returns a lossless VP8L bitstream of a single color. Every prefix
// code has one symbol, so pixels take no bits at all.
func Solid(width, height int, c color.NRGBA) []byte {
	var w bitWriter
	w.write(uint32(width-1), 14)
	w.write(uint32(height-1), 14)
	w.write(1, 1) // alpha is used
	w.write(0, 3) // version
	w.write(0, 1) // no transform
	w.write(0, 1) // no color cache
	w.write(0, 1) // no meta prefix codes

	for _, symbol := range []uint8{c.G, c.R, c.B, c.A} {
		w.write(1, 1) // simple code
		w.write(0, 1) // one symbol
		w.write(1, 1) // 8 bit symbol
		w.write(uint32(symbol), 8)
	}

	// distance
	w.write(1, 1)
	w.write(0, 1)
	w.write(0, 1)
	w.write(0, 1)

	return append([]byte{0x2f}, w.bytes()...)
}

// Still returns a non animated WebP file
func Still(width, height int, c color.NRGBA) []byte {
	return file(chunk(nil, "VP8L", Solid(width, height, c)))
}

// Animated returns an animated WebP of the given canvas size
func Animated(width, height, loops int, frames ...Frame) []byte {
	header := make([]byte, 10)
	header[0] = 0x02
	putUint24(header[4:], uint32(width-1))
	putUint24(header[7:], uint32(height-1))
	body := chunk(nil, "VP8X", header)

	anim := make([]byte, 6)
	binary.LittleEndian.PutUint16(anim[4:], uint16(loops))
	body = chunk(body, "ANIM", anim)

	for _, f := range frames {
		anmf := make([]byte, 16)
		putUint24(anmf[0:], uint32(f.X/2))
		putUint24(anmf[3:], uint32(f.Y/2))
		putUint24(anmf[6:], uint32(f.Width-1))
		putUint24(anmf[9:], uint32(f.Height-1))
		putUint24(anmf[12:], uint32(f.DurationMS))
		if f.NoBlend {
			anmf[15] |= 0x02
		}
		if f.Dispose {
			anmf[15] |= 0x01
		}

		anmf = chunk(anmf, "VP8L", Solid(f.Width, f.Height, f.Color))
		body = chunk(body, "ANMF", anmf)
	}

	return file(body)
}

func file(body []byte) []byte {
	out := append([]byte("RIFF"), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(out[4:], uint32(4+len(body)))
	out = append(out, "WEBP"...)
	return append(out, body...)
}

func chunk(dst []byte, id string, payload []byte) []byte {
	dst = append(dst, id...)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	dst = append(dst, payload...)
	if len(payload)%2 == 1 {
		dst = append(dst, 0)
	}

	return dst
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// bitWriter packs bits LSB first, the VP8L bit order
type bitWriter struct {
	buf  []byte
	acc  uint64
	bits uint
}

func (w *bitWriter) write(v uint32, n uint) {
	w.acc |= uint64(v) << w.bits
	w.bits += n
	for w.bits >= 8 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc >>= 8
		w.bits -= 8
	}
}

func (w *bitWriter) bytes() []byte {
	if w.bits > 0 {
		return append(w.buf, byte(w.acc))
	}

	return w.buf
}
