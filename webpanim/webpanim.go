// Package webpanim reads animated WebP files frame by frame. The RIFF
// container is parsed here, every frame bitstream is decoded by
// golang.org/x/image/webp and composited onto the animation canvas.
package webpanim

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"golang.org/x/image/riff"
	"golang.org/x/image/webp"
)

var (
	ErrNotAnimated = errors.New("webp is not animated")
	ErrMalformed   = errors.New("malformed animated webp")
)

var (
	fccWEBP = riff.FourCC{'W', 'E', 'B', 'P'}
	fccVP8X = riff.FourCC{'V', 'P', '8', 'X'}
	fccANIM = riff.FourCC{'A', 'N', 'I', 'M'}
	fccANMF = riff.FourCC{'A', 'N', 'M', 'F'}
	fccALPH = riff.FourCC{'A', 'L', 'P', 'H'}
	fccVP8  = riff.FourCC{'V', 'P', '8', ' '}
	fccVP8L = riff.FourCC{'V', 'P', '8', 'L'}
)

const (
	flagAnimation = 0x02
	flagAlpha     = 0x10

	frameNoBlend = 0x02
	frameDispose = 0x01

	anmfHeaderSize = 16
)

// Animation is the parsed container, frames are still encoded.
type Animation struct {
	Width  int
	Height int
	// Background is the BGRA color from the ANIM chunk. Compositing uses a
	// transparent canvas, the color is only a hint for players.
	Background [4]byte
	// LoopCount 0 means forever
	LoopCount int
	Frames    []Frame
}

// Frame is one ANMF chunk
type Frame struct {
	X        int
	Y        int
	Width    int
	Height   int
	Duration time.Duration
	// Blend draws the frame over the canvas, otherwise it replaces its rect.
	Blend bool
	// Dispose clears the frame rect once the frame was shown.
	Dispose bool

	alpha     []byte
	bitstream []byte
	lossless  bool
}

func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(f.X, f.Y, f.X+f.Width, f.Y+f.Height)
}

// Parse reads the whole container. A still WebP gives ErrNotAnimated.
func Parse(r io.Reader) (*Animation, error) {
	formType, chunks, err := riff.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if formType != fccWEBP {
		return nil, fmt.Errorf("%w: form type %q", ErrMalformed, formType[:])
	}

	anim := &Animation{}
	sawHeader := false
	for {
		id, length, data, err := chunks.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}

		switch id {
		case fccVP8X:
			if sawHeader {
				return nil, fmt.Errorf("%w: duplicate VP8X chunk", ErrMalformed)
			}

			buf, err := readChunk(data, length, 10)
			if err != nil {
				return nil, err
			}

			if buf[0]&flagAnimation == 0 {
				return nil, ErrNotAnimated
			}

			sawHeader = true
			anim.Width = int(uint24(buf[4:])) + 1
			anim.Height = int(uint24(buf[7:])) + 1

		case fccANIM:
			buf, err := readChunk(data, length, 6)
			if err != nil {
				return nil, err
			}

			copy(anim.Background[:], buf[:4])
			anim.LoopCount = int(binary.LittleEndian.Uint16(buf[4:]))

		case fccANMF:
			if !sawHeader {
				return nil, fmt.Errorf("%w: ANMF before VP8X", ErrMalformed)
			}

			buf, err := readChunk(data, length, anmfHeaderSize)
			if err != nil {
				return nil, err
			}

			frame, err := parseFrame(buf)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", len(anim.Frames), err)
			}

			if !frame.Bounds().In(image.Rect(0, 0, anim.Width, anim.Height)) {
				return nil, fmt.Errorf("%w: frame %d at %v is outside the %dx%d canvas",
					ErrMalformed, len(anim.Frames), frame.Bounds(), anim.Width, anim.Height)
			}

			anim.Frames = append(anim.Frames, frame)

		case fccVP8, fccVP8L:
			if !sawHeader {
				return nil, ErrNotAnimated
			}
		}
	}

	if !sawHeader {
		return nil, ErrNotAnimated
	}

	if len(anim.Frames) == 0 {
		return nil, fmt.Errorf("%w: no frame", ErrMalformed)
	}

	return anim, nil
}

// readChunk reads a whole chunk payload, at least min bytes long.
func readChunk(data io.Reader, length uint32, minSize int) ([]byte, error) {
	if int64(length) < int64(minSize) {
		return nil, fmt.Errorf("%w: chunk of %d bytes, want at least %d", ErrMalformed, length, minSize)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(data, buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return buf, nil
}

func parseFrame(buf []byte) (Frame, error) {
	frame := Frame{
		X:        int(uint24(buf[0:])) * 2,
		Y:        int(uint24(buf[3:])) * 2,
		Width:    int(uint24(buf[6:])) + 1,
		Height:   int(uint24(buf[9:])) + 1,
		Duration: time.Duration(uint24(buf[12:])) * time.Millisecond,
		Blend:    buf[15]&frameNoBlend == 0,
		Dispose:  buf[15]&frameDispose != 0,
	}

	rest := buf[anmfHeaderSize:]
	for len(rest) > 0 {
		if len(rest) < 8 {
			return Frame{}, fmt.Errorf("%w: truncated sub chunk", ErrMalformed)
		}

		var id riff.FourCC
		copy(id[:], rest[:4])
		size := binary.LittleEndian.Uint32(rest[4:8])
		rest = rest[8:]
		if uint64(size) > uint64(len(rest)) {
			return Frame{}, fmt.Errorf("%w: sub chunk %q of %d bytes, %d left", ErrMalformed, id[:], size, len(rest))
		}

		payload := rest[:size]
		rest = rest[size:]
		if size%2 == 1 && len(rest) > 0 {
			rest = rest[1:]
		}

		switch id {
		case fccALPH:
			frame.alpha = payload
		case fccVP8:
			frame.bitstream = payload
		case fccVP8L:
			frame.bitstream = payload
			frame.lossless = true
		}
	}

	if frame.bitstream == nil {
		return Frame{}, fmt.Errorf("%w: no bitstream", ErrMalformed)
	}

	return frame, nil
}

// Decode decodes the frame on its own, without the canvas.
func (f *Frame) Decode() (image.Image, error) {
	img, err := webp.Decode(bytes.NewReader(f.standalone()))
	if err != nil {
		return nil, err
	}

	if b := img.Bounds(); b.Dx() != f.Width || b.Dy() != f.Height {
		return nil, fmt.Errorf("%w: bitstream is %dx%d, frame header says %dx%d",
			ErrMalformed, b.Dx(), b.Dy(), f.Width, f.Height)
	}

	return img, nil
}

// standalone wraps the frame bitstream into a still WebP file
func (f *Frame) standalone() []byte {
	var body []byte
	switch {
	case f.lossless:
		body = appendChunk(body, fccVP8L, f.bitstream)
	case f.alpha != nil:
		header := make([]byte, 10)
		header[0] = flagAlpha
		putUint24(header[4:], uint32(f.Width-1))
		putUint24(header[7:], uint32(f.Height-1))
		body = appendChunk(body, fccVP8X, header)
		body = appendChunk(body, fccALPH, f.alpha)
		body = appendChunk(body, fccVP8, f.bitstream)
	default:
		body = appendChunk(body, fccVP8, f.bitstream)
	}

	file := make([]byte, 0, 12+len(body))
	file = append(file, "RIFF"...)
	file = binary.LittleEndian.AppendUint32(file, uint32(4+len(body)))
	file = append(file, fccWEBP[:]...)
	return append(file, body...)
}

func appendChunk(dst []byte, id riff.FourCC, payload []byte) []byte {
	dst = append(dst, id[:]...)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	dst = append(dst, payload...)
	if len(payload)%2 == 1 {
		dst = append(dst, 0)
	}

	return dst
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}
