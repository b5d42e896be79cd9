package interp

import (
	"bytes"
	"fmt"
)

// Channels is the number of interleaved 8-bit samples per pixel.
const Channels = 3

// Frame is a packed W*H*3 pixel buffer, row-major. The channel order is
// whatever the source produced; nothing in this package depends on it.
// A Frame must not be modified once it was handed to another stage.
type Frame struct {
	Width  int
	Height int
	Data   []byte
}

// NewFrame allocates a zeroed frame
func NewFrame(width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: frame size %dx%d", ErrInvalidParameter, width, height)
	}

	return &Frame{
		Width:  width,
		Height: height,
		Data:   make([]byte, width*height*Channels),
	}, nil
}

// FrameFromBytes wraps data without copying it
func FrameFromBytes(width, height int, data []byte) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: frame size %dx%d", ErrInvalidParameter, width, height)
	}

	if len(data) != width*height*Channels {
		return nil, fmt.Errorf("%w: got %d bytes for a %dx%d frame", ErrShapeMismatch, len(data), width, height)
	}

	return &Frame{Width: width, Height: height, Data: data}, nil
}

func (f *Frame) Size() int {
	return f.Width * f.Height * Channels
}

func (f *Frame) SameShape(other *Frame) bool {
	return f != nil && other != nil &&
		f.Width == other.Width && f.Height == other.Height && len(f.Data) == len(other.Data)
}

func (f *Frame) Equal(other *Frame) bool {
	return f.SameShape(other) && bytes.Equal(f.Data, other.Data)
}

func (f *Frame) Clone() *Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return &Frame{Width: f.Width, Height: f.Height, Data: data}
}

// Gray reduces the frame to one channel using the rounded channel mean.
func (f *Frame) Gray() *Gray {
	g := &Gray{Width: f.Width, Height: f.Height, Pix: make([]uint8, f.Width*f.Height)}
	for i := range g.Pix {
		p := f.Data[i*Channels : i*Channels+Channels]
		sum := int(p[0]) + int(p[1]) + int(p[2])
		g.Pix[i] = uint8((sum + 1) / 3)
	}

	return g
}

// Gray is a single channel 8-bit image handed to motion estimators.
type Gray struct {
	Width  int
	Height int
	Pix    []uint8
}

func checkShape(a, b *Frame) error {
	if a == nil || b == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidParameter)
	}

	if !a.SameShape(b) {
		return fmt.Errorf("%w: %dx%d (%d bytes) vs %dx%d (%d bytes)", ErrShapeMismatch,
			a.Width, a.Height, len(a.Data), b.Width, b.Height, len(b.Data))
	}

	return nil
}
