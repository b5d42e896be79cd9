package interp

import (
	"fmt"
	"math"
)

// Vector is the displacement of one source pixel towards the paired frame.
type Vector struct {
	DX float32
	DY float32
}

// MotionField holds one Vector per pixel of the source frame, row-major.
type MotionField struct {
	Width   int
	Height  int
	Vectors []Vector
}

func NewMotionField(width, height int) *MotionField {
	return &MotionField{
		Width:   width,
		Height:  height,
		Vectors: make([]Vector, width*height),
	}
}

func (m *MotionField) At(x, y int) Vector {
	return m.Vectors[y*m.Width+x]
}

func (m *MotionField) Set(x, y int, v Vector) {
	m.Vectors[y*m.Width+x] = v
}

// Validate checks the field can be used to warp a width x height frame.
func (m *MotionField) Validate(width, height int) error {
	if m == nil {
		return fmt.Errorf("%w: no field returned", ErrEstimationFailure)
	}

	if m.Width != width || m.Height != height || len(m.Vectors) != width*height {
		return fmt.Errorf("%w: field %dx%d (%d vectors), frame %dx%d", ErrShapeMismatch,
			m.Width, m.Height, len(m.Vectors), width, height)
	}

	for i, v := range m.Vectors {
		if !finite(float64(v.DX)) || !finite(float64(v.DY)) {
			return fmt.Errorf("%w: non finite vector at (%d,%d)", ErrEstimationFailure, i%width, i/width)
		}
	}

	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
