package cvflow

import (
	"github.com/Zelak312/flowarr/interp"
	"github.com/pkg/errors"
)

// fieldFromFloats converts interleaved dx,dy pairs into a motion field.
func fieldFromFloats(width, height int, data []float32) (*interp.MotionField, error) {
	if len(data) != width*height*2 {
		return nil, errors.Wrapf(interp.ErrEstimationFailure, "got %d flow values for %dx%d", len(data), width, height)
	}

	field := interp.NewMotionField(width, height)
	for i := range field.Vectors {
		field.Vectors[i] = interp.Vector{DX: data[2*i], DY: data[2*i+1]}
	}

	return field, nil
}
