//go:build opencv

package cvflow

import (
	"context"

	"github.com/Zelak312/flowarr/interp"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Farneback is a dense polynomial expansion estimator backed by OpenCV.
type Farneback struct {
	// Flags is passed through to cv::calcOpticalFlowFarneback
	Flags int
}

func NewFarneback() *Farneback {
	return &Farneback{}
}

var _ interp.MotionEstimator = (*Farneback)(nil)

func (f *Farneback) Estimate(ctx context.Context, prev, next *interp.Gray, params interp.FlowParams) (*interp.MotionField, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if prev.Width != next.Width || prev.Height != next.Height {
		return nil, errors.Wrapf(interp.ErrShapeMismatch, "%dx%d vs %dx%d", prev.Width, prev.Height, next.Width, next.Height)
	}

	prevMat, err := gocv.NewMatFromBytes(prev.Height, prev.Width, gocv.MatTypeCV8UC1, prev.Pix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to wrap previous frame")
	}
	defer prevMat.Close()

	nextMat, err := gocv.NewMatFromBytes(next.Height, next.Width, gocv.MatTypeCV8UC1, next.Pix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to wrap next frame")
	}
	defer nextMat.Close()

	flow := gocv.NewMat()
	defer flow.Close()

	gocv.CalcOpticalFlowFarneback(prevMat, nextMat, &flow,
		params.PyrScale, params.Levels, params.WinSize, params.Iterations, params.PolyN, params.PolySigma, f.Flags)

	if flow.Empty() || flow.Type() != gocv.MatTypeCV32FC2 {
		return nil, errors.Wrapf(interp.ErrEstimationFailure, "unexpected flow matrix type %v", flow.Type())
	}

	data, err := flow.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read flow matrix")
	}

	return fieldFromFloats(flow.Cols(), flow.Rows(), data)
}
