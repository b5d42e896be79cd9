package interp

import (
	"context"
	"fmt"
)

// MotionEstimator computes a dense field from prev to next. Implementations
// live outside this package (see cvflow).
type MotionEstimator interface {
	Estimate(ctx context.Context, prev, next *Gray, params FlowParams) (*MotionField, error)
}

// MotionEstimatorFunc adapts a function to MotionEstimator
type MotionEstimatorFunc func(ctx context.Context, prev, next *Gray, params FlowParams) (*MotionField, error)

func (f MotionEstimatorFunc) Estimate(ctx context.Context, prev, next *Gray, params FlowParams) (*MotionField, error) {
	return f(ctx, prev, next, params)
}

// FlowParams are the tuning knobs of a pyramidal polynomial expansion
// estimator. Estimators are free to ignore the ones they have no use for.
type FlowParams struct {
	PyrScale   float64 `yaml:"pyrScale" json:"pyrScale"`
	Levels     int     `yaml:"levels" json:"levels"`
	WinSize    int     `yaml:"winSize" json:"winSize"`
	Iterations int     `yaml:"iterations" json:"iterations"`
	PolyN      int     `yaml:"polyN" json:"polyN"`
	PolySigma  float64 `yaml:"polySigma" json:"polySigma"`
}

func DefaultFlowParams() FlowParams {
	return FlowParams{
		PyrScale:   0.5,
		Levels:     3,
		WinSize:    15,
		Iterations: 3,
		PolyN:      5,
		PolySigma:  1.2,
	}
}

func (p FlowParams) Validate() error {
	if !(p.PyrScale > 0 && p.PyrScale < 1) {
		return fmt.Errorf("%w: pyramid scale must be in (0,1), got %v", ErrInvalidParameter, p.PyrScale)
	}

	if p.Levels < 1 {
		return fmt.Errorf("%w: pyramid levels must be >= 1, got %d", ErrInvalidParameter, p.Levels)
	}

	if p.WinSize < 1 || p.WinSize%2 == 0 {
		return fmt.Errorf("%w: window size must be odd and >= 1, got %d", ErrInvalidParameter, p.WinSize)
	}

	if p.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be >= 1, got %d", ErrInvalidParameter, p.Iterations)
	}

	if p.PolyN < 1 {
		return fmt.Errorf("%w: polynomial neighborhood must be >= 1, got %d", ErrInvalidParameter, p.PolyN)
	}

	if !(p.PolySigma > 0) || !finite(p.PolySigma) {
		return fmt.Errorf("%w: polynomial sigma must be > 0, got %v", ErrInvalidParameter, p.PolySigma)
	}

	return nil
}
