//go:build !opencv

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zelak312/flowarr/interp"
)

const opencvSupport = false

var errNoOpenCV = errors.New("built without opencv support, rebuild with -tags opencv")

func openCVBackend(_ *Config) (Backend, error) {
	return Backend{}, fmt.Errorf("backend %s: %w", BackendOpenCV, errNoOpenCV)
}

// flowEstimator fails every estimation, flow mode degrades to blending
// pair by pair.
func flowEstimator() interp.MotionEstimator {
	return interp.MotionEstimatorFunc(func(context.Context, *interp.Gray, *interp.Gray, interp.FlowParams) (*interp.MotionField, error) {
		return nil, fmt.Errorf("%w: %w", interp.ErrEstimationFailure, errNoOpenCV)
	})
}
