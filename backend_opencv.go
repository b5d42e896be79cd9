//go:build opencv

package main

import (
	"github.com/Zelak312/flowarr/cvflow"
	"github.com/Zelak312/flowarr/interp"
)

const opencvSupport = true

func openCVBackend(config *Config) (Backend, error) {
	return Backend{
		Name:    BackendOpenCV,
		Sources: interp.SourceOpenerFunc(cvflow.OpenCapture),
		Sinks:   cvflow.WriterOpener(config.OpenCV.FourCC),
	}, nil
}

func flowEstimator() interp.MotionEstimator {
	return cvflow.NewFarneback()
}
