package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Zelak312/flowarr/interp"
)

// Backend bundles the decoder and encoder selected by the config.
type Backend struct {
	Name    string
	Sources interp.SourceOpener
	Sinks   interp.SinkOpener
}

func NewBackend(config *Config) (Backend, error) {
	switch config.Backend {
	case BackendFFmpeg:
		ffmpeg := NewFFmpegBackend(config.FFmpegOptions)
		return Backend{Name: BackendFFmpeg, Sources: ffmpeg, Sinks: ffmpeg}, nil
	case BackendOpenCV:
		return openCVBackend(config)
	case BackendFrames:
		frames := NewFramesBackend(config.FramesFPS)
		return Backend{Name: BackendFrames, Sources: frames, Sinks: frames}, nil
	}

	return Backend{}, fmt.Errorf("unknown backend %q", config.Backend)
}

// Intermediate returns where the pipeline writes when the result is
// transcoded afterwards.
func (b Backend) Intermediate(workFolder string, fps float64) Intermediate {
	switch b.Name {
	case BackendFrames:
		dir := filepath.Join(workFolder, "frames")
		return Intermediate{Path: dir, Input: filepath.Join(dir, framePattern), FPS: fps}
	case BackendOpenCV:
		path := filepath.Join(workFolder, "intermediate.avi")
		return Intermediate{Path: path, Input: path}
	}

	path := filepath.Join(workFolder, "intermediate.mkv")
	return Intermediate{Path: path, Input: path}
}

// NewStrategy builds the interpolation strategy for a job. Flow mode uses
// the OpenCV Farneback estimator when built with the opencv tag.
func NewStrategy(mode string, params interp.FlowParams) (interp.Strategy, error) {
	parsed, err := interp.ParseMode(mode)
	if err != nil {
		return nil, err
	}

	var estimator interp.MotionEstimator
	if parsed == interp.ModeFlow {
		estimator = flowEstimator()
	}

	return interp.NewStrategy(parsed, estimator, params)
}

// tmpPath keeps the extension so encoders still pick the right container.
func tmpPath(p string) string {
	ext := filepath.Ext(p)
	return strings.TrimSuffix(p, ext) + ".tmp" + ext
}
