package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/Zelak312/flowarr/interp"
)

// Intermediate is what the pipeline produced before the final encode.
type Intermediate struct {
	// Path is removed once transcoded
	Path string
	// Input is handed to -i, it differs from Path for image sequences
	Input string
	// FPS is only needed for image sequences
	FPS float64
}

type Transcoder struct {
	options TranscodeOptions
}

func NewTranscoder(options TranscodeOptions) *Transcoder {
	return &Transcoder{options: options}
}

func (t *Transcoder) Args(in Intermediate, outputPath string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostats"}
	if in.FPS > 0 {
		args = append(args, "-framerate", strconv.FormatFloat(in.FPS, 'f', -1, 64))
	}

	return append(args,
		"-i", in.Input,
		"-c:v", t.options.VideoCodec,
		"-preset", t.options.Preset,
		"-crf", strconv.Itoa(t.options.CRF),
		"-y", outputPath)
}

// KeepsIntermediateOnFailure reports whether a failed transcode leaves the
// intermediate in place.
func (t *Transcoder) KeepsIntermediateOnFailure() bool {
	return t.options.KeepIntermediateOnFailure != nil && *t.options.KeepIntermediateOnFailure
}

// Transcode encodes in to outputPath and returns the process output. The
// intermediate is removed on success, and on failure unless configured to
// be kept.
func (t *Transcoder) Transcode(ctx context.Context, in Intermediate, outputPath string) (string, error) {
	cmd := NewCommandContext(ctx, t.options.Binary, t.Args(in, outputPath)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if !t.KeepsIntermediateOnFailure() {
			_ = os.RemoveAll(in.Path)
		}
		return output, fmt.Errorf("%w: %s: %w", interp.ErrTranscode, cmd, err)
	}

	if err := os.RemoveAll(in.Path); err != nil {
		return output, fmt.Errorf("removing intermediate %s: %w", in.Path, err)
	}

	return output, nil
}
