package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zelak312/flowarr/interp"
	"github.com/Zelak312/flowarr/webpanim"
)

// WebPSource decodes animated WebP files. Frame durations are ignored, the
// stream is re-timed at a fixed rate.
type WebPSource struct {
	fps float64
}

var _ interp.SourceOpener = WebPSource{}

func NewWebPSource(fps float64) WebPSource {
	return WebPSource{fps: fps}
}

// isAnimatedWebPInput tells if the job input should go through WebPSource
// rather than the configured backend.
func isAnimatedWebPInput(path string) bool {
	if strings.ToLower(filepath.Ext(path)) != ".webp" {
		return false
	}

	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (s WebPSource) OpenSource(_ context.Context, path string) (interp.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	anim, err := webpanim.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	return &webpSource{
		compositor: webpanim.NewCompositor(anim),
		meta: interp.StreamMetadata{
			Width:      anim.Width,
			Height:     anim.Height,
			FrameRate:  s.fps,
			FrameCount: int64(len(anim.Frames)),
		},
	}, nil
}

type webpSource struct {
	compositor *webpanim.Compositor
	meta       interp.StreamMetadata
	pos        int
}

func (s *webpSource) Metadata() interp.StreamMetadata {
	return s.meta
}

func (s *webpSource) Read(ctx context.Context) (*interp.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	canvas, err := s.compositor.Next()
	if err == io.EOF {
		return nil, io.EOF
	}

	if err != nil {
		return nil, fmt.Errorf("decoding frame %d: %w", s.pos, err)
	}

	s.pos++
	return imageToFrame(canvas)
}

func (s *webpSource) Close() error {
	return nil
}
