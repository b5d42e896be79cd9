package interp

import (
	"context"
	"fmt"
)

// StreamMetadata is reported by a Source before the first Read.
// FrameCount is 0 when the container does not know it.
type StreamMetadata struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FrameRate  float64 `json:"frameRate"`
	FrameCount int64   `json:"frameCount"`
}

func (m StreamMetadata) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: stream size %dx%d", ErrInvalidParameter, m.Width, m.Height)
	}

	if !(m.FrameRate > 0) || !finite(m.FrameRate) {
		return fmt.Errorf("%w: stream frame rate %v", ErrInvalidParameter, m.FrameRate)
	}

	if m.FrameCount < 0 {
		return fmt.Errorf("%w: stream frame count %d", ErrInvalidParameter, m.FrameCount)
	}

	return nil
}

func (m StreamMetadata) OutputFrameRate(factor int) float64 {
	return m.FrameRate * float64(factor)
}

// ExpectedOutputFrames is (N-1)*K+1, or 0 when N is unknown.
func (m StreamMetadata) ExpectedOutputFrames(factor int) int64 {
	if m.FrameCount <= 0 {
		return 0
	}

	return (m.FrameCount-1)*int64(factor) + 1
}

// Source is a decoder. Read returns io.EOF once the stream is exhausted,
// any other error is treated as a decode failure.
type Source interface {
	Metadata() StreamMetadata
	Read(ctx context.Context) (*Frame, error)
	Close() error
}

// Sink is an encoder. Frames are written strictly in presentation order.
type Sink interface {
	Write(frame *Frame) error
	Close() error
}

type SourceOpener interface {
	OpenSource(ctx context.Context, path string) (Source, error)
}

type SinkOpener interface {
	OpenSink(ctx context.Context, path string, width, height int, fps float64) (Sink, error)
}

type SourceOpenerFunc func(ctx context.Context, path string) (Source, error)

func (f SourceOpenerFunc) OpenSource(ctx context.Context, path string) (Source, error) {
	return f(ctx, path)
}

type SinkOpenerFunc func(ctx context.Context, path string, width, height int, fps float64) (Sink, error)

func (f SinkOpenerFunc) OpenSink(ctx context.Context, path string, width, height int, fps float64) (Sink, error) {
	return f(ctx, path, width, height, fps)
}
