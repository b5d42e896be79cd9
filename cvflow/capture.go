//go:build opencv

package cvflow

import (
	"context"
	"io"
	"math"

	"github.com/Zelak312/flowarr/interp"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Capture decodes a video through OpenCV. Frames are converted to RGB so
// they can be mixed with the ffmpeg backends.
type Capture struct {
	vc   *gocv.VideoCapture
	meta interp.StreamMetadata
	raw  gocv.Mat
	rgb  gocv.Mat
}

var _ interp.Source = (*Capture)(nil)

func OpenCapture(_ context.Context, path string) (interp.Source, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open capture %s", path)
	}

	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Errorf("capture %s could not be opened", path)
	}

	meta := interp.StreamMetadata{
		Width:      int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(vc.Get(gocv.VideoCaptureFrameHeight)),
		FrameRate:  vc.Get(gocv.VideoCaptureFPS),
		FrameCount: int64(math.Max(0, vc.Get(gocv.VideoCaptureFrameCount))),
	}

	return &Capture{vc: vc, meta: meta, raw: gocv.NewMat(), rgb: gocv.NewMat()}, nil
}

func (c *Capture) Metadata() interp.StreamMetadata {
	return c.meta
}

// Read returns io.EOF once OpenCV stops producing frames. OpenCV does not
// tell a truncated stream apart from its end.
func (c *Capture) Read(ctx context.Context) (*interp.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if ok := c.vc.Read(&c.raw); !ok || c.raw.Empty() {
		return nil, io.EOF
	}

	if c.raw.Type() != gocv.MatTypeCV8UC3 {
		return nil, errors.Wrapf(interp.ErrDecode, "unsupported frame type %v", c.raw.Type())
	}

	gocv.CvtColor(c.raw, &c.rgb, gocv.ColorBGRToRGB)
	return interp.FrameFromBytes(c.rgb.Cols(), c.rgb.Rows(), c.rgb.ToBytes())
}

func (c *Capture) Close() error {
	c.raw.Close()
	c.rgb.Close()
	return c.vc.Close()
}
