//go:build opencv

package cvflow

import (
	"context"

	"github.com/Zelak312/flowarr/interp"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const DefaultFourCC = "XVID"

// Writer encodes RGB frames through OpenCV.
type Writer struct {
	vw     *gocv.VideoWriter
	width  int
	height int
	bgr    gocv.Mat
}

var _ interp.Sink = (*Writer)(nil)

// WriterOpener opens Writers using the given four character codec code.
func WriterOpener(fourcc string) interp.SinkOpener {
	if fourcc == "" {
		fourcc = DefaultFourCC
	}

	return interp.SinkOpenerFunc(func(_ context.Context, path string, width, height int, fps float64) (interp.Sink, error) {
		vw, err := gocv.VideoWriterFile(path, fourcc, fps, width, height, true)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open writer %s", path)
		}

		if !vw.IsOpened() {
			vw.Close()
			return nil, errors.Errorf("writer %s could not be opened with codec %s", path, fourcc)
		}

		return &Writer{vw: vw, width: width, height: height, bgr: gocv.NewMat()}, nil
	})
}

func (w *Writer) Write(frame *interp.Frame) error {
	if frame.Width != w.width || frame.Height != w.height {
		return errors.Wrapf(interp.ErrShapeMismatch, "frame %dx%d, writer %dx%d", frame.Width, frame.Height, w.width, w.height)
	}

	rgb, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return errors.Wrap(err, "failed to wrap frame")
	}
	defer rgb.Close()

	gocv.CvtColor(rgb, &w.bgr, gocv.ColorRGBToBGR)
	return w.vw.Write(w.bgr)
}

func (w *Writer) Close() error {
	w.bgr.Close()
	return w.vw.Close()
}
