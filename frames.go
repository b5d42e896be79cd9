package main

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Zelak312/flowarr/interp"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const framePattern = "%08d.png"

var frameExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// FramesBackend reads and writes directories of numbered images. Input
// files are taken in lexical order, output frames are named after
// framePattern.
type FramesBackend struct {
	fps float64
}

var (
	_ interp.SourceOpener = FramesBackend{}
	_ interp.SinkOpener   = FramesBackend{}
)

func NewFramesBackend(fps float64) FramesBackend {
	return FramesBackend{fps: fps}
}

func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}

	sort.Strings(files)
	return files, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Decode(f)
	case ".jpg", ".jpeg":
		return jpeg.Decode(f)
	case ".webp":
		return webp.Decode(f)
	}

	return nil, fmt.Errorf("unsupported image format: %s", path)
}

// imageToFrame packs any image into an RGB frame
func imageToFrame(img image.Image) (*interp.Frame, error) {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	frame, err := interp.NewFrame(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}

	for i, j := 0, 0; i < len(rgba.Pix); i, j = i+4, j+interp.Channels {
		copy(frame.Data[j:j+interp.Channels], rgba.Pix[i:i+3])
	}

	return frame, nil
}

func frameToImage(frame *interp.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for i, j := 0, 0; j < len(frame.Data); i, j = i+4, j+interp.Channels {
		copy(img.Pix[i:i+3], frame.Data[j:j+interp.Channels])
		img.Pix[i+3] = 0xff
	}

	return img
}

func (b FramesBackend) OpenSource(_ context.Context, dir string) (interp.Source, error) {
	files, err := listFrames(dir)
	if err != nil {
		return nil, err
	}

	src := &framesSource{files: files}
	src.meta = interp.StreamMetadata{FrameRate: b.fps, FrameCount: int64(len(files))}
	if len(files) == 0 {
		return nil, fmt.Errorf("no frames found in %s", dir)
	}

	// decode the first frame up front for the stream size
	first, err := src.decode(files[0])
	if err != nil {
		return nil, err
	}

	src.first = first
	src.meta.Width, src.meta.Height = first.Width, first.Height
	return src, nil
}

func (b FramesBackend) OpenSink(_ context.Context, dir string, width, height int, _ float64) (interp.Sink, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}

	return &framesSink{dir: dir, width: width, height: height, encoder: &png.Encoder{CompressionLevel: png.BestSpeed}}, nil
}

type framesSource struct {
	files []string
	meta  interp.StreamMetadata
	first *interp.Frame
	pos   int
}

func (s *framesSource) decode(path string) (*interp.Frame, error) {
	img, err := decodeImage(path)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}

	return imageToFrame(img)
}

func (s *framesSource) Metadata() interp.StreamMetadata {
	return s.meta
}

func (s *framesSource) Read(ctx context.Context) (*interp.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.pos >= len(s.files) {
		return nil, io.EOF
	}

	path := s.files[s.pos]
	s.pos++
	if first := s.first; first != nil {
		s.first = nil
		return first, nil
	}

	return s.decode(path)
}

func (s *framesSource) Close() error {
	s.first = nil
	return nil
}

type framesSink struct {
	dir     string
	width   int
	height  int
	index   int
	encoder *png.Encoder
}

func (s *framesSink) Write(frame *interp.Frame) error {
	if frame.Width != s.width || frame.Height != s.height {
		return fmt.Errorf("%w: frame %dx%d, sink %dx%d", interp.ErrShapeMismatch, frame.Width, frame.Height, s.width, s.height)
	}

	path := filepath.Join(s.dir, fmt.Sprintf(framePattern, s.index))
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := s.encoder.Encode(f, frameToImage(frame)); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	if err := f.Close(); err != nil {
		return err
	}

	s.index++
	return nil
}

func (s *framesSink) Close() error {
	return nil
}
