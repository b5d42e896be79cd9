package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Zelak312/flowarr/interp"
	"github.com/hashicorp/go-multierror"
)

type FFProbeOutput struct {
	Streams []struct {
		Width          int    `json:"width"`
		Height         int    `json:"height"`
		FrameRate      string `json:"r_frame_rate"`
		FrameCount     string `json:"nb_frames"`
		FrameCountRead string `json:"nb_read_frames"`
	} `json:"streams"`
}

type VideoInfo struct {
	InputPath  string
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int64
}

func (v *VideoInfo) Metadata() interp.StreamMetadata {
	return interp.StreamMetadata{
		Width:      v.Width,
		Height:     v.Height,
		FrameRate:  v.FrameRate,
		FrameCount: v.FrameCount,
	}
}

func parseVideoInfoFFProbeOutput(output string) (*FFProbeOutput, error) {
	var probeOutput FFProbeOutput
	if err := json.Unmarshal([]byte(output), &probeOutput); err != nil {
		return nil, fmt.Errorf("parsing probe output: %v\n%v", err, output)
	}

	if len(probeOutput.Streams) == 0 {
		return nil, fmt.Errorf("no video streams found")
	}

	return &probeOutput, nil
}

// parseFrameRate parses ffprobe's rational "num/den" form
func parseFrameRate(rate string) (float64, error) {
	parts := strings.Split(rate, "/")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid framerate format %q", rate)
	}

	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing framerate numerator: %v", err)
	}

	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing framerate denominator: %v", err)
	}

	if num <= 0 || den <= 0 {
		return 0, fmt.Errorf("invalid framerate %q", rate)
	}

	return num / den, nil
}

func parseFrameCount(count string) (int64, bool, error) {
	if count == "" || count == "N/A" {
		return 0, false, nil
	}

	frameCount, err := strconv.ParseInt(count, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parsing frame count: %v", err)
	}

	return frameCount, true, nil
}

func GetVideoInfo(ctx context.Context, ffprobeBinary string, inputPath string) (*VideoInfo, string, error) {
	cmd := NewCommandContext(ctx, ffprobeBinary,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames",
		"-of", "json",
		inputPath)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, output, err
	}

	ffprobeOutput, err := parseVideoInfoFFProbeOutput(output)
	if err != nil {
		return nil, output, err
	}

	mainStream := ffprobeOutput.Streams[0]
	frameRate, err := parseFrameRate(mainStream.FrameRate)
	if err != nil {
		return nil, output, err
	}

	videoInfo := VideoInfo{
		InputPath: inputPath,
		Width:     mainStream.Width,
		Height:    mainStream.Height,
		FrameRate: frameRate,
	}

	frameCount, ok, err := parseFrameCount(mainStream.FrameCount)
	if err != nil {
		return nil, output, err
	}

	if ok {
		// container already contains frame count, no need to count
		videoInfo.FrameCount = frameCount
		return &videoInfo, output, nil
	}

	// container doesn't have frame count, counting frames
	cmd = NewCommandContext(ctx, ffprobeBinary,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=nb_read_frames",
		"-of", "json",
		inputPath)

	output, err = cmd.CombinedOutput()
	if err != nil {
		return nil, output, err
	}

	ffprobeCountOutput, err := parseVideoInfoFFProbeOutput(output)
	if err != nil {
		return nil, output, err
	}

	frameCount, _, err = parseFrameCount(ffprobeCountOutput.Streams[0].FrameCountRead)
	if err != nil {
		return nil, output, err
	}

	videoInfo.FrameCount = frameCount
	return &videoInfo, output, nil
}

// FFmpegBackend decodes and encodes through ffmpeg processes exchanging
// rgb24 rawvideo over pipes.
type FFmpegBackend struct {
	options FFmpegOptions
}

var (
	_ interp.SourceOpener = FFmpegBackend{}
	_ interp.SinkOpener   = FFmpegBackend{}
)

func NewFFmpegBackend(options FFmpegOptions) FFmpegBackend {
	return FFmpegBackend{options: options}
}

func (b FFmpegBackend) readerArgs(inputPath string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostats"}
	if b.options.HWAccelDecodeFlag != "" {
		args = append(args, "-hwaccel", b.options.HWAccelDecodeFlag)
	}

	return append(args, "-i", inputPath,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1")
}

func (b FFmpegBackend) writerArgs(outputPath string, width, height int, fps float64) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostats",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "pipe:0",
	}

	if b.options.HWAccelEncodeFlag != "" {
		args = append(args, "-c:v", b.options.HWAccelEncodeFlag)
	} else {
		args = append(args, "-c:v", b.options.VideoCodec, "-crf", strconv.Itoa(b.options.CRF))
	}

	return append(args, "-pix_fmt", "yuv420p", "-y", outputPath)
}

func (b FFmpegBackend) OpenSource(ctx context.Context, inputPath string) (interp.Source, error) {
	info, output, err := GetVideoInfo(ctx, b.options.FFprobeBinary, inputPath)
	if err != nil {
		if output != "" {
			return nil, fmt.Errorf("probing video: %w: %s", err, output)
		}
		return nil, fmt.Errorf("probing video: %w", err)
	}

	reader := NewCommandContext(ctx, b.options.FFmpegBinary, b.readerArgs(inputPath)...)
	stdout, err := reader.GetStdout()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	if err := reader.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", b.options.FFmpegBinary, err)
	}

	return &ffmpegSource{
		info:      *info,
		reader:    reader,
		stdout:    stdout,
		frameSize: info.Width * info.Height * interp.Channels,
	}, nil
}

func (b FFmpegBackend) OpenSink(ctx context.Context, outputPath string, width, height int, fps float64) (interp.Sink, error) {
	writer := NewCommandContext(ctx, b.options.FFmpegBinary, b.writerArgs(outputPath, width, height, fps)...)
	stdin, err := writer.GetStdin()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}

	if err := writer.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", b.options.FFmpegBinary, err)
	}

	return &ffmpegSink{
		writer:    writer,
		stdin:     stdin,
		frameSize: width * height * interp.Channels,
	}, nil
}

type ffmpegSource struct {
	info      VideoInfo
	reader    *Command
	stdout    io.ReadCloser
	frameSize int
	done      bool
}

func (s *ffmpegSource) Metadata() interp.StreamMetadata {
	return s.info.Metadata()
}

func (s *ffmpegSource) Read(ctx context.Context) (*interp.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.done {
		return nil, io.EOF
	}

	buf := make([]byte, s.frameSize)
	_, err := io.ReadFull(s.stdout, buf)
	if err == nil {
		return interp.FrameFromBytes(s.info.Width, s.info.Height, buf)
	}

	s.done = true
	waitErr := s.reader.Wait()
	if errors.Is(err, io.EOF) && waitErr == nil {
		return nil, io.EOF
	}

	if waitErr != nil {
		return nil, fmt.Errorf("%w: %v: %s", interp.ErrDecode, waitErr, s.reader.GetOutput())
	}

	// io.ErrUnexpectedEOF, the last frame was truncated
	return nil, fmt.Errorf("%w: %v", interp.ErrDecode, err)
}

// Close kills the decoder when the stream was not read to the end. The
// resulting exit status is expected and ignored.
func (s *ffmpegSource) Close() error {
	if s.done {
		return nil
	}

	s.done = true
	_ = s.stdout.Close()
	_ = s.reader.Kill()
	_ = s.reader.Wait()
	return nil
}

type ffmpegSink struct {
	writer    *Command
	stdin     io.WriteCloser
	frameSize int
}

func (s *ffmpegSink) Write(frame *interp.Frame) error {
	if len(frame.Data) != s.frameSize {
		return fmt.Errorf("%w: got %d bytes, encoder expects %d", interp.ErrShapeMismatch, len(frame.Data), s.frameSize)
	}

	_, err := s.stdin.Write(frame.Data)
	if err != nil {
		return fmt.Errorf("writing to %s: %w", s.writer, err)
	}

	return nil
}

func (s *ffmpegSink) Close() error {
	var result *multierror.Error

	if err := s.stdin.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing stdin: %w", err))
	}

	if err := s.writer.Wait(); err != nil {
		result = multierror.Append(result, fmt.Errorf("waiting for writer: %w: %s", err, s.writer.GetOutput()))
	}

	return result.ErrorOrNil()
}
