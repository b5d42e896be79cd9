package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		rate    string
		want    float64
		wantErr bool
	}{
		{rate: "30/1", want: 30},
		{rate: "30000/1001", want: 30000.0 / 1001},
		{rate: "0/0", wantErr: true},
		{rate: "25", wantErr: true},
		{rate: "a/1", wantErr: true},
		{rate: "24/b", wantErr: true},
		{rate: "-24/1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.rate, func(t *testing.T) {
			got, err := parseFrameRate(tt.rate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseFrameCount(t *testing.T) {
	count, ok, err := parseFrameCount("1440")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1440), count)

	for _, missing := range []string{"", "N/A"} {
		_, ok, err := parseFrameCount(missing)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	_, _, err = parseFrameCount("12.5")
	assert.Error(t, err)
}

func TestParseVideoInfoFFProbeOutput(t *testing.T) {
	output := `{"streams":[{"width":1920,"height":1080,"r_frame_rate":"24000/1001","nb_frames":"240"}]}`
	probe, err := parseVideoInfoFFProbeOutput(output)
	require.NoError(t, err)
	require.Len(t, probe.Streams, 1)

	stream := probe.Streams[0]
	assert.Equal(t, 1920, stream.Width)
	assert.Equal(t, 1080, stream.Height)
	assert.Equal(t, "24000/1001", stream.FrameRate)
	assert.Equal(t, "240", stream.FrameCount)

	_, err = parseVideoInfoFFProbeOutput(`{"streams":[]}`)
	assert.Error(t, err)

	_, err = parseVideoInfoFFProbeOutput("not json")
	assert.Error(t, err)
}

func TestVideoInfoMetadata(t *testing.T) {
	info := VideoInfo{Width: 640, Height: 360, FrameRate: 25, FrameCount: 100}
	meta := info.Metadata()

	assert.NoError(t, meta.Validate())
	assert.Equal(t, 50.0, meta.OutputFrameRate(2))
	assert.Equal(t, int64(199), meta.ExpectedOutputFrames(2))
}

func TestFFmpegBackendArgs(t *testing.T) {
	backend := NewFFmpegBackend(FFmpegOptions{VideoCodec: "libx264", CRF: 20})

	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-nostats",
		"-i", "in.mp4",
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	}, backend.readerArgs("in.mp4"))

	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-nostats",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-video_size", "640x360",
		"-framerate", "59.94",
		"-i", "pipe:0",
		"-c:v", "libx264", "-crf", "20",
		"-pix_fmt", "yuv420p",
		"-y", "out.mp4",
	}, backend.writerArgs("out.mp4", 640, 360, 59.94))

	hw := NewFFmpegBackend(FFmpegOptions{HWAccelDecodeFlag: "cuda", HWAccelEncodeFlag: "h264_nvenc"})
	assert.Contains(t, hw.readerArgs("in.mp4"), "cuda")

	args := hw.writerArgs("out.mp4", 640, 360, 30)
	assert.Contains(t, args, "h264_nvenc")
	assert.NotContains(t, args, "-crf")
}
