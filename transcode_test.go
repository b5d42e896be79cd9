package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/Zelak312/flowarr/interp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transcodeOptions(binary string, keep bool) TranscodeOptions {
	return TranscodeOptions{
		Enabled:                   boolPtr(true),
		Binary:                    binary,
		VideoCodec:                "libx265",
		Preset:                    "slow",
		CRF:                       28,
		KeepIntermediateOnFailure: boolPtr(keep),
	}
}

func writeIntermediate(t *testing.T) Intermediate {
	t.Helper()

	path := filepath.Join(t.TempDir(), "intermediate.mkv")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o644))
	return Intermediate{Path: path, Input: path}
}

func TestTranscoderArgs(t *testing.T) {
	transcoder := NewTranscoder(transcodeOptions("ffmpeg", true))

	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-nostats",
		"-i", "work/intermediate.mkv",
		"-c:v", "libx265",
		"-preset", "slow",
		"-crf", "28",
		"-y", "out.mp4",
	}, transcoder.Args(Intermediate{Path: "work/intermediate.mkv", Input: "work/intermediate.mkv"}, "out.mp4"))

	args := transcoder.Args(Intermediate{Path: "work/frames", Input: "work/frames/%08d.png", FPS: 60}, "out.mp4")
	assert.Equal(t, []string{"-hide_banner", "-loglevel", "error", "-nostats", "-framerate", "60", "-i", "work/frames/%08d.png"}, args[:8])
}

func TestTranscodeMissingBinary(t *testing.T) {
	for _, keep := range []bool{true, false} {
		in := writeIntermediate(t)
		transcoder := NewTranscoder(transcodeOptions(filepath.Join(t.TempDir(), "no-such-ffmpeg"), keep))

		_, err := transcoder.Transcode(context.Background(), in, filepath.Join(t.TempDir(), "out.mp4"))
		assert.ErrorIs(t, err, interp.ErrTranscode)

		exist, err := PathExist(in.Path)
		require.NoError(t, err)
		assert.Equal(t, keep, exist)
		assert.Equal(t, keep, transcoder.KeepsIntermediateOnFailure())
	}
}

func TestTranscodeRemovesIntermediate(t *testing.T) {
	binary, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true is not available")
	}

	in := writeIntermediate(t)
	_, err = NewTranscoder(transcodeOptions(binary, true)).Transcode(context.Background(), in, filepath.Join(t.TempDir(), "out.mp4"))
	require.NoError(t, err)

	exist, err := PathExist(in.Path)
	require.NoError(t, err)
	assert.False(t, exist)
}
