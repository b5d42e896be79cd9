package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// discardLogs lets CreateLogger work without a log folder
func discardLogs(t *testing.T) {
	t.Helper()

	previous := logFile
	logFile = io.Discard
	t.Cleanup(func() { logFile = previous })
}

func newTestStore(t *testing.T) *Sqlite {
	t.Helper()

	store, err := NewSqlite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations())
	t.Cleanup(func() { store.Close() })
	return store
}

func testConfig(t *testing.T) *Config {
	t.Helper()

	config := Config{
		Backend:       BackendFrames,
		Mode:          "blend",
		ProcessFolder: t.TempDir(),
	}
	require.NoError(t, verifyConfig(&config))
	return &config
}

// writeFrames writes one solid gray png per value into dir
func writeFrames(t *testing.T, dir string, width, height int, values ...uint8) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, os.ModePerm))
	for i, v := range values {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 0xff})
			}
		}

		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
}

func readRed(t *testing.T, path string) uint8 {
	t.Helper()

	img, err := decodeImage(path)
	require.NoError(t, err)
	r, _, _, _ := img.At(0, 0).RGBA()
	return uint8(r >> 8)
}
