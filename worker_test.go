package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Zelak312/flowarr/interp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorker(config *Config) *Worker {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewWorker(0, logrus.NewEntry(log), config, nil)
}

func countFrames(t *testing.T, dir string) int {
	t.Helper()

	files, err := listFrames(dir)
	require.NoError(t, err)
	return len(files)
}

func TestWorkerProcess(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	out := filepath.Join(t.TempDir(), "nested", "out")
	writeFrames(t, in, 4, 2, 0, 60, 120, 180)

	w := testWorker(testConfig(t))
	result, err := w.Process(context.Background(), &Job{ID: 7, Path: in, OutputPath: out, Factor: 3})
	require.NoError(t, err)

	assert.Equal(t, ResultCompleted, result.Status)
	assert.Equal(t, int64(7), result.JobID)
	assert.Equal(t, int64(4), result.FramesIn)
	assert.Equal(t, int64(10), result.FramesOut)
	assert.Empty(t, result.DegradedPairs)
	assert.Equal(t, 10, countFrames(t, out))

	info := w.GetInfo()
	assert.False(t, info.Active)
	assert.Nil(t, info.Job)
}

func TestWorkerProcessUsesConfigFactor(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	out := filepath.Join(t.TempDir(), "out")
	writeFrames(t, in, 2, 2, 0, 100)

	config := testConfig(t)
	config.Factor = 4
	result, err := testWorker(config).Process(context.Background(), &Job{Path: in, OutputPath: out})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.FramesOut)
}

func TestWorkerProcessNotFound(t *testing.T) {
	w := testWorker(testConfig(t))
	result, err := w.Process(context.Background(), &Job{Path: filepath.Join(t.TempDir(), "missing"), OutputPath: filepath.Join(t.TempDir(), "out")})
	require.NoError(t, err)
	assert.Equal(t, ResultNotFound, result.Status)
}

func TestWorkerProcessSkipsExistingOutput(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	out := filepath.Join(t.TempDir(), "out")
	writeFrames(t, in, 2, 2, 0, 100)
	require.NoError(t, os.Mkdir(out, os.ModePerm))

	result, err := testWorker(testConfig(t)).Process(context.Background(), &Job{Path: in, OutputPath: out})
	require.NoError(t, err)
	assert.Equal(t, ResultSkipped, result.Status)
	assert.Zero(t, countFrames(t, out))
}

func TestWorkerProcessReplacesExistingOutput(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	out := filepath.Join(t.TempDir(), "out")
	writeFrames(t, in, 2, 2, 0, 100)
	writeFrames(t, out, 2, 2, 1, 1, 1, 1, 1, 1, 1, 1)

	config := testConfig(t)
	config.DeleteOutputIfAlreadyExist = boolPtr(true)
	result, err := testWorker(config).Process(context.Background(), &Job{Path: in, OutputPath: out})
	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, result.Status)
	assert.Equal(t, 3, countFrames(t, out))

	exist, err := PathExist(tmpPath(out))
	require.NoError(t, err)
	assert.False(t, exist)
}

func TestWorkerProcessInvalidMode(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	writeFrames(t, in, 2, 2, 0, 100)

	result, err := testWorker(testConfig(t)).Process(context.Background(), &Job{Path: in, OutputPath: filepath.Join(t.TempDir(), "out"), Mode: "dain"})
	assert.Error(t, err)
	assert.Equal(t, ResultFailed, result.Status)
}

func TestWorkerProcessKeepsIntermediateOnTranscodeFailure(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	out := filepath.Join(t.TempDir(), "out.mp4")
	writeFrames(t, in, 2, 2, 0, 100, 200)

	config := testConfig(t)
	config.Transcode.Enabled = boolPtr(true)
	config.Transcode.Binary = filepath.Join(t.TempDir(), "no-such-ffmpeg")

	result, err := testWorker(config).Process(context.Background(), &Job{Path: in, OutputPath: out})
	require.NoError(t, err)
	assert.Equal(t, ResultTranscodeFailed, result.Status)
	assert.Equal(t, int64(5), result.FramesOut)
	assert.Equal(t, filepath.Join(filepath.Dir(out), "out.intermediate"), result.Output)
	assert.Equal(t, 5, countFrames(t, result.Output))

	exist, err := PathExist(out)
	require.NoError(t, err)
	assert.False(t, exist)
}

func TestWorkerProcessKeepsPartialOutputOnSinkFailure(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out")
	writeFrames(t, in, 2, 2, 0, 100, 200)

	// the old output is replaced through out.tmp, where frame 2 can't be created
	require.NoError(t, os.MkdirAll(out, os.ModePerm))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpPath(out), "00000002.png"), os.ModePerm))

	config := testConfig(t)
	config.DeleteOutputIfAlreadyExist = boolPtr(true)

	result, err := testWorker(config).Process(context.Background(), &Job{Path: in, OutputPath: out, Factor: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, interp.ErrSinkWrite)
	assert.Equal(t, ResultFailed, result.Status)
	assert.Equal(t, int64(2), result.FramesOut)
	assert.Equal(t, filepath.Join(dir, "out.partial"), result.Output)
	assert.Equal(t, 2, countFrames(t, result.Output))

	exist, err := PathExist(tmpPath(out))
	require.NoError(t, err)
	assert.False(t, exist)
}

func TestWorkerProcessDropsOutputWhenNothingWasWritten(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out")
	writeFrames(t, in, 2, 2, 0, 100)

	require.NoError(t, os.MkdirAll(out, os.ModePerm))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpPath(out), "00000000.png"), os.ModePerm))

	config := testConfig(t)
	config.DeleteOutputIfAlreadyExist = boolPtr(true)

	result, err := testWorker(config).Process(context.Background(), &Job{Path: in, OutputPath: out})
	assert.ErrorIs(t, err, interp.ErrSinkWrite)
	assert.Equal(t, int64(0), result.FramesOut)
	assert.Empty(t, result.Output)

	for _, path := range []string{tmpPath(out), filepath.Join(dir, "out.partial")} {
		exist, err := PathExist(path)
		require.NoError(t, err)
		assert.False(t, exist, path)
	}
}

func TestWorkerControlWithoutJob(t *testing.T) {
	w := testWorker(testConfig(t))
	assert.ErrorIs(t, w.Pause(), ErrNoActiveJob)
	assert.ErrorIs(t, w.Resume(), ErrNoActiveJob)
	assert.ErrorIs(t, w.Stop(), ErrNoActiveJob)
}

func TestPoolWorkerProcessesQueue(t *testing.T) {
	discardLogs(t)
	store := newTestStore(t)

	in := filepath.Join(t.TempDir(), "in")
	writeFrames(t, in, 2, 2, 0, 100)

	done := Job{Path: in, OutputPath: filepath.Join(t.TempDir(), "out")}
	missing := Job{Path: filepath.Join(t.TempDir(), "missing"), OutputPath: filepath.Join(t.TempDir(), "out")}
	_, err := store.InsertJob(&done)
	require.NoError(t, err)
	_, err = store.InsertJob(&missing)
	require.NoError(t, err)

	jobs, err := store.GetJobs()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := NewQueue(jobs, nil)
	pool, err := NewPoolWorker(ctx, queue, testConfig(t), store, nil)
	require.NoError(t, err)
	go pool.RunDispatcher()

	assert.Eventually(t, func() bool {
		pending, err := store.GetJobs()
		return err == nil && len(pending) == 0 && queue.Len() == 0
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	pool.Wait()

	results, err := store.GetJobResults(done.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ResultCompleted, results[0].Status)
	assert.Equal(t, int64(3), results[0].FramesOut)

	failed, err := store.GetFailedJobs()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, missing.ID, failed[0].Job.ID)
	assert.Equal(t, ResultNotFound, failed[0].Status)
}
