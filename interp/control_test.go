package interp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlCheckpointPassesThrough(t *testing.T) {
	c := NewControl()
	stop, err := c.Checkpoint(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, stop)
}

func TestControlPauseBlocksUntilResume(t *testing.T) {
	c := NewControl()
	c.Pause()
	require.True(t, c.Paused())

	var events []bool
	done := make(chan bool)
	go func() {
		stop, _ := c.Checkpoint(context.Background(), func(paused bool) {
			events = append(events, paused)
		})
		done <- stop
	}()

	select {
	case <-done:
		t.Fatal("checkpoint returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	c.Resume()
	select {
	case stop := <-done:
		assert.False(t, stop)
	case <-time.After(time.Second):
		t.Fatal("checkpoint still blocked after resume")
	}

	assert.Equal(t, []bool{true, false}, events)
}

func TestControlStopReleasesPausedCheckpoint(t *testing.T) {
	c := NewControl()
	c.Pause()

	done := make(chan bool)
	go func() {
		stop, _ := c.Checkpoint(context.Background(), nil)
		done <- stop
	}()

	c.Stop()
	select {
	case stop := <-done:
		assert.True(t, stop)
	case <-time.After(time.Second):
		t.Fatal("checkpoint still blocked after stop")
	}

	c.Resume()
	assert.True(t, c.Stopped())
}

func TestControlCheckpointCancelled(t *testing.T) {
	c := NewControl()
	c.Pause()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Checkpoint(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReorderBuffer(t *testing.T) {
	r := newReorderBuffer()

	assert.Empty(t, r.push(pairResult{index: 2}))
	assert.Empty(t, r.push(pairResult{index: 1}))
	assert.Equal(t, 2, r.len())

	ready := r.push(pairResult{index: 0})
	require.Len(t, ready, 3)
	for i, res := range ready {
		assert.Equal(t, i, res.index)
	}
	assert.Equal(t, 0, r.len())

	ready = r.push(pairResult{index: 3})
	require.Len(t, ready, 1)
	assert.Equal(t, 3, ready[0].index)
}
