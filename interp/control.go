package interp

import (
	"context"
	"sync"
)

// Control carries pause and stop requests to a running pipeline. The
// pipeline only looks at it between frame pairs.
type Control struct {
	mu      sync.Mutex
	paused  bool
	stopped bool
	changed chan struct{}
}

func NewControl() *Control {
	return &Control{changed: make(chan struct{})}
}

func (c *Control) Pause() {
	c.set(func() { c.paused = true })
}

func (c *Control) Resume() {
	c.set(func() { c.paused = false })
}

// Stop is final, a stopped control cannot be resumed.
func (c *Control) Stop() {
	c.set(func() { c.stopped = true })
}

func (c *Control) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Control) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Control) set(apply func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	apply()
	close(c.changed)
	c.changed = make(chan struct{})
}

// Checkpoint blocks while the control is paused. It returns true when a stop
// was requested. onPause, if set, is called with true when the caller gets
// parked and with false when it is released again.
func (c *Control) Checkpoint(ctx context.Context, onPause func(paused bool)) (bool, error) {
	parked := false
	defer func() {
		if parked && onPause != nil {
			onPause(false)
		}
	}()

	for {
		c.mu.Lock()
		stopped, paused, changed := c.stopped, c.paused, c.changed
		c.mu.Unlock()

		if stopped {
			return true, nil
		}

		if !paused {
			return false, nil
		}

		if !parked {
			parked = true
			if onPause != nil {
				onPause(true)
			}
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
