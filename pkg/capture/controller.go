package capture

import (
	"context"
	"sync"
	"time"
)

// Controller states.
const (
	StateRunning  = "running"
	StateStopping = "stopping"
)

// TimelineEntry records one controller transition.
type TimelineEntry struct {
	State     string
	Reason    string
	Timestamp time.Time
}

// Controller carries the stop request for a session across goroutines. The
// first Kill wins; later calls only add their error if none was recorded.
type Controller struct {
	clock func() time.Time

	mu       sync.Mutex
	stopping bool
	stopErr  error
	timeline []TimelineEntry
	done     chan struct{}
}

// NewController constructs a controller in the running state.
func NewController(clock func() time.Time) *Controller {
	if clock == nil {
		clock = time.Now
	}
	c := &Controller{clock: clock, done: make(chan struct{})}
	c.timeline = append(c.timeline, TimelineEntry{State: StateRunning, Reason: "start", Timestamp: clock()})
	return c
}

// Kill requests the session to stop. reason is recorded in the timeline.
func (c *Controller) Kill(reason string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil && c.stopErr == nil {
		c.stopErr = err
	}
	if c.stopping {
		return
	}
	c.stopping = true
	c.timeline = append(c.timeline, TimelineEntry{State: StateStopping, Reason: reason, Timestamp: c.clock()})
	close(c.done)
}

// Done is closed once Kill has been called.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Err returns the error passed to Kill, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopErr
}

// Wait blocks until the controller is killed or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		if err := c.Err(); err != nil {
			return err
		}
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State reports the textual state for diagnostics.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopping {
		return StateStopping
	}
	return StateRunning
}

// Timeline returns a copy of the recorded transitions.
func (c *Controller) Timeline() []TimelineEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TimelineEntry(nil), c.timeline...)
}
