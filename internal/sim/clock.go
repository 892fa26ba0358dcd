package sim

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobFunc is a named periodic task driven by the clock.
type JobFunc func(now time.Time)

type job struct {
	name     string
	interval time.Duration
	lastRun  time.Time
	fn       JobFunc
}

// Clock drives every periodic loop of the world from a single ticker.
// Jobs run at their own cadence; one Stop cancels everything. Start is
// idempotent so repeated world restarts never double the loops.
type Clock struct {
	resolution time.Duration
	jobs       []*job
	cancel     context.CancelFunc
	mu         sync.Mutex
	logger     *zap.Logger
}

// NewClock creates a clock that checks job deadlines every resolution.
func NewClock(resolution time.Duration, logger *zap.Logger) *Clock {
	return &Clock{resolution: resolution, logger: logger}
}

// AddJob registers a named periodic job. A job with the same name replaces
// the previous registration.
func (c *Clock) AddJob(name string, interval time.Duration, fn JobFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, j := range c.jobs {
		if j.name == name {
			j.interval = interval
			j.fn = fn
			return
		}
	}
	c.jobs = append(c.jobs, &job{name: name, interval: interval, fn: fn})
}

// Jobs returns the registered job names in registration order.
func (c *Clock) Jobs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.jobs))
	for i, j := range c.jobs {
		names[i] = j.name
	}
	return names
}

// Start begins the tick loop. Calling Start on a running clock is a no-op.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.loop(ctx)
	c.logger.Info("clock started",
		zap.Duration("resolution", c.resolution),
		zap.Int("jobs", len(c.jobs)))
}

// Stop halts the tick loop and all jobs with it.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
		c.logger.Info("clock stopped")
	}
}

// Running reports whether the tick loop is active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Clock) loop(ctx context.Context) {
	ticker := time.NewTicker(c.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Tick(now)
		}
	}
}

// Tick runs every job whose interval has elapsed as of now. Exposed so
// tests can drive the clock without real timers.
func (c *Clock) Tick(now time.Time) {
	c.mu.Lock()
	var due []*job
	for _, j := range c.jobs {
		if j.lastRun.IsZero() {
			j.lastRun = now
			continue
		}
		if now.Sub(j.lastRun) >= j.interval {
			j.lastRun = now
			due = append(due, j)
		}
	}
	c.mu.Unlock()

	for _, j := range due {
		j.fn(now)
	}
}
