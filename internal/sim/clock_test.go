package sim

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestClockJobsFireAtOwnCadence(t *testing.T) {
	c := NewClock(time.Second, zap.NewNop())
	fast, slow := 0, 0
	c.AddJob("fast", 2*time.Second, func(time.Time) { fast++ })
	c.AddJob("slow", 8*time.Second, func(time.Time) { slow++ })

	base := time.Now()
	for i := 0; i <= 16; i++ {
		c.Tick(base.Add(time.Duration(i) * time.Second))
	}

	if fast != 8 {
		t.Errorf("fast job fired %d times, want 8", fast)
	}
	if slow != 2 {
		t.Errorf("slow job fired %d times, want 2", slow)
	}
}

func TestClockAddJobReplacesByName(t *testing.T) {
	c := NewClock(time.Second, zap.NewNop())
	c.AddJob("loop", time.Second, func(time.Time) {})
	c.AddJob("loop", 2*time.Second, func(time.Time) {})

	if got := len(c.Jobs()); got != 1 {
		t.Errorf("jobs = %d, want 1", got)
	}
}

func TestClockStartIdempotent(t *testing.T) {
	c := NewClock(time.Hour, zap.NewNop())
	c.AddJob("noop", time.Hour, func(time.Time) {})

	c.Start()
	defer c.Stop()
	c.Start()
	c.Start()

	if !c.Running() {
		t.Fatal("clock should be running")
	}
	c.Stop()
	if c.Running() {
		t.Fatal("clock should have stopped")
	}
	// Stop on a stopped clock is also a no-op.
	c.Stop()
}
