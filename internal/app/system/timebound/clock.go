package timebound

import (
	"sync"
	"time"
)

// Clock supplies the current instant. Engines never read wall-clock time
// directly; they ask their Clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the process wall clock in UTC.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a settable clock for tests and replays.
// It is safe for concurrent use.
type FixedClock struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixedClock returns a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t.UTC()}
}

// Now returns the frozen instant.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
