package submissions

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/prephub/internal/app/system/timebound"
)

// Cache stores encoded feed responses under a fingerprint key.
type Cache interface {
	// Get returns the value and whether a live entry exists.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value for ttl. A non-positive ttl stores nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process Cache bounded to maxEntries.
// When full it drops expired entries first, then the entry closest to expiry.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memEntry
	clock      timebound.Clock
	maxEntries int
}

// NewMemoryCache creates a MemoryCache. A nil clock uses the system clock.
func NewMemoryCache(clock timebound.Clock, maxEntries int) *MemoryCache {
	if clock == nil {
		clock = timebound.SystemClock{}
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryCache{
		entries:    make(map[string]memEntry),
		clock:      clock,
		maxEntries: maxEntries,
	}
}

// Get returns a copy of the live value for key.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

// Set stores a copy of value until now+ttl.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evict(now)
	}
	c.entries[key] = memEntry{
		value:     append([]byte(nil), value...),
		expiresAt: now.Add(ttl),
	}
	return nil
}

// Len reports the number of stored entries, live or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) evict(now time.Time) {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.expiresAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
