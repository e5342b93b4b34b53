package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// semaphore is a simple counting semaphore built on a buffered channel.
type semaphore chan struct{}

func newSemaphore(capacity int) semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return make(semaphore, capacity)
}

func (s semaphore) acquire() { s <- struct{}{} }
func (s semaphore) release() { <-s }

// acquireCtx waits for a slot until ctx is done, reporting whether the
// slot was obtained.
func (s semaphore) acquireCtx(ctx context.Context) bool {
	select {
	case s <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

// inFlight reports how many holders the semaphore currently has, for the
// per-tool active gauge.
func (s semaphore) inFlight() int { return len(s) }

// semaphoreCache lazily constructs one semaphore per tool class and
// reuses it across concurrent requests. Construction is guarded by
// singleflight so two goroutines racing to create the same tool's
// semaphore on first use converge on a single instance instead of
// each allocating (and the loser's being silently discarded).
type semaphoreCache struct {
	group singleflight.Group

	mu    sync.RWMutex
	byKey map[string]semaphore
}

func newSemaphoreCache() *semaphoreCache {
	return &semaphoreCache{byKey: make(map[string]semaphore)}
}

// get returns the semaphore for key, constructing it with capacity on
// first use. capacity is ignored on subsequent calls for the same key.
func (c *semaphoreCache) get(key string, capacity int) semaphore {
	c.mu.RLock()
	if s, ok := c.byKey[key]; ok {
		c.mu.RUnlock()
		return s
	}
	c.mu.RUnlock()

	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if s, ok := c.byKey[key]; ok {
			return s, nil
		}
		s := newSemaphore(capacity)
		c.byKey[key] = s
		return s, nil
	})
	return v.(semaphore)
}
