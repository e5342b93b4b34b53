package metrics

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RegistryCap is the maximum number of tool records kept simultaneously;
// beyond this, inserting a new tool evicts the least-recently-touched one,
// which coincides with the oldest last_execution_ts since every access
// updates both.
const RegistryCap = 1000

// IdleEvictAfter is the age past which a record is dropped by the hourly
// sweep regardless of registry pressure.
const IdleEvictAfter = 24 * time.Hour

const sweepInterval = time.Hour

// Registry owns the per-tool Record set, backed by an LRU cache so the
// process never retains metrics for more tools than RegistryCap, and
// periodically drops idle records independent of cache pressure.
type Registry struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Record]

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRegistry constructs a Registry and starts its hourly idle sweep.
func NewRegistry() *Registry {
	cache, _ := lru.New[string, *Record](RegistryCap)
	reg := &Registry{cache: cache, stopCh: make(chan struct{})}
	go reg.sweepLoop()
	return reg
}

// GetOrCreate returns the Record for toolName, creating one on first use.
func (r *Registry) GetOrCreate(toolName string) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.cache.Get(toolName); ok {
		return rec
	}
	rec := NewRecord(toolName)
	r.cache.Add(toolName, rec)
	return rec
}

// Snapshot returns a Snapshot for every currently tracked tool.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.Lock()
	keys := r.cache.Keys()
	records := make([]*Record, 0, len(keys))
	for _, k := range keys {
		if rec, ok := r.cache.Peek(k); ok {
			records = append(records, rec)
		}
	}
	r.mu.Unlock()

	out := make([]Snapshot, len(records))
	for i, rec := range records {
		out[i] = rec.Snapshot()
	}
	return out
}

// Len reports how many tool records the registry currently holds.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}

// sweepLoop runs the hourly idle-eviction pass until Stop is called.
func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweepIdle()
		case <-r.stopCh:
			return
		}
	}
}

// sweepIdle drops any record whose last execution predates IdleEvictAfter.
func (r *Registry) sweepIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-IdleEvictAfter)
	for _, key := range r.cache.Keys() {
		rec, ok := r.cache.Peek(key)
		if !ok {
			continue
		}
		if last := rec.LastExecutionAt(); !last.IsZero() && last.Before(cutoff) {
			r.cache.Remove(key)
		}
	}
}

// Stop halts the background sweep goroutine.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}
