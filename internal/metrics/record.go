// Package metrics tracks per-tool execution statistics: counts, timings,
// percentile snapshots, and an LRU-backed registry that evicts idle tool
// records, with an optional Prometheus bridge.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

const recentRingCap = 100

// Execution is one entry in a record's bounded recent-execution ring.
type Execution struct {
	Timestamp time.Time
	Success   bool
	Duration  time.Duration
	TimedOut  bool
	ErrorKind string
}

// Record is one tool's thread-safe execution metrics.
type Record struct {
	mu sync.Mutex

	toolName string

	executionCount int64
	successCount   int64
	failureCount   int64
	timeoutCount   int64
	errorCount     int64

	totalDuration time.Duration
	minDuration   time.Duration
	maxDuration   time.Duration

	lastExecutionAt time.Time
	recent          []Execution
}

// NewRecord constructs an empty metrics record for a tool.
func NewRecord(toolName string) *Record {
	return &Record{toolName: toolName, minDuration: -1}
}

// Observe appends one execution outcome to the record, sanitizing
// non-finite durations.
func (r *Record) Observe(success, timedOut bool, duration time.Duration, errorKind string) {
	d := sanitizeDuration(duration)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.executionCount++
	if success {
		r.successCount++
	} else {
		r.failureCount++
	}
	if timedOut {
		r.timeoutCount++
	}
	if errorKind != "" {
		r.errorCount++
	}

	r.totalDuration += d
	if r.minDuration < 0 || d < r.minDuration {
		r.minDuration = d
	}
	if d > r.maxDuration {
		r.maxDuration = d
	}

	r.lastExecutionAt = time.Now()
	r.recent = append(r.recent, Execution{
		Timestamp: r.lastExecutionAt,
		Success:   success,
		Duration:  d,
		TimedOut:  timedOut,
		ErrorKind: errorKind,
	})
	if len(r.recent) > recentRingCap {
		r.recent = r.recent[len(r.recent)-recentRingCap:]
	}
}

// sanitizeDuration clamps NaN/Inf/negative durations to zero, mirroring the
// spec's "sanitize NaN/Inf inputs to 0" rule for float-derived timings.
func sanitizeDuration(d time.Duration) time.Duration {
	f := float64(d)
	if math.IsNaN(f) || math.IsInf(f, 0) || d < 0 {
		return 0
	}
	return d
}

// Snapshot is a read-only view of a Record at one instant.
type Snapshot struct {
	ToolName        string
	ExecutionCount  int64
	SuccessCount    int64
	FailureCount    int64
	TimeoutCount    int64
	ErrorCount      int64
	TotalDuration   time.Duration
	MinDuration     time.Duration // zero value means "unset"
	MaxDuration     time.Duration
	AvgDuration     time.Duration
	LastExecutionAt time.Time
	P50             time.Duration
	P95             time.Duration
	P99             time.Duration
}

// Snapshot computes a point-in-time view, including percentiles over the
// recent-execution ring.
func (r *Record) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		ToolName:        r.toolName,
		ExecutionCount:  r.executionCount,
		SuccessCount:    r.successCount,
		FailureCount:    r.failureCount,
		TimeoutCount:    r.timeoutCount,
		ErrorCount:      r.errorCount,
		TotalDuration:   r.totalDuration,
		MaxDuration:     r.maxDuration,
		LastExecutionAt: r.lastExecutionAt,
	}
	if r.minDuration >= 0 {
		s.MinDuration = r.minDuration
	}
	if r.executionCount > 0 {
		s.AvgDuration = r.totalDuration / time.Duration(r.executionCount)
	}

	if len(r.recent) > 0 {
		durations := make([]time.Duration, len(r.recent))
		for i, e := range r.recent {
			durations[i] = e.Duration
		}
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		s.P50 = percentile(durations, 0.50)
		s.P95 = percentile(durations, 0.95)
		s.P99 = percentile(durations, 0.99)
	}

	return s
}

// percentile returns the value at the given fraction of a sorted slice,
// using a floor index clipped to length-1.
func percentile(sorted []time.Duration, frac float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(frac * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// LastExecutionAt reports the timestamp used for LRU/idle-sweep decisions.
func (r *Record) LastExecutionAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastExecutionAt
}
