// Package health implements the priority-weighted health monitor: a set of
// named checks run concurrently on a timer, aggregated into one overall
// status for the HTTP /health endpoint, the SSE /events stream, and the
// doctor CLI.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is a check's or the system's overall health verdict.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Priority ranks how much a failing check should drag down the aggregate.
type Priority int

const (
	PriorityCritical      Priority = 0
	PriorityImportant     Priority = 1
	PriorityInformational Priority = 2
)

// Result is one check's outcome.
type Result struct {
	Name     string
	Priority Priority
	Status   Status
	Message  string
	Duration time.Duration
}

// Check is a single named, timed health probe.
type Check struct {
	Name     string
	Priority Priority
	Timeout  time.Duration
	Run      func(ctx context.Context) Result
}

// SystemHealth is the aggregated snapshot returned to callers.
type SystemHealth struct {
	Status    Status
	CheckedAt time.Time
	Checks    []Result
}

const defaultCheckInterval = 30 * time.Second
const minCheckInterval = 5 * time.Second
const timeoutMargin = 2 * time.Second

// Monitor runs a fixed set of Checks on an interval, guarding against
// overlapping runs and aggregating results by worst-priority-first.
type Monitor struct {
	checks   []Check
	interval time.Duration

	mu       sync.Mutex
	running  bool
	last     SystemHealth
	hasFirst bool

	stopCh chan struct{}
}

// NewMonitor builds a Monitor. interval is clamped to minCheckInterval; zero
// uses defaultCheckInterval.
func NewMonitor(checks []Check, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	if interval < minCheckInterval {
		interval = minCheckInterval
	}
	return &Monitor{checks: checks, interval: interval, stopCh: make(chan struct{})}
}

// RunOnce executes all checks concurrently and returns the aggregated
// snapshot, without touching the monitor's overlap guard or cached state.
// Used directly by the doctor CLI for a one-shot report.
func (m *Monitor) RunOnce(ctx context.Context) SystemHealth {
	results := make([]Result, len(m.checks))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range m.checks {
		i, c := i, c
		g.Go(func() error {
			results[i] = runWithTimeout(gctx, c)
			return nil
		})
	}
	_ = g.Wait()

	return SystemHealth{
		Status:    aggregate(results),
		CheckedAt: time.Now(),
		Checks:    results,
	}
}

// runWithTimeout bounds one check to its configured timeout plus a fixed
// safety margin, reporting unhealthy on overrun instead of blocking forever.
func runWithTimeout(ctx context.Context, c Check) Result {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout+timeoutMargin)
	defer cancel()

	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		done <- c.Run(ctx)
	}()

	select {
	case r := <-done:
		r.Duration = time.Since(start)
		if r.Name == "" {
			r.Name = c.Name
		}
		if r.Priority == 0 && c.Priority != 0 {
			r.Priority = c.Priority
		}
		return r
	case <-ctx.Done():
		return Result{
			Name:     c.Name,
			Priority: c.Priority,
			Status:   StatusUnhealthy,
			Message:  fmt.Sprintf("check %q timed out after %s", c.Name, timeout),
			Duration: time.Since(start),
		}
	}
}

// aggregate applies the worst-of rule: any critical unhealthy check makes
// the system unhealthy; any important unhealthy, or any degraded check at
// any priority, makes it degraded; otherwise healthy.
func aggregate(results []Result) Status {
	degraded := false
	for _, r := range results {
		if r.Priority == PriorityCritical && r.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if r.Priority == PriorityImportant && r.Status == StatusUnhealthy {
			degraded = true
		}
		if r.Status == StatusDegraded {
			degraded = true
		}
	}
	if degraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// Start begins the monitor loop in a background goroutine.
func (m *Monitor) Start(ctx context.Context) {
	go m.loop(ctx)
}

// Stop ends the monitor loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.tick(ctx)
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one pass of all checks unless a previous pass is still in
// flight, in which case it reuses the last snapshot and returns.
func (m *Monitor) tick(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		slog.Warn("health.tick_overlap", "interval", m.interval, "action", "reusing previous snapshot")
		return
	}
	m.running = true
	m.mu.Unlock()

	budget := time.Duration(float64(m.interval) * 0.9)
	tickCtx, cancel := context.WithTimeout(ctx, budget)
	snapshot := m.RunOnce(tickCtx)
	cancel()

	m.mu.Lock()
	m.last = snapshot
	m.hasFirst = true
	m.running = false
	m.mu.Unlock()
}

// Latest returns the most recent snapshot, running one synchronously on
// first call if the loop has not ticked yet.
func (m *Monitor) Latest(ctx context.Context) SystemHealth {
	m.mu.Lock()
	if m.hasFirst {
		snap := m.last
		m.mu.Unlock()
		return snap
	}
	m.mu.Unlock()
	return m.RunOnce(ctx)
}
