package health

import (
	"context"
	"testing"
	"time"
)

func healthyCheck(name string, priority Priority) Check {
	return Check{
		Name:     name,
		Priority: priority,
		Timeout:  time.Second,
		Run:      func(ctx context.Context) Result { return Result{Status: StatusHealthy} },
	}
}

func unhealthyCheck(name string, priority Priority) Check {
	return Check{
		Name:     name,
		Priority: priority,
		Timeout:  time.Second,
		Run:      func(ctx context.Context) Result { return Result{Status: StatusUnhealthy, Message: "boom"} },
	}
}

func TestMonitor_AllHealthyAggregatesHealthy(t *testing.T) {
	m := NewMonitor([]Check{
		healthyCheck("a", PriorityCritical),
		healthyCheck("b", PriorityInformational),
	}, time.Second)

	snap := m.RunOnce(context.Background())
	if snap.Status != StatusHealthy {
		t.Errorf("expected healthy, got %v", snap.Status)
	}
}

func TestMonitor_CriticalUnhealthyDominates(t *testing.T) {
	m := NewMonitor([]Check{
		unhealthyCheck("critical", PriorityCritical),
		healthyCheck("other", PriorityInformational),
	}, time.Second)

	snap := m.RunOnce(context.Background())
	if snap.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %v", snap.Status)
	}
}

func TestMonitor_ImportantUnhealthyDegrades(t *testing.T) {
	m := NewMonitor([]Check{
		unhealthyCheck("important", PriorityImportant),
		healthyCheck("critical", PriorityCritical),
	}, time.Second)

	snap := m.RunOnce(context.Background())
	if snap.Status != StatusDegraded {
		t.Errorf("expected degraded, got %v", snap.Status)
	}
}

func TestMonitor_CheckTimeoutReportsUnhealthy(t *testing.T) {
	slow := Check{
		Name:     "slow",
		Priority: PriorityCritical,
		Timeout:  10 * time.Millisecond,
		Run: func(ctx context.Context) Result {
			<-ctx.Done()
			return Result{Status: StatusHealthy}
		},
	}
	m := NewMonitor([]Check{slow}, time.Second)
	snap := m.RunOnce(context.Background())
	if snap.Status != StatusUnhealthy {
		t.Fatalf("expected a timed-out critical check to report unhealthy, got %v", snap.Status)
	}
	if snap.Checks[0].Status != StatusUnhealthy {
		t.Errorf("expected the individual check result to be unhealthy, got %v", snap.Checks[0].Status)
	}
}

func TestMonitor_IntervalIsClampedToMinimum(t *testing.T) {
	m := NewMonitor(nil, time.Millisecond)
	if m.interval != minCheckInterval {
		t.Errorf("expected interval clamped to %v, got %v", minCheckInterval, m.interval)
	}
}

func TestMonitor_TickReusesSnapshotWhileRunning(t *testing.T) {
	release := make(chan struct{})
	blocking := Check{
		Name:     "blocking",
		Priority: PriorityInformational,
		Timeout:  time.Second,
		Run: func(ctx context.Context) Result {
			<-release
			return Result{Status: StatusHealthy}
		},
	}
	m := NewMonitor([]Check{blocking}, time.Second)

	done := make(chan struct{})
	go func() {
		m.tick(context.Background())
		close(done)
	}()

	// give the first tick time to mark itself running.
	time.Sleep(20 * time.Millisecond)
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		t.Fatal("expected the monitor to mark itself running during a slow check")
	}

	m.tick(context.Background()) // should be a no-op while the first tick runs
	close(release)
	<-done
}
