package metrics

import (
	"math"
	"testing"
	"time"
)

func TestRecord_ObserveTracksCounts(t *testing.T) {
	r := NewRecord("nmap")
	r.Observe(true, false, 10*time.Millisecond, "")
	r.Observe(false, false, 20*time.Millisecond, "execution_error")
	r.Observe(false, true, 5*time.Second, "timeout")

	s := r.Snapshot()
	if s.ExecutionCount != 3 {
		t.Fatalf("expected 3 executions, got %d", s.ExecutionCount)
	}
	if s.SuccessCount != 1 || s.FailureCount != 2 {
		t.Errorf("got success=%d failure=%d", s.SuccessCount, s.FailureCount)
	}
	if s.TimeoutCount != 1 {
		t.Errorf("expected 1 timeout, got %d", s.TimeoutCount)
	}
	if s.ErrorCount != 2 {
		t.Errorf("expected 2 recorded errors, got %d", s.ErrorCount)
	}
}

func TestRecord_MinMaxAndAvg(t *testing.T) {
	r := NewRecord("nmap")
	r.Observe(true, false, 10*time.Millisecond, "")
	r.Observe(true, false, 30*time.Millisecond, "")

	s := r.Snapshot()
	if s.MinDuration != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %v", s.MinDuration)
	}
	if s.MaxDuration != 30*time.Millisecond {
		t.Errorf("expected max 30ms, got %v", s.MaxDuration)
	}
	if s.AvgDuration != 20*time.Millisecond {
		t.Errorf("expected avg 20ms, got %v", s.AvgDuration)
	}
}

func TestRecord_MinDurationUnsetWhenEmpty(t *testing.T) {
	r := NewRecord("nmap")
	s := r.Snapshot()
	if s.MinDuration != 0 {
		t.Errorf("expected unset min duration to report zero, got %v", s.MinDuration)
	}
}

func TestRecord_SanitizesNonFiniteDuration(t *testing.T) {
	r := NewRecord("nmap")
	bad := time.Duration(math.NaN())
	r.Observe(true, false, bad, "")
	s := r.Snapshot()
	if s.MaxDuration != 0 {
		t.Errorf("expected a NaN duration to sanitize to zero, got %v", s.MaxDuration)
	}
}

func TestRecord_RecentRingIsBounded(t *testing.T) {
	r := NewRecord("nmap")
	for i := 0; i < recentRingCap+10; i++ {
		r.Observe(true, false, time.Millisecond, "")
	}
	if len(r.recent) != recentRingCap {
		t.Errorf("expected recent ring capped at %d, got %d", recentRingCap, len(r.recent))
	}
}

func TestRecord_Percentiles(t *testing.T) {
	r := NewRecord("nmap")
	for i := 1; i <= 100; i++ {
		r.Observe(true, false, time.Duration(i)*time.Millisecond, "")
	}
	s := r.Snapshot()
	if s.P50 <= 0 || s.P95 <= s.P50 || s.P99 <= s.P95 {
		t.Errorf("expected increasing percentiles, got p50=%v p95=%v p99=%v", s.P50, s.P95, s.P99)
	}
}

func TestRecord_SnapshotIsStableWithoutNewObservations(t *testing.T) {
	r := NewRecord("nmap")
	r.Observe(true, false, time.Millisecond, "")
	first := r.Snapshot()
	second := r.Snapshot()
	if first != second {
		t.Errorf("expected two consecutive snapshots with no execution in between to be equal")
	}
}
