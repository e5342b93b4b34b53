//go:build linux

package engine

import (
	"strings"
	"testing"
	"time"
)

func TestWrapWithRlimits_PreservesBinaryAndArgsAsPositionalParams(t *testing.T) {
	limits := defaultRlimits(30 * time.Second)
	argv := []string{"/usr/bin/nmap", "-sV", "192.168.1.1"}
	wrapped := wrapWithRlimits(argv, limits)

	if wrapped[0] != "sh" || wrapped[1] != "-c" {
		t.Fatalf("expected a sh -c wrapper, got %v", wrapped[:2])
	}
	if !strings.Contains(wrapped[2], "ulimit") {
		t.Errorf("expected the script to invoke ulimit, got %q", wrapped[2])
	}
	rest := wrapped[3:]
	for i, want := range argv {
		if rest[i] != want {
			t.Errorf("expected positional arg %d to be %q, got %q", i, want, rest[i])
		}
	}
}

func TestDefaultRlimits_CPUSecondsExceedsTimeout(t *testing.T) {
	limits := defaultRlimits(10 * time.Second)
	if limits.cpuSeconds <= 10 {
		t.Errorf("expected cpu rlimit margin above the timeout, got %d", limits.cpuSeconds)
	}
}
