//go:build !linux

package engine

import (
	"os/exec"
	"time"
)

type rlimits struct{}

func defaultRlimits(timeout time.Duration) rlimits { return rlimits{} }

// wrapWithRlimits is a no-op outside Linux: there is no portable shell
// ulimit equivalent worth relying on, so the scan still runs, just
// without a kernel-enforced resource ceiling.
func wrapWithRlimits(argv []string, limits rlimits) []string { return argv }

func configureProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(pid int) error { return nil }
