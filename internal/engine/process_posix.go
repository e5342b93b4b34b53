//go:build linux

package engine

import (
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// rlimits bounds a spawned scanner process: cpu time, address space, open
// file descriptors, and core dump size.
type rlimits struct {
	cpuSeconds     uint64
	addressSpaceKB uint64
	maxOpenFiles   uint64
}

func defaultRlimits(timeout time.Duration) rlimits {
	return rlimits{
		cpuSeconds:     uint64(timeout.Seconds()) + 5,
		addressSpaceKB: 512 * 1024, // 512 MiB
		maxOpenFiles:   256,
	}
}

// ulimitPrefix applies the rlimits via the shell's ulimit builtin before
// exec'ing the real binary. The go runtime has no portable pre-exec hook
// for a forked child, so the limits are installed by a tiny shell wrapper
// rather than a syscall.SysProcAttr field — the same "sh -c" indirection
// already used to invoke tools elsewhere in this codebase.
func ulimitPrefix(limits rlimits) string {
	return fmt.Sprintf(
		"ulimit -t %d -v %d -n %d -c 0 2>/dev/null; exec \"$0\" \"$@\"",
		limits.cpuSeconds, limits.addressSpaceKB, limits.maxOpenFiles,
	)
}

// wrapWithRlimits rewrites argv (binary path followed by its arguments)
// into a "sh -c <ulimit-script> -- binary args..." invocation. Each
// argument reaches the target binary as an untouched argv element — sh
// never re-splits or re-interprets them, since they are passed as
// positional parameters rather than interpolated into the script text.
func wrapWithRlimits(argv []string, limits rlimits) []string {
	wrapped := append([]string{"sh", "-c", ulimitPrefix(limits)}, argv...)
	return wrapped
}

// configureProcessGroup puts the child in its own process group, so a
// timeout can SIGKILL the whole tree — a scanner that forks helpers
// (nmap's NSE engine, gobuster's DNS workers) leaves nothing behind.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGKILL to every process in pid's group.
func killProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
