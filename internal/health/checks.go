package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	gops "github.com/mitchellh/go-ps"
	gocpu "github.com/shirou/gopsutil/v3/cpu"
	godisk "github.com/shirou/gopsutil/v3/disk"
	gomem "github.com/shirou/gopsutil/v3/mem"
	goprocess "github.com/shirou/gopsutil/v3/process"
)

// Thresholds configures the SystemResource check's percentage ceilings.
type Thresholds struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

// NewSystemResourceCheck probes CPU, memory, and disk utilization via
// gopsutil; if the probe itself errors (the "system-probe library
// unavailable" case), the check degrades rather than failing outright.
func NewSystemResourceCheck(thresholds Thresholds, timeout time.Duration) Check {
	return Check{
		Name:     "SystemResource",
		Priority: PriorityCritical,
		Timeout:  timeout,
		Run: func(ctx context.Context) Result {
			cpuPct, cpuErr := gocpu.PercentWithContext(ctx, 200*time.Millisecond, false)
			vm, memErr := gomem.VirtualMemoryWithContext(ctx)
			du, diskErr := godisk.UsageWithContext(ctx, "/")

			if cpuErr != nil || memErr != nil || diskErr != nil {
				return Result{
					Status:  StatusDegraded,
					Message: "system resource probe unavailable: " + firstErr(cpuErr, memErr, diskErr).Error(),
				}
			}

			cpu := 0.0
			if len(cpuPct) > 0 {
				cpu = cpuPct[0]
			}

			over := []string{}
			if cpu > thresholds.CPUPercent {
				over = append(over, fmt.Sprintf("cpu %.1f%% > %.1f%%", cpu, thresholds.CPUPercent))
			}
			if vm.UsedPercent > thresholds.MemoryPercent {
				over = append(over, fmt.Sprintf("memory %.1f%% > %.1f%%", vm.UsedPercent, thresholds.MemoryPercent))
			}
			if du.UsedPercent > thresholds.DiskPercent {
				over = append(over, fmt.Sprintf("disk %.1f%% > %.1f%%", du.UsedPercent, thresholds.DiskPercent))
			}

			if len(over) > 0 {
				return Result{Status: StatusDegraded, Message: fmt.Sprintf("thresholds exceeded: %v", over)}
			}
			return Result{Status: StatusHealthy, Message: fmt.Sprintf("cpu=%.1f%% mem=%.1f%% disk=%.1f%%", cpu, vm.UsedPercent, du.UsedPercent)}
		},
	}
}

// NewProcessCheck reports this process's own liveness, age, RSS, and CPU
// percentage, using mitchellh/go-ps for the liveness lookup and gopsutil
// for the resource figures.
func NewProcessCheck(startedAt time.Time, timeout time.Duration) Check {
	pid := os.Getpid()
	return Check{
		Name:     "Process",
		Priority: PriorityImportant,
		Timeout:  timeout,
		Run: func(ctx context.Context) Result {
			procs, err := gops.Processes()
			if err != nil {
				return Result{Status: StatusDegraded, Message: "process table unavailable: " + err.Error()}
			}
			alive := false
			for _, p := range procs {
				if p.Pid() == pid {
					alive = true
					break
				}
			}
			if !alive {
				return Result{Status: StatusUnhealthy, Message: "own pid not found in process table"}
			}

			gp, err := goprocess.NewProcessWithContext(ctx, int32(pid))
			if err != nil {
				return Result{Status: StatusDegraded, Message: "process resource probe unavailable: " + err.Error()}
			}
			rssMB := 0.0
			if mi, err := gp.MemoryInfoWithContext(ctx); err == nil && mi != nil {
				rssMB = float64(mi.RSS) / (1024 * 1024)
			}
			cpuPct, _ := gp.CPUPercentWithContext(ctx)

			age := time.Since(startedAt)
			return Result{
				Status:  StatusHealthy,
				Message: fmt.Sprintf("age=%s rss=%.1fMB cpu=%.1f%%", age.Round(time.Second), rssMB, cpuPct),
			}
		},
	}
}

// NewToolAvailabilityCheck verifies every enabled tool's command resolves
// on PATH, the same resolution cmd/doctor.go's checkBinary performs.
func NewToolAvailabilityCheck(enabledCommands map[string]string, timeout time.Duration) Check {
	return Check{
		Name:     "ToolAvailability",
		Priority: PriorityInformational,
		Timeout:  timeout,
		Run: func(ctx context.Context) Result {
			var missing []string
			for tool, command := range enabledCommands {
				if _, err := exec.LookPath(command); err != nil {
					missing = append(missing, tool)
				}
			}
			if len(missing) > 0 {
				return Result{Status: StatusDegraded, Message: fmt.Sprintf("binaries not on PATH: %v", missing)}
			}
			return Result{Status: StatusHealthy, Message: fmt.Sprintf("%d tool binaries resolved", len(enabledCommands))}
		},
	}
}

// NewDependenciesCheck dials a configured upstream MCP endpoint to confirm
// it is reachable; an empty endpoint skips the probe as healthy (no
// dependency configured).
func NewDependenciesCheck(endpoint string, timeout time.Duration) Check {
	return Check{
		Name:     "Dependencies",
		Priority: PriorityInformational,
		Timeout:  timeout,
		Run: func(ctx context.Context) Result {
			if endpoint == "" {
				return Result{Status: StatusHealthy, Message: "no upstream MCP dependency configured"}
			}
			c, err := mcpclient.NewSSEMCPClient(endpoint)
			if err != nil {
				return Result{Status: StatusUnhealthy, Message: "failed to construct MCP client: " + err.Error()}
			}
			defer c.Close()

			if err := c.Start(ctx); err != nil {
				return Result{Status: StatusUnhealthy, Message: "upstream MCP endpoint unreachable: " + err.Error()}
			}
			if err := c.Ping(ctx); err != nil && !isMethodNotFound(err) {
				return Result{Status: StatusUnhealthy, Message: "upstream MCP endpoint did not respond to ping: " + err.Error()}
			}
			return Result{Status: StatusHealthy, Message: "upstream MCP endpoint reachable"}
		},
	}
}

// isMethodNotFound treats a server that doesn't implement ping as reachable
// rather than unhealthy, mirroring the MCP client's documented leniency
// toward servers with a partial method set.
func isMethodNotFound(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "method not found")
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return fmt.Errorf("unknown probe failure")
}
