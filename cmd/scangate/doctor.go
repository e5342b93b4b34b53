package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/scangate/internal/breaker"
	"github.com/nextlevelbuilder/scangate/internal/config"
	"github.com/nextlevelbuilder/scangate/internal/health"
	"github.com/nextlevelbuilder/scangate/internal/toolreg"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check scanner availability, configuration, and system health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("scangate doctor")
	fmt.Printf("  Version: %s\n", version())
	fmt.Printf("  OS:      %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:      %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:  %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (not found, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	tools := toolreg.New(toolreg.Filter{Include: cfg.Tools.Include, Exclude: cfg.Tools.Exclude}, breaker.Config{
		FailureThreshold:  cfg.Breaker.FailureThreshold,
		InitialRecovery:   cfg.Breaker.RecoveryTimeout,
		TimeoutMultiplier: cfg.Breaker.TimeoutMultiplier,
		MaxRecovery:       cfg.Breaker.MaxTimeout,
		SuccessThreshold:  cfg.Breaker.SuccessThreshold,
		MaxHalfOpenCalls:  cfg.Breaker.MaxHalfOpenCalls,
		JitterFraction:    cfg.Breaker.JitterFraction,
	})

	fmt.Println()
	fmt.Println("  Scanner binaries:")
	for _, d := range tools.List() {
		checkBinary(d.Name, d.Command)
	}

	fmt.Println()
	fmt.Println("  Security policy:")
	fmt.Printf("    %-24s %v\n", "allow_intrusive:", cfg.Security.AllowIntrusive)
	fmt.Printf("    %-24s %v\n", "allow_default_credentials:", cfg.Security.AllowDefaultCredentials)
	fmt.Printf("    %-24s %d/min\n", "max_scan_rate:", cfg.Security.MaxScanRate)

	fmt.Println()
	fmt.Println("  Health:")
	monitor := health.NewMonitor(buildHealthChecks(cfg, tools), cfg.Health.CheckInterval)
	snap := monitor.RunOnce(context.Background())
	fmt.Printf("    overall: %s\n", snap.Status)
	for _, r := range snap.Checks {
		fmt.Printf("    %-20s %-10s %s\n", r.Name, r.Status, r.Message)
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkBinary(toolName, command string) {
	path, err := exec.LookPath(command)
	if err != nil {
		fmt.Printf("    %-12s NOT FOUND (%s)\n", toolName+":", command)
	} else {
		fmt.Printf("    %-12s %s\n", toolName+":", path)
	}
}
