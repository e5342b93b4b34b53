package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/scangate/internal/breaker"
	"github.com/nextlevelbuilder/scangate/internal/config"
	"github.com/nextlevelbuilder/scangate/internal/dispatcher"
	"github.com/nextlevelbuilder/scangate/internal/engine"
	"github.com/nextlevelbuilder/scangate/internal/grammar"
	"github.com/nextlevelbuilder/scangate/internal/health"
	"github.com/nextlevelbuilder/scangate/internal/metrics"
	"github.com/nextlevelbuilder/scangate/internal/toolreg"
	"github.com/nextlevelbuilder/scangate/internal/tracing"
)

func serveCmd() *cobra.Command {
	var transportOverride string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway on stdio or HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(transportOverride)
		},
	}
	cmd.Flags().StringVar(&transportOverride, "transport", "", "override server.transport (stdio|http)")
	return cmd
}

func runServe(transportOverride string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	configureLogging(cfg.Log)

	transport := cfg.Server.Transport
	if transportOverride != "" {
		transport = transportOverride
	}

	breakerCfg := breaker.Config{
		FailureThreshold:  cfg.Breaker.FailureThreshold,
		InitialRecovery:   cfg.Breaker.RecoveryTimeout,
		TimeoutMultiplier: cfg.Breaker.TimeoutMultiplier,
		MaxRecovery:       cfg.Breaker.MaxTimeout,
		SuccessThreshold:  cfg.Breaker.SuccessThreshold,
		MaxHalfOpenCalls:  cfg.Breaker.MaxHalfOpenCalls,
		JitterFraction:    cfg.Breaker.JitterFraction,
	}
	tools := toolreg.New(toolreg.Filter{Include: cfg.Tools.Include, Exclude: cfg.Tools.Exclude}, breakerCfg)
	metricsReg := metrics.NewRegistry()

	var prom *metrics.PrometheusBridge
	if cfg.Metrics.PrometheusEnabled {
		prom = metrics.NewPrometheusBridge()
	} else {
		prom = metrics.DisabledPrometheusBridge()
	}

	grammar.Configure(grammarSettings(cfg))

	eng := engine.New(tools, metricsReg).
		WithLimits(cfg.Server.MaxArgsLen, cfg.Server.MaxStdoutBytes, cfg.Server.MaxStderrBytes).
		WithPrometheus(prom)

	monitor := health.NewMonitor(buildHealthChecks(cfg, tools), cfg.Health.CheckInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Install(ctx, cfg.Tracing)
	if err != nil {
		slog.Warn("scangate.tracing_unavailable", "error", err)
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutCtx); err != nil {
			slog.Warn("scangate.tracing_shutdown_failed", "error", err)
		}
	}()

	monitor.Start(ctx)
	defer monitor.Stop()

	watchConfig(cfgPath, cfg, tools)

	slog.Info("scangate.starting", "transport", transport, "tools", len(tools.List()))

	switch transport {
	case "http":
		return serveHTTP(ctx, cfg, eng, tools, monitor, metricsReg, prom)
	case "mcp":
		return dispatcher.NewMCPServer("scangate", version(), eng, tools, cfg.Security.AllowIntrusive).
			Serve(ctx, os.Stdin, os.Stdout)
	default:
		return dispatcher.NewStdioServer(eng, tools, cfg.Security.AllowIntrusive).Serve(ctx, os.Stdin, os.Stdout)
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, eng *engine.Engine, tools *toolreg.Registry, monitor *health.Monitor, metricsReg *metrics.Registry, prom *metrics.PrometheusBridge) error {
	limiter := dispatcher.NewRateLimiter(float64(cfg.Security.MaxScanRate)/60.0, cfg.Security.MaxScanRate)
	handler := dispatcher.NewHTTPServer(eng, tools, monitor, metricsReg, prom, limiter, cfg.Security.AllowIntrusive)
	handler.SetAuthToken(cfg.Server.AuthToken)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("scangate.http_listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()
		slog.Info("scangate.shutting_down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func buildHealthChecks(cfg *config.Config, tools *toolreg.Registry) []health.Check {
	thresholds := health.Thresholds{
		CPUPercent:    cfg.Health.CPUThreshold,
		MemoryPercent: cfg.Health.MemoryThreshold,
		DiskPercent:   cfg.Health.DiskThreshold,
	}
	timeout := cfg.Health.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return []health.Check{
		health.NewSystemResourceCheck(thresholds, timeout),
		health.NewProcessCheck(time.Now(), timeout),
		health.NewToolAvailabilityCheck(tools.EnabledCommands(), timeout),
		health.NewDependenciesCheck(cfg.Health.DependencyURL, timeout),
	}
}

// watchConfig hot-reloads the runtime-applicable config fields when the
// file changes: tool include/exclude filtering and the grammar's security
// policy knobs. Other fields (timeouts, breaker tuning, transport) take
// effect on the next restart.
func watchConfig(path string, current *config.Config, tools *toolreg.Registry) {
	watcher, err := config.NewWatcher(path, current, 0)
	if err != nil {
		slog.Debug("scangate.config_watch_unavailable", "error", err)
		return
	}
	watcher.OnChange(func(ch config.Change) {
		if ch.ToolFilterChanged {
			applyToolFilter(ch.Config, tools)
		}
		if ch.SecurityChanged {
			grammar.Configure(grammarSettings(ch.Config))
		}
	})
	if err := watcher.Start(); err != nil {
		slog.Warn("scangate.config_watch_start_failed", "error", err)
	}
}

// applyToolFilter re-applies include/exclude filtering to the existing
// registry as enable/disable toggles; tools absent from the compile-time
// catalog are never added by a reload.
func applyToolFilter(cfg *config.Config, tools *toolreg.Registry) {
	include := make(map[string]bool, len(cfg.Tools.Include))
	for _, name := range cfg.Tools.Include {
		include[name] = true
	}
	exclude := make(map[string]bool, len(cfg.Tools.Exclude))
	for _, name := range cfg.Tools.Exclude {
		exclude[name] = true
	}
	for _, d := range tools.List() {
		enabled := (len(include) == 0 || include[d.Name]) && !exclude[d.Name]
		tools.SetEnabled(d.Name, enabled)
	}
}

// grammarSettings maps the security config onto the grammar policy knobs.
func grammarSettings(cfg *config.Config) grammar.Settings {
	return grammar.Settings{
		AllowDefaultCredentials: cfg.Security.AllowDefaultCredentials,
		MasscanDefaultWait:      cfg.Security.MasscanDefaultWait,
		MaxScanRate:             cfg.Security.MaxScanRate,
	}
}

func configureLogging(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
