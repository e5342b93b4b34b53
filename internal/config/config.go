// Package config loads and layers scangate's runtime configuration: a YAML
// file overridden by environment variables, with optional hot-reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved runtime configuration for the gateway.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Security   SecurityConfig   `yaml:"security"`
	Breaker    BreakerConfig    `yaml:"circuit_breaker"`
	Health     HealthConfig     `yaml:"health"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tools      ToolsConfig      `yaml:"tools"`
	Log        LogConfig        `yaml:"log"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// ServerConfig controls transport binding and lifecycle.
type ServerConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	Transport          string        `yaml:"transport"` // "stdio" | "http"
	AuthToken          string        `yaml:"auth_token"`
	ShutdownGrace      time.Duration `yaml:"shutdown_grace_period"`
	MaxArgsLen         int           `yaml:"max_args_len"`
	MaxStdoutBytes     int           `yaml:"max_stdout_bytes"`
	MaxStderrBytes     int           `yaml:"max_stderr_bytes"`
	DefaultTimeoutSec  float64       `yaml:"default_timeout_sec"`
	DefaultConcurrency int           `yaml:"default_concurrency"`
	MaxMemoryMB        int           `yaml:"max_memory_mb"`
	MaxFileDescriptors int           `yaml:"max_file_descriptors"`
}

// SecurityConfig carries policy toggles shared by the grammar and policy layers.
type SecurityConfig struct {
	AllowIntrusive          bool    `yaml:"allow_intrusive"`
	AllowDefaultCredentials bool    `yaml:"allow_default_credentials"`
	MaxScanRate             int     `yaml:"max_scan_rate"`
	MasscanDefaultWait      float64 `yaml:"masscan_default_wait"`
}

// BreakerConfig configures every tool's circuit breaker.
type BreakerConfig struct {
	FailureThreshold  int           `yaml:"failure_threshold"`
	RecoveryTimeout   time.Duration `yaml:"recovery_timeout"`
	TimeoutMultiplier float64       `yaml:"timeout_multiplier"`
	MaxTimeout        time.Duration `yaml:"max_timeout"`
	SuccessThreshold  int           `yaml:"success_threshold"`
	MaxHalfOpenCalls  int           `yaml:"max_half_open_calls"`
	JitterFraction    float64       `yaml:"jitter_fraction"`
}

// HealthConfig configures the health monitor loop and thresholds.
type HealthConfig struct {
	CheckInterval   time.Duration `yaml:"check_interval"`
	Timeout         time.Duration `yaml:"timeout"`
	CPUThreshold    float64       `yaml:"cpu_threshold"`
	MemoryThreshold float64       `yaml:"memory_threshold"`
	DiskThreshold   float64       `yaml:"disk_threshold"`
	DependencyURL   string        `yaml:"dependency_mcp_url"` // optional upstream MCP endpoint to probe
}

// MetricsConfig controls the optional Prometheus bridge.
type MetricsConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
}

// ToolsConfig controls discovery/filtering of the tool registry.
type ToolsConfig struct {
	Namespace string   `yaml:"namespace"`
	Include   []string `yaml:"include"`
	Exclude   []string `yaml:"exclude"`
}

// LogConfig controls slog handler selection.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" | "json"
}

// TracingConfig controls the optional OTLP span exporter. When Endpoint
// is empty, the engine runs with a no-op tracer provider.
type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
}

// Default returns the baseline configuration applied before file/env layering.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "127.0.0.1",
			Port:               8089,
			Transport:          "stdio",
			ShutdownGrace:      30 * time.Second,
			MaxArgsLen:         2048,
			MaxStdoutBytes:     1 << 20,
			MaxStderrBytes:     256 << 10,
			DefaultTimeoutSec:  300,
			DefaultConcurrency: 2,
			MaxMemoryMB:        512,
			MaxFileDescriptors: 256,
		},
		Security: SecurityConfig{
			AllowIntrusive:          false,
			AllowDefaultCredentials: true,
			MaxScanRate:             1000,
			MasscanDefaultWait:      0,
		},
		Breaker: BreakerConfig{
			FailureThreshold:  5,
			RecoveryTimeout:   30 * time.Second,
			TimeoutMultiplier: 2,
			MaxTimeout:        10 * time.Minute,
			SuccessThreshold:  2,
			MaxHalfOpenCalls:  1,
			JitterFraction:    0.1,
		},
		Health: HealthConfig{
			CheckInterval:   30 * time.Second,
			Timeout:         5 * time.Second,
			CPUThreshold:    90,
			MemoryThreshold: 90,
			DiskThreshold:   90,
		},
		Metrics: MetricsConfig{PrometheusEnabled: false},
		Tools:   ToolsConfig{Namespace: "scangate.tools"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{ServiceName: "scangate"},
	}
}

// Load reads the YAML file at path (if it exists), applies it over the
// defaults, then layers environment variable overrides on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	str(&cfg.Server.Host, "MCP_SERVER_HOST")
	intVal(&cfg.Server.Port, "MCP_SERVER_PORT")
	str(&cfg.Server.Transport, "MCP_SERVER_TRANSPORT")
	str(&cfg.Server.AuthToken, "MCP_SERVER_AUTH_TOKEN")
	duration(&cfg.Server.ShutdownGrace, "MCP_SERVER_SHUTDOWN_GRACE_PERIOD")
	intVal(&cfg.Server.MaxArgsLen, "MCP_MAX_ARGS_LEN")
	intVal(&cfg.Server.MaxStdoutBytes, "MCP_MAX_STDOUT_BYTES")
	intVal(&cfg.Server.MaxStderrBytes, "MCP_MAX_STDERR_BYTES")
	floatVal(&cfg.Server.DefaultTimeoutSec, "MCP_DEFAULT_TIMEOUT_SEC")
	intVal(&cfg.Server.DefaultConcurrency, "MCP_DEFAULT_CONCURRENCY")
	intVal(&cfg.Server.MaxMemoryMB, "MCP_MAX_MEMORY_MB")
	intVal(&cfg.Server.MaxFileDescriptors, "MCP_MAX_FILE_DESCRIPTORS")

	boolVal(&cfg.Security.AllowIntrusive, "MCP_SECURITY_ALLOW_INTRUSIVE")
	intVal(&cfg.Security.MaxScanRate, "MCP_SECURITY_MAX_SCAN_RATE")

	intVal(&cfg.Breaker.FailureThreshold, "MCP_CIRCUIT_BREAKER_FAILURE_THRESHOLD")
	duration(&cfg.Breaker.RecoveryTimeout, "MCP_CIRCUIT_BREAKER_RECOVERY_TIMEOUT")

	duration(&cfg.Health.CheckInterval, "MCP_HEALTH_CHECK_INTERVAL")
	duration(&cfg.Health.Timeout, "MCP_HEALTH_TIMEOUT")
	floatVal(&cfg.Health.CPUThreshold, "MCP_HEALTH_CPU_THRESHOLD")
	floatVal(&cfg.Health.MemoryThreshold, "MCP_HEALTH_MEMORY_THRESHOLD")
	floatVal(&cfg.Health.DiskThreshold, "MCP_HEALTH_DISK_THRESHOLD")

	boolVal(&cfg.Metrics.PrometheusEnabled, "MCP_METRICS_PROMETHEUS_ENABLED")

	str(&cfg.Tools.Namespace, "TOOLS_NAMESPACE")
	list(&cfg.Tools.Include, "TOOL_INCLUDE")
	list(&cfg.Tools.Exclude, "TOOL_EXCLUDE")

	str(&cfg.Log.Level, "LOG_LEVEL")
	str(&cfg.Log.Format, "LOG_FORMAT")

	str(&cfg.Tracing.OTLPEndpoint, "MCP_TRACING_OTLP_ENDPOINT")
	boolVal(&cfg.Tracing.Insecure, "MCP_TRACING_INSECURE")
	str(&cfg.Tracing.ServiceName, "MCP_TRACING_SERVICE_NAME")
}

func str(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func list(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func intVal(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func floatVal(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func boolVal(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func duration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		} else if secs, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = time.Duration(secs * float64(time.Second))
		}
	}
}
