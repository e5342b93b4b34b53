// Package tracing sets up the process-global OpenTelemetry tracer
// provider used by the execution engine. When no OTLP endpoint is
// configured, it installs the SDK's no-op provider so every span.Start
// call in the engine remains cheap and side-effect free.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/nextlevelbuilder/scangate/internal/config"
)

// Shutdown flushes and stops the installed tracer provider, if one was
// configured. Safe to call with a nil provider.
type Shutdown func(ctx context.Context) error

var noopShutdown Shutdown = func(context.Context) error { return nil }

// Install configures the global OTel tracer provider from cfg and
// returns a Shutdown to call during graceful server shutdown. When
// cfg.OTLPEndpoint is empty, tracing is left at the SDK default (no-op)
// and Install returns a no-op Shutdown.
func Install(ctx context.Context, cfg config.TracingConfig) (Shutdown, error) {
	if cfg.OTLPEndpoint == "" {
		return noopShutdown, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "scangate"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("0.1.0"),
		),
	)
	if err != nil {
		return noopShutdown, fmt.Errorf("tracing: build resource: %w", err)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return noopShutdown, fmt.Errorf("tracing: build otlp exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(100),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	slog.Info("tracing: otlp exporter installed", "endpoint", cfg.OTLPEndpoint, "service", serviceName)

	return provider.Shutdown, nil
}
