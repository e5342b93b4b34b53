package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusBridge mirrors Record observations into the three families the
// optional Prometheus integration exposes. A disabled bridge's methods are
// no-ops, so call sites never need to branch on whether metrics export is
// configured.
type PrometheusBridge struct {
	enabled  bool
	registry *prometheus.Registry

	executionTotal *prometheus.CounterVec
	executionSecs  *prometheus.HistogramVec
	active         *prometheus.GaugeVec
}

// NewPrometheusBridge constructs a fresh registry, registers the metric
// families against it, and returns an enabled bridge.
func NewPrometheusBridge() *PrometheusBridge {
	registry := prometheus.NewRegistry()
	b := &PrometheusBridge{
		enabled:  true,
		registry: registry,
		executionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcp_tool_execution_total",
			Help: "Total tool executions by tool, status, and error type.",
		}, []string{"tool", "status", "error_type"}),
		executionSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mcp_tool_execution_seconds",
			Help:    "Tool execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mcp_tool_active",
			Help: "Number of in-flight executions per tool.",
		}, []string{"tool"}),
	}

	registry.MustRegister(b.executionTotal, b.executionSecs, b.active)
	return b
}

// Enabled reports whether this bridge is actively exporting metrics.
func (b *PrometheusBridge) Enabled() bool {
	return b != nil && b.enabled
}

// Handler returns the Prometheus exposition HTTP handler for this bridge's
// registry, for mounting at /metrics.
func (b *PrometheusBridge) Handler() http.Handler {
	return promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{})
}

// DisabledPrometheusBridge returns a bridge whose methods silently do
// nothing, used when config disables Prometheus export.
func DisabledPrometheusBridge() *PrometheusBridge {
	return &PrometheusBridge{enabled: false}
}

// ObserveExecution records one completed execution's outcome.
func (b *PrometheusBridge) ObserveExecution(tool, status, errorType string, seconds float64) {
	if b == nil || !b.enabled {
		return
	}
	b.executionTotal.WithLabelValues(tool, status, errorType).Inc()
	b.executionSecs.WithLabelValues(tool).Observe(seconds)
}

// SetActive reports the current in-flight execution count for a tool.
func (b *PrometheusBridge) SetActive(tool string, count float64) {
	if b == nil || !b.enabled {
		return
	}
	b.active.WithLabelValues(tool).Set(count)
}
