// Package observe provides application-wide observability primitives for the
// gateway: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all gateway metrics.
const meterName = "github.com/MrWong99/mcpgateway"

// Metrics holds all OpenTelemetry metric instruments for the gateway. All
// fields are safe for concurrent use — the underlying OTel types handle their
// own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// DiscoveryDuration tracks discover_tools request latency.
	DiscoveryDuration metric.Float64Histogram

	// GatingDuration tracks provision_tools request latency.
	GatingDuration metric.Float64Histogram

	// ToolExecutionDuration tracks execute_tool (proxied backend call) latency.
	ToolExecutionDuration metric.Float64Histogram

	// EmbeddingDuration tracks embedding-provider Embed/EmbedBatch latency.
	EmbeddingDuration metric.Float64Histogram

	// --- Counters ---

	// ToolCalls counts proxied tool invocations. Use with attributes:
	//   attribute.String("server", ...), attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// DiscoveryQueries counts discover_tools calls.
	DiscoveryQueries metric.Int64Counter

	// BackendReconnects counts backend reconnection attempts. Use with
	// attribute: attribute.String("server", ...)
	BackendReconnects metric.Int64Counter

	// --- Error counters ---

	// BackendErrors counts backend-surfaced errors by kind. Use with
	// attributes: attribute.String("server", ...), attribute.String("kind", ...)
	BackendErrors metric.Int64Counter

	// --- Gauges ---

	// ConnectedBackends tracks the number of currently connected backends.
	ConnectedBackends metric.Int64UpDownCounter

	// RegisteredTools tracks the number of tools currently in the registry.
	RegisteredTools metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) suited to
// in-process discovery/gating work and proxied tool calls.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DiscoveryDuration, err = m.Float64Histogram("mcpgateway.discovery.duration",
		metric.WithDescription("Latency of discover_tools requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GatingDuration, err = m.Float64Histogram("mcpgateway.gating.duration",
		metric.WithDescription("Latency of provision_tools requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("mcpgateway.tool_execution.duration",
		metric.WithDescription("Latency of proxied execute_tool calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbeddingDuration, err = m.Float64Histogram("mcpgateway.embedding.duration",
		metric.WithDescription("Latency of embedding provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ToolCalls, err = m.Int64Counter("mcpgateway.tool.calls",
		metric.WithDescription("Total proxied tool invocations by server, tool, and status."),
	); err != nil {
		return nil, err
	}
	if met.DiscoveryQueries, err = m.Int64Counter("mcpgateway.discovery.queries",
		metric.WithDescription("Total discover_tools queries."),
	); err != nil {
		return nil, err
	}
	if met.BackendReconnects, err = m.Int64Counter("mcpgateway.backend.reconnects",
		metric.WithDescription("Total backend reconnection attempts by server."),
	); err != nil {
		return nil, err
	}

	if met.BackendErrors, err = m.Int64Counter("mcpgateway.backend.errors",
		metric.WithDescription("Total backend errors by server and kind."),
	); err != nil {
		return nil, err
	}

	if met.ConnectedBackends, err = m.Int64UpDownCounter("mcpgateway.backends.connected",
		metric.WithDescription("Number of currently connected backends."),
	); err != nil {
		return nil, err
	}
	if met.RegisteredTools, err = m.Int64UpDownCounter("mcpgateway.tools.registered",
		metric.WithDescription("Number of tools currently in the registry."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("mcpgateway.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, server, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("server", server),
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordDiscoveryQuery is a convenience method that records a discover_tools
// query counter increment.
func (m *Metrics) RecordDiscoveryQuery(ctx context.Context) {
	m.DiscoveryQueries.Add(ctx, 1)
}

// RecordBackendReconnect is a convenience method that records a backend
// reconnect attempt.
func (m *Metrics) RecordBackendReconnect(ctx context.Context, server string) {
	m.BackendReconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("server", server)))
}

// RecordBackendError is a convenience method that records a backend error
// counter increment.
func (m *Metrics) RecordBackendError(ctx context.Context, server, kind string) {
	m.BackendErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("server", server),
			attribute.String("kind", kind),
		),
	)
}
