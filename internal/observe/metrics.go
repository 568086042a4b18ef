// Package observe provides application-wide observability primitives for
// triscribe: OpenTelemetry metrics, tracing, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all triscribe metrics.
const meterName = "github.com/triscribe/triscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// BatchDuration tracks batch transcription latency per provider. Use with
	// attributes: attribute.String("provider", ...), attribute.String("status", ...)
	BatchDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("mode", "batch"|"stream"),
	//   attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("mode", ...)
	ProviderErrors metric.Int64Counter

	// AudioFrames counts binary audio frames relayed to provider sessions.
	AudioFrames metric.Int64Counter

	// Transcripts counts transcript results delivered to clients. Use with
	// attributes: attribute.String("provider", ...), attribute.Bool("final", ...)
	Transcripts metric.Int64Counter

	// ActiveSessions tracks the number of live provider streaming sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// transcription latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.BatchDuration, err = m.Float64Histogram("triscribe.stt.batch.duration",
		metric.WithDescription("Latency of batch transcription per provider."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("triscribe.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("triscribe.provider.requests",
		metric.WithDescription("Total provider API requests by provider, mode, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("triscribe.provider.errors",
		metric.WithDescription("Total provider errors by provider and mode."),
	); err != nil {
		return nil, err
	}
	if met.AudioFrames, err = m.Int64Counter("triscribe.audio.frames",
		metric.WithDescription("Total audio frames relayed to provider sessions."),
	); err != nil {
		return nil, err
	}
	if met.Transcripts, err = m.Int64Counter("triscribe.transcripts",
		metric.WithDescription("Total transcript results delivered by provider and finality."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("triscribe.active_sessions",
		metric.WithDescription("Number of live provider streaming sessions."),
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

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, mode, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("mode", mode),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, mode string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("mode", mode),
		),
	)
}

// RecordTranscript records a delivered transcript result.
func (m *Metrics) RecordTranscript(ctx context.Context, provider string, final bool) {
	m.Transcripts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.Bool("final", final),
		),
	)
}

// RecordBatchDuration records one batch transcription's latency in seconds.
func (m *Metrics) RecordBatchDuration(ctx context.Context, provider, status string, seconds float64) {
	m.BatchDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}
