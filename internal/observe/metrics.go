// Package observe provides application-wide observability primitives for
// saidwhen: OpenTelemetry metrics, distributed tracing, trace-aware
// structured logging, and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all saidwhen metrics.
const meterName = "github.com/MrWong99/saidwhen"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Ingestion ---

	// IngestVideos counts per-video ingestion outcomes. Use with attribute:
	//   attribute.String("status", "ok"|"no_captions"|"transport"|"error")
	IngestVideos metric.Int64Counter

	// IngestCues counts cues seen during ingestion. Use with attribute:
	//   attribute.String("outcome", "indexed"|"skipped")
	IngestCues metric.Int64Counter

	// IngestDuration tracks wall time of a whole channel ingestion.
	IngestDuration metric.Float64Histogram

	// --- Locate ---

	// LocateRequests counts phrase lookups. Use with attribute:
	//   attribute.String("outcome", ...)
	LocateRequests metric.Int64Counter

	// LocateDuration tracks phrase lookup latency.
	LocateDuration metric.Float64Histogram

	// --- Registry ---

	// ChannelsAdmitted counts channel-add attempts. Use with attribute:
	//   attribute.String("outcome", ...)
	ChannelsAdmitted metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// lookupBuckets defines histogram bucket boundaries (in seconds) for phrase
// lookups, which are dominated by a single corpus scan.
var lookupBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// ingestBuckets covers channel ingestions, which take seconds to minutes.
var ingestBuckets = []float64{
	1, 5, 10, 30, 60, 120, 300, 600, 1200,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.IngestVideos, err = m.Int64Counter("saidwhen.ingest.videos",
		metric.WithDescription("Videos processed during channel ingestion by status."),
	); err != nil {
		return nil, err
	}
	if met.IngestCues, err = m.Int64Counter("saidwhen.ingest.cues",
		metric.WithDescription("Caption cues indexed or skipped during ingestion."),
	); err != nil {
		return nil, err
	}
	if met.LocateRequests, err = m.Int64Counter("saidwhen.locate.requests",
		metric.WithDescription("Phrase lookups by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ChannelsAdmitted, err = m.Int64Counter("saidwhen.channels.admitted",
		metric.WithDescription("Channel-add attempts by outcome."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.IngestDuration, err = m.Float64Histogram("saidwhen.ingest.duration",
		metric.WithDescription("Wall time of a full channel ingestion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(ingestBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LocateDuration, err = m.Float64Histogram("saidwhen.locate.duration",
		metric.WithDescription("Latency of phrase lookups."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(lookupBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("saidwhen.http.request.duration",
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

// RecordVideo records one per-video ingestion outcome.
func (m *Metrics) RecordVideo(ctx context.Context, status string) {
	m.IngestVideos.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordCues records indexed and skipped cue counts for one video.
func (m *Metrics) RecordCues(ctx context.Context, indexed, skipped int) {
	if indexed > 0 {
		m.IngestCues.Add(ctx, int64(indexed), metric.WithAttributes(attribute.String("outcome", "indexed")))
	}
	if skipped > 0 {
		m.IngestCues.Add(ctx, int64(skipped), metric.WithAttributes(attribute.String("outcome", "skipped")))
	}
}

// RecordLocate records a phrase lookup with its outcome and latency.
func (m *Metrics) RecordLocate(ctx context.Context, outcome string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.LocateRequests.Add(ctx, 1, attrs)
	m.LocateDuration.Record(ctx, seconds, attrs)
}

// RecordChannelAdd records the outcome of a channel-add attempt.
func (m *Metrics) RecordChannelAdd(ctx context.Context, outcome string) {
	m.ChannelsAdmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
