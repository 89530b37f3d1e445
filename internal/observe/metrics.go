// Package observe provides the observability primitives for sttdata:
// OpenTelemetry metrics, tracing, trace-aware logging and HTTP middleware
// for the admin endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// bridges them to Prometheus so the admin endpoint can serve /metrics. Tests
// should use [NewMetrics] with their own [metric.MeterProvider] instead of
// [DefaultMetrics] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all sttdata metrics.
const meterName = "github.com/MrWong99/sttdata"

// Recording outcomes used with [Metrics.RecordRecording].
const (
	OutcomeEmitted   = "emitted"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeSkipped   = "skipped"
)

// Error-rate granularities used with [Metrics.RecordErrorRate].
const (
	GranularityRecording = "recording"
	GranularitySegment   = "segment"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per collaborator ---

	// FetchDuration tracks audio and catalog download latency.
	FetchDuration metric.Float64Histogram

	// STTDuration tracks per-segment transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks per-segment correction latency.
	LLMDuration metric.Float64Histogram

	// StorageDuration tracks segment upload latency.
	StorageDuration metric.Float64Histogram

	// --- Provider counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Dataset counters ---

	// Recordings counts finished recordings by attribute "outcome".
	Recordings metric.Int64Counter

	// SegmentsEmitted counts records written to the sink.
	SegmentsEmitted metric.Int64Counter

	// SegmentsDropped counts voice activity discarded by the bounds engine,
	// by attribute "reason".
	SegmentsDropped metric.Int64Counter

	// CorrectionMode counts routed segments by attribute "mode".
	CorrectionMode metric.Int64Counter

	// ErrorRate records measured character error rates by attribute
	// "granularity" (recording or segment).
	ErrorRate metric.Float64Histogram

	// --- Gauges ---

	// ActiveRecordings is the number of recordings currently in flight.
	ActiveRecordings metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks admin endpoint request time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for hosted
// inference and upload calls.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

var rateBuckets = []float64{
	0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.8, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	latency := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}

	// Histograms.
	if met.FetchDuration, err = latency("sttdata.fetch.duration", "Latency of catalog and audio downloads."); err != nil {
		return nil, err
	}
	if met.STTDuration, err = latency("sttdata.stt.duration", "Latency of per-segment speech-to-text."); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = latency("sttdata.llm.duration", "Latency of per-segment transcript correction."); err != nil {
		return nil, err
	}
	if met.StorageDuration, err = latency("sttdata.storage.duration", "Latency of segment uploads."); err != nil {
		return nil, err
	}
	if met.ErrorRate, err = m.Float64Histogram("sttdata.error_rate",
		metric.WithDescription("Character error rate of machine transcripts against references."),
		metric.WithExplicitBucketBoundaries(rateBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("sttdata.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("sttdata.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.Recordings, err = m.Int64Counter("sttdata.recordings",
		metric.WithDescription("Finished recordings by outcome."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsEmitted, err = m.Int64Counter("sttdata.segments.emitted",
		metric.WithDescription("Segment records written to the dataset."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsDropped, err = m.Int64Counter("sttdata.segments.dropped",
		metric.WithDescription("Voice activity pieces discarded by the bounds engine, by reason."),
	); err != nil {
		return nil, err
	}
	if met.CorrectionMode, err = m.Int64Counter("sttdata.correction.mode",
		metric.WithDescription("Routed segments by correction mode."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRecordings, err = m.Int64UpDownCounter("sttdata.active_recordings",
		metric.WithDescription("Number of recordings currently being processed."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("sttdata.http.request.duration",
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
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
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

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordRecording counts one finished recording.
func (m *Metrics) RecordRecording(ctx context.Context, outcome string) {
	m.Recordings.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSegmentsEmitted adds n emitted segment records.
func (m *Metrics) RecordSegmentsEmitted(ctx context.Context, n int) {
	m.SegmentsEmitted.Add(ctx, int64(n))
}

// RecordSegmentDropped counts one discarded piece of voice activity.
func (m *Metrics) RecordSegmentDropped(ctx context.Context, reason string) {
	m.SegmentsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordErrorRate records a measured error rate.
func (m *Metrics) RecordErrorRate(ctx context.Context, granularity string, rate float64) {
	m.ErrorRate.Record(ctx, rate, metric.WithAttributes(attribute.String("granularity", granularity)))
}

// RecordCorrection counts one routed segment.
func (m *Metrics) RecordCorrection(ctx context.Context, mode string) {
	m.CorrectionMode.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}
