package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns Metrics backed by a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumWhere returns the value of the int64 sum data point whose attribute key
// equals value, or -1 when absent.
func sumWhere(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	for _, dp := range sum.DataPoints {
		if key == "" {
			return dp.Value
		}
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return -1
}

func TestLatencyHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FetchDuration.Record(ctx, 1.5)
	m.STTDuration.Record(ctx, 0.8)
	m.STTDuration.Record(ctx, 1.1)
	m.LLMDuration.Record(ctx, 2)
	m.StorageDuration.Record(ctx, 0.2)

	rm := collect(t, reader)
	tests := []struct {
		name string
		want uint64
	}{
		{"sttdata.fetch.duration", 1},
		{"sttdata.stt.duration", 2},
		{"sttdata.llm.duration", 1},
		{"sttdata.storage.duration", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			met := findMetric(rm, tt.name)
			if met == nil {
				t.Fatalf("metric %q not found", tt.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok || len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no histogram data", tt.name)
			}
			if got := hist.DataPoints[0].Count; got != tt.want {
				t.Errorf("count = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDatasetCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRecording(ctx, OutcomeEmitted)
	m.RecordRecording(ctx, OutcomeEmitted)
	m.RecordRecording(ctx, OutcomeRejected)
	m.RecordSegmentsEmitted(ctx, 7)
	m.RecordSegmentDropped(ctx, "too-short")
	m.RecordCorrection(ctx, "reference-free")
	m.RecordCorrection(ctx, "reference-guided")
	m.RecordCorrection(ctx, "reference-guided")
	m.RecordProviderRequest(ctx, "gemini", "llm", "ok")
	m.RecordProviderError(ctx, "hfendpoint", "stt")
	m.ActiveRecordings.Add(ctx, 2)
	m.ActiveRecordings.Add(ctx, -1)

	rm := collect(t, reader)
	tests := []struct {
		metric, key, value string
		want               int64
	}{
		{"sttdata.recordings", "outcome", OutcomeEmitted, 2},
		{"sttdata.recordings", "outcome", OutcomeRejected, 1},
		{"sttdata.segments.emitted", "", "", 7},
		{"sttdata.segments.dropped", "reason", "too-short", 1},
		{"sttdata.correction.mode", "mode", "reference-guided", 2},
		{"sttdata.correction.mode", "mode", "reference-free", 1},
		{"sttdata.provider.requests", "status", "ok", 1},
		{"sttdata.provider.errors", "provider", "hfendpoint", 1},
		{"sttdata.active_recordings", "", "", 1},
	}
	for _, tt := range tests {
		if got := sumWhere(t, rm, tt.metric, tt.key, tt.value); got != tt.want {
			t.Errorf("%s{%s=%s} = %d, want %d", tt.metric, tt.key, tt.value, got, tt.want)
		}
	}
}

func TestErrorRateHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordErrorRate(ctx, GranularityRecording, 0.5)
	m.RecordErrorRate(ctx, GranularitySegment, 0.1)
	m.RecordErrorRate(ctx, GranularitySegment, 0.6)

	met := findMetric(collect(t, reader), "sttdata.error_rate")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	counts := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("granularity"))
		counts[v.AsString()] = dp.Count
	}
	if counts[GranularityRecording] != 1 || counts[GranularitySegment] != 2 {
		t.Errorf("counts = %v", counts)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different pointers")
	}
}
