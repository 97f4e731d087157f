package observe

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
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

// counterValue sums the data points of an int64 sum whose key attribute
// equals value. An empty key sums every point.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	md := findMetric(rm, name)
	if md == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := md.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q: expected Sum[int64], got %T", name, md.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if key != "" {
			v, ok := dp.Attributes.Value(attribute.Key(key))
			if !ok || v.AsString() != value {
				continue
			}
		}
		total += dp.Value
	}
	return total
}

func TestCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTrigger(ctx, SourceHotkey)
	m.RecordTrigger(ctx, SourceHotkey)
	m.RecordTrigger(ctx, SourceAmplitude)
	m.RecordRecording(ctx, CauseSilence, 2*time.Second)
	m.RecordOutcome(ctx, "accepted")
	m.RecordSTT(ctx, 300*time.Millisecond, errors.New("boom"))
	m.RecordSTT(ctx, 200*time.Millisecond, nil)

	rm := collect(t, reader)

	tests := []struct {
		name, key, value string
		want             int64
	}{
		{"hark.triggers", "source", SourceHotkey, 2},
		{"hark.triggers", "source", SourceAmplitude, 1},
		{"hark.recordings", "cause", CauseSilence, 1},
		{"hark.utterances", "outcome", "accepted", 1},
		{"hark.stt.errors", "", "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.value, func(t *testing.T) {
			if got := counterValue(t, rm, tt.name, tt.key, tt.value); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSTT(ctx, 500*time.Millisecond, nil)
	m.RecordLLM(ctx, time.Second)
	m.RecordTTS(ctx, time.Second)
	m.RecordRecording(ctx, CauseLength, 30*time.Second)

	rm := collect(t, reader)
	for _, name := range []string{"hark.stt.duration", "hark.llm.duration", "hark.tts.duration", "hark.utterance.duration"} {
		t.Run(name, func(t *testing.T) {
			md := findMetric(rm, name)
			if md == nil {
				t.Fatalf("metric %q not found", name)
			}
			hist, ok := md.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("expected Histogram[float64], got %T", md.Data)
			}
			if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
				t.Errorf("expected one observation, got %+v", hist.DataPoints)
			}
		})
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordTrigger(ctx, SourceExternal)
	m.RecordRecording(ctx, CauseClosed, time.Second)
	m.RecordOutcome(ctx, "empty")
	m.RecordSTT(ctx, time.Second, errors.New("x"))
	m.RecordLLM(ctx, time.Second)
	m.RecordTTS(ctx, time.Second)
}

func TestProviderHandlerExposesMetrics(t *testing.T) {
	p, err := InitProvider("hark-test", "dev")
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p.MeterProvider)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordTrigger(context.Background(), SourceExternal)
	p.GaugeFunc("dispatch_pending", "Messages waiting for the chat back end.", func() float64 { return 3 })

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "hark_triggers") {
		t.Errorf("exposition does not contain hark_triggers:\n%s", body)
	}
	if !strings.Contains(string(body), "hark_dispatch_pending 3") {
		t.Errorf("exposition does not contain the pending gauge:\n%s", body)
	}
}
