// Package observe provides the OpenTelemetry metrics recorded by the capture
// pipeline and a Prometheus exporter bridge for scraping them.
//
// Components receive a *Metrics; a nil *Metrics is valid and records nothing,
// which keeps unit tests free of meter setup. Tests that assert on metrics
// should use [NewMetrics] with a manual reader.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all hark metrics.
const meterName = "github.com/bosley/hark"

// Trigger sources.
const (
	SourceAmplitude = "amplitude"
	SourceExternal  = "external"
	SourceHotkey    = "hotkey"
)

// Recording stop causes.
const (
	CauseSilence = "silence"
	CauseLength  = "length"
	CauseClosed  = "closed"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
type Metrics struct {
	// STTDuration tracks recognizer latency per call.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks chat completion latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks synthesis latency per segment.
	TTSDuration metric.Float64Histogram

	// UtteranceDuration tracks the length of finalized recordings.
	UtteranceDuration metric.Float64Histogram

	// Utterances counts gate decisions. Attribute: outcome.
	Utterances metric.Int64Counter

	// Triggers counts raised triggers. Attribute: source.
	Triggers metric.Int64Counter

	// Recordings counts finalized recordings. Attribute: cause.
	Recordings metric.Int64Counter

	// STTErrors counts failed recognizer calls.
	STTErrors metric.Int64Counter
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("hark.stt.duration",
		metric.WithDescription("Latency of speech-to-text recognition."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("hark.llm.duration",
		metric.WithDescription("Latency of chat completion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("hark.tts.duration",
		metric.WithDescription("Latency of speech synthesis per segment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("hark.utterance.duration",
		metric.WithDescription("Length of finalized recordings."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Utterances, err = m.Int64Counter("hark.utterances",
		metric.WithDescription("Transcription gate decisions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Triggers, err = m.Int64Counter("hark.triggers",
		metric.WithDescription("Capture triggers by source."),
	); err != nil {
		return nil, err
	}
	if met.Recordings, err = m.Int64Counter("hark.recordings",
		metric.WithDescription("Finalized recordings by stop cause."),
	); err != nil {
		return nil, err
	}
	if met.STTErrors, err = m.Int64Counter("hark.stt.errors",
		metric.WithDescription("Failed speech-to-text calls."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordTrigger counts a trigger raised by source.
func (m *Metrics) RecordTrigger(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.Triggers.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordRecording counts a finalized recording and observes its length.
func (m *Metrics) RecordRecording(ctx context.Context, cause string, length time.Duration) {
	if m == nil {
		return
	}
	m.Recordings.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", cause)))
	m.UtteranceDuration.Record(ctx, length.Seconds())
}

// RecordOutcome counts a gate decision.
func (m *Metrics) RecordOutcome(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSTT observes one recognizer call. A non-nil err also counts an error.
func (m *Metrics) RecordSTT(ctx context.Context, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.STTDuration.Record(ctx, elapsed.Seconds())
	if err != nil {
		m.STTErrors.Add(ctx, 1)
	}
}

// RecordLLM observes one chat completion.
func (m *Metrics) RecordLLM(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LLMDuration.Record(ctx, elapsed.Seconds())
}

// RecordTTS observes one synthesized segment.
func (m *Metrics) RecordTTS(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TTSDuration.Record(ctx, elapsed.Seconds())
}
