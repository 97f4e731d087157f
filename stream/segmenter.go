package stream

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bosley/hark/audio"
	"github.com/bosley/hark/config"
	"github.com/bosley/hark/session"
)

// Adapter is an incremental recognizer. Process returns only text that
// became final since the previous call; Finish returns whatever is still
// pending. Reset discards all state.
type Adapter interface {
	Insert(samples []float32)
	Process(ctx context.Context) (string, error)
	Finish(ctx context.Context) (string, error)
	Reset()
}

// Sink receives completed phrases and recognition failures.
type Sink interface {
	Phrase(ctx context.Context, text string)
	Fail(ctx context.Context, err error)
}

// Segmenter drains the queue into an Adapter and cuts phrases when the gap
// between arrivals exceeds the silence timeout. Step must be called from a
// single goroutine.
type Segmenter struct {
	queue   *Queue
	adapter Adapter
	state   *session.State
	live    *config.Live
	sink    Sink
	now     func() time.Time

	// lastArrival is zero when no phrase is being tracked.
	lastArrival time.Time
	complete    bool
	transcript  []string
}

func NewSegmenter(queue *Queue, adapter Adapter, state *session.State, live *config.Live, sink Sink) *Segmenter {
	return &Segmenter{
		queue:   queue,
		adapter: adapter,
		state:   state,
		live:    live,
		sink:    sink,
		now:     time.Now,
	}
}

// SetClock replaces the time source used for boundary detection.
func (s *Segmenter) SetClock(now func() time.Time) { s.now = now }

// Run steps the segmenter until ctx is cancelled, sleeping for the
// configured poll interval whenever there was nothing to process.
func (s *Segmenter) Run(ctx context.Context) error {
	slog.Info("Streaming segmenter started")
	for {
		if ctx.Err() != nil {
			slog.Info("Streaming segmenter stopped")
			return nil
		}
		if s.Step(ctx) {
			continue
		}
		select {
		case <-ctx.Done():
		case <-time.After(s.live.Load().Listen.PollInterval):
		}
	}
}

// Step performs one iteration and reports whether audio was processed.
func (s *Segmenter) Step(ctx context.Context) bool {
	listen := s.live.Load().Listen

	// Never listen to ourselves.
	if !listen.AudioTrigger || s.state.Busy() {
		if n := s.queue.Clear(); n > 0 {
			slog.Debug("Discarding queued audio while gated", "frames", n)
		}
		if s.state.ConsumeTrigger() {
			slog.Debug("Trigger dropped, capture gated")
		}
		s.discardPhrase()
		return false
	}

	now := s.now()
	frames := s.queue.Drain()
	if len(frames) == 0 {
		if !s.lastArrival.IsZero() && !s.complete && now.Sub(s.lastArrival) > listen.SilenceTimeout {
			s.finish(ctx)
		}
		return false
	}

	if !s.lastArrival.IsZero() && !s.complete && now.Sub(s.lastArrival) > listen.SilenceTimeout {
		s.finish(ctx)
	}
	if s.lastArrival.IsZero() || s.complete {
		// A phrase begins with this audio.
		s.state.ConsumeTrigger()
	}
	s.lastArrival = now
	s.complete = false

	s.adapter.Insert(coalesce(frames))
	started := s.now()
	text, err := s.adapter.Process(ctx)
	elapsed := s.now().Sub(started)
	if err != nil {
		slog.Error("Incremental transcription failed", "error", err)
		s.sink.Fail(ctx, err)
	} else if text = strings.TrimSpace(text); text != "" {
		s.transcript = append(s.transcript, text)
		slog.Debug("Partial transcript", "text", text)
	}

	// Slow recognition must not eat into the silence budget.
	if elapsed > listen.SilenceTimeout {
		s.lastArrival = s.lastArrival.Add(elapsed)
		slog.Debug("Compensating recognizer latency", "elapsed", elapsed)
	}
	return true
}

func (s *Segmenter) finish(ctx context.Context) {
	rest, err := s.adapter.Finish(ctx)
	if err != nil {
		slog.Error("Failed to flush incremental transcription", "error", err)
	} else if rest = strings.TrimSpace(rest); rest != "" {
		s.transcript = append(s.transcript, rest)
	}
	s.adapter.Reset()
	s.complete = true
	s.state.SetTrigger(false)

	text := strings.TrimSpace(strings.Join(s.transcript, " "))
	s.transcript = nil
	if text == "" {
		return
	}
	slog.Info("Phrase complete", "text", text)
	s.sink.Phrase(ctx, text)
}

func (s *Segmenter) discardPhrase() {
	if s.lastArrival.IsZero() && len(s.transcript) == 0 {
		return
	}
	s.adapter.Reset()
	s.transcript = nil
	s.lastArrival = time.Time{}
	s.complete = false
}

func coalesce(frames []audio.Frame) []float32 {
	var samples []int16
	for _, f := range frames {
		samples = append(samples, f.Samples()...)
	}
	return audio.MonoFloat32(samples, frames[0].Format.Channels)
}
