// Package scribe runs speech recognition off the capture path: finalized
// utterances are queued and transcribed one at a time through a shared
// [Engine], and the results are passed to a [Handler].
package scribe

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bosley/hark/audio"
)

// ErrQueueFull is returned by Submit when the worker has fallen behind.
var ErrQueueFull = errors.New("transcription queue is full")

// Scribe manages the transcription queue.
type Scribe struct {
	engine   *Engine
	handler  Handler
	notifier Notifier

	queue chan audio.Utterance
}

// New creates a Scribe that buffers up to queueSize utterances. notifier
// may be nil.
func New(engine *Engine, handler Handler, notifier Notifier, queueSize int) *Scribe {
	if queueSize <= 0 {
		queueSize = 4
	}
	return &Scribe{
		engine:   engine,
		handler:  handler,
		notifier: notifier,
		queue:    make(chan audio.Utterance, queueSize),
	}
}

// Submit queues u without blocking.
func (s *Scribe) Submit(u audio.Utterance) error {
	select {
	case s.queue <- u:
		slog.Debug("Queued utterance for transcription",
			"utterance", u.ID,
			"durationSeconds", u.Duration.Seconds())
		return nil
	default:
		return ErrQueueFull
	}
}

// Run processes queued utterances until ctx is cancelled.
func (s *Scribe) Run(ctx context.Context) error {
	slog.Debug("Worker starting")
	defer slog.Debug("Worker shutting down")

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-s.queue:
			s.processJob(ctx, u)
		}
	}
}
