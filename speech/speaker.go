package speech

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bosley/hark/audio"
	"github.com/bosley/hark/config"
	"github.com/bosley/hark/observe"
	"github.com/bosley/hark/session"
)

// Speaker plays multi-segment replies. Later segments are synthesized while
// earlier ones play; audio output stays strictly in segment order.
type Speaker struct {
	synth   Synthesizer
	player  Player
	state   *session.State
	live    *config.Live
	metrics *observe.Metrics

	// lookAhead bounds concurrent synthesis calls.
	lookAhead int

	// playMu serializes the audio-write phase of every segment.
	playMu sync.Mutex
}

// NewSpeaker returns a speaker. metrics may be nil.
func NewSpeaker(synth Synthesizer, player Player, state *session.State, live *config.Live, metrics *observe.Metrics) *Speaker {
	return &Speaker{
		synth:     synth,
		player:    player,
		state:     state,
		live:      live,
		metrics:   metrics,
		lookAhead: 2,
	}
}

type synthResult struct {
	clip audio.Clip
	err  error
}

// Speak synthesizes and plays text. The speaking flag is held for the whole
// reply. A panic (barge-in) stops playback after the current frame and is
// cleared when Speak returns. The returned bool reports an interruption.
func (s *Speaker) Speak(ctx context.Context, text string) (bool, error) {
	segments := Split(text, s.live.Load().TTS.SegmentLength)
	if len(segments) == 0 {
		return false, nil
	}

	s.state.SetSpeaking(true)
	defer func() {
		s.state.SetSpeaking(false)
		s.state.SetPanic(false)
	}()

	results := make([]chan synthResult, len(segments))
	for i := range results {
		results[i] = make(chan synthResult, 1)
	}

	synthCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(synthCtx)
	g.SetLimit(s.lookAhead)
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, seg := range segments {
			g.Go(func() error {
				start := time.Now()
				clip, err := s.synth.Synthesize(gctx, seg)
				s.metrics.RecordTTS(gctx, time.Since(start))
				results[i] <- synthResult{clip: clip, err: err}
				return err
			})
		}
	}()
	defer func() {
		cancel()
		<-launched
		_ = g.Wait()
	}()

	for i := range segments {
		var r synthResult
		select {
		case r = <-results[i]:
		case <-ctx.Done():
			return true, ctx.Err()
		}
		if r.err != nil {
			return false, fmt.Errorf("failed to synthesize segment %d: %w", i, r.err)
		}
		if s.state.Panicked() {
			slog.Info("Speech interrupted before segment", "segment", i)
			return true, nil
		}

		interrupted, err := s.playSegment(ctx, r.clip)
		if err != nil {
			return false, fmt.Errorf("failed to play segment %d: %w", i, err)
		}
		if interrupted {
			slog.Info("Speech interrupted", "segment", i, "segments", len(segments))
			return true, nil
		}
	}
	return false, nil
}

func (s *Speaker) playSegment(ctx context.Context, clip audio.Clip) (bool, error) {
	s.playMu.Lock()
	defer s.playMu.Unlock()
	return s.player.Play(ctx, clip, s.state.Panicked)
}
