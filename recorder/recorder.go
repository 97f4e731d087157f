// Package recorder implements batch capture: whole utterances are buffered
// between a trigger and a silence or length stop, then handed off as one
// WAV container.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bosley/hark/audio"
	"github.com/bosley/hark/config"
	"github.com/bosley/hark/observe"
	"github.com/bosley/hark/session"
	"github.com/bosley/hark/trigger"
)

// Sink accepts finalized utterances. Submit must not block on transcription.
type Sink interface {
	Submit(u audio.Utterance) error
}

// Feedback receives capture status changes. Implementations must return
// promptly; cues are played asynchronously.
type Feedback interface {
	ListeningStarted()
	ListeningStopped(cause string)
}

// FailureHandler is told about utterances the sink refused, so the
// transport still gets an acknowledgement for them.
type FailureHandler interface {
	Fail(ctx context.Context, err error)
}

// Config wires a Recorder to the rest of the pipeline.
type Config struct {
	State    *session.State
	Live     *config.Live
	Arbiter  *trigger.Arbiter
	Sink     Sink
	Feedback Feedback
	Failures FailureHandler
	Metrics  *observe.Metrics

	// Format and FrameSize describe the frames the source delivers.
	Format    audio.Format
	FrameSize int
}

// Recorder is the Idle/Recording state machine. Process must be called
// from a single goroutine.
type Recorder struct {
	cfg     Config
	now     func() time.Time
	preRoll *audio.PreRoll

	isRecording bool
	frames      []audio.Frame
	started     time.Time
	id          uuid.UUID
	logCounter  int
}

// New returns an idle recorder.
func New(cfg Config) *Recorder {
	return &Recorder{
		cfg:     cfg,
		now:     time.Now,
		preRoll: audio.NewPreRoll(cfg.Live.Load().Listen.PreRollFrames),
	}
}

// SetClock replaces the time source used for the silence timer.
func (r *Recorder) SetClock(now func() time.Time) { r.now = now }

// Recording reports whether an utterance is being accumulated.
func (r *Recorder) Recording() bool { return r.isRecording }

// Run reads frames from src until ctx is cancelled or the stream fails.
// The source is closed on return. Cancellation returns nil; a read failure
// returns a wrapped error and discards any partial recording.
func (r *Recorder) Run(ctx context.Context, src audio.Source) error {
	stop := context.AfterFunc(ctx, func() { src.Close() })
	defer stop()
	defer src.Close()

	slog.Info("Batch recorder started",
		"format", r.cfg.Format.String(),
		"frameSize", r.cfg.FrameSize)

	for {
		frame, err := src.ReadFrame()
		if err != nil {
			r.abort()
			if ctx.Err() != nil && errors.Is(err, audio.ErrStreamClosed) {
				slog.Info("Batch recorder stopped")
				return nil
			}
			return fmt.Errorf("audio stream fault: %w", err)
		}
		r.Process(frame)
	}
}

// Process advances the state machine by one frame.
func (r *Recorder) Process(frame audio.Frame) {
	now := r.now()
	live := r.cfg.Live.Load().Listen
	level := frame.Level()

	r.logCounter++
	if r.logCounter%50 == 0 {
		slog.Debug("Audio frame",
			"level", level,
			"threshold", live.RecordingThreshold,
			"recording", r.isRecording)
	}

	if !r.isRecording {
		r.cfg.Arbiter.Amplitude(level)
		if r.cfg.State.ConsumeTrigger() {
			if r.cfg.State.CaptureGated() {
				slog.Debug("Trigger dropped, capture gated",
					"generating", r.cfg.State.Generating(),
					"speaking", r.cfg.State.Speaking())
			} else {
				r.start(frame, now, live.SilenceTimeout)
			}
		}
		r.preRoll.Push(frame)
		return
	}

	r.frames = append(r.frames, frame)
	r.preRoll.Push(frame)
	if level >= live.RecordingThreshold {
		r.cfg.State.ArmSilenceTimer(now.Add(live.SilenceTimeout))
	}

	switch {
	// Inclusive so a recording closes on the frame that reaches the deadline.
	case !now.Before(r.cfg.State.SilenceDeadline()):
		r.finalize(observe.CauseSilence)
	case r.accumulated() >= r.maxSamples(live.MaxRecordingTime):
		r.finalize(observe.CauseLength)
	}
}

func (r *Recorder) start(frame audio.Frame, now time.Time, silence time.Duration) {
	r.isRecording = true
	r.cfg.State.SetRecording(true)
	r.started = now
	r.id = uuid.New()
	r.frames = r.frames[:0]
	if prev, ok := r.preRoll.Last(); ok {
		r.frames = append(r.frames, prev)
	}
	r.frames = append(r.frames, frame)
	r.cfg.State.ArmSilenceTimer(now.Add(silence))

	slog.Info("Speech detected, starting recording",
		"utterance", r.id,
		"level", frame.Level(),
		"preRoll", len(r.frames)-1)
	if r.cfg.Feedback != nil {
		r.cfg.Feedback.ListeningStarted()
	}
}

// accumulated counts samples per channel, the unit max_recording_time is
// measured in.
func (r *Recorder) accumulated() int {
	return len(r.frames) * r.cfg.FrameSize
}

func (r *Recorder) maxSamples(limit time.Duration) int {
	return int(limit.Seconds() * float64(r.cfg.Format.SampleRate))
}

func (r *Recorder) finalize(cause string) {
	r.isRecording = false
	r.cfg.State.SetRecording(false)
	r.cfg.State.SetTrigger(false)
	r.cfg.State.ClearSilenceTimer()

	frames := r.frames
	r.frames = nil

	var length time.Duration
	for _, f := range frames {
		length += f.Duration()
	}

	wav, err := audio.EncodeWAVBytes(r.cfg.Format, frames)
	r.cfg.State.SetPanic(false)
	if err != nil {
		slog.Error("Failed to encode utterance", "utterance", r.id, "error", err)
		if r.cfg.Failures != nil {
			r.cfg.Failures.Fail(context.Background(), fmt.Errorf("failed to encode utterance %s: %w", r.id, err))
		}
	} else {
		u := audio.Utterance{
			ID:       r.id,
			Started:  r.started,
			Format:   r.cfg.Format,
			Frames:   len(frames),
			Duration: length,
			Cause:    cause,
			WAV:      wav,
		}
		if err := r.cfg.Sink.Submit(u); err != nil {
			slog.Error("Failed to hand off utterance", "utterance", r.id, "error", err)
			if r.cfg.Failures != nil {
				r.cfg.Failures.Fail(context.Background(), fmt.Errorf("utterance %s dropped: %w", r.id, err))
			}
		}
	}

	slog.Info("Recording finished",
		"utterance", r.id,
		"cause", cause,
		"frames", len(frames),
		"durationSeconds", length.Seconds())
	r.cfg.Metrics.RecordRecording(context.Background(), cause, length)
	if r.cfg.Feedback != nil {
		r.cfg.Feedback.ListeningStopped(cause)
	}
}

// abort drops a recording interrupted by a stream fault or shutdown.
func (r *Recorder) abort() {
	if !r.isRecording {
		return
	}
	slog.Warn("Discarding partial recording", "utterance", r.id, "frames", len(r.frames))
	r.isRecording = false
	r.frames = nil
	r.cfg.State.SetRecording(false)
	r.cfg.State.SetTrigger(false)
	r.cfg.State.ClearSilenceTimer()
	r.cfg.Metrics.RecordRecording(context.Background(), observe.CauseClosed, 0)
}
