package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bosley/hark/audio"
	"github.com/bosley/hark/config"
)

// Producer reads frames from a source and queues the ones that belong to
// speech: everything from the frame before the level first crosses the
// threshold until the level has stayed below it for the hangover period.
type Producer struct {
	queue *Queue
	live  *config.Live
	now   func() time.Time

	isTransmitting bool
	lastNoiseTime  time.Time
	prev           audio.Frame
	havePrev       bool
	totalFrames    int
}

func NewProducer(queue *Queue, live *config.Live) *Producer {
	return &Producer{queue: queue, live: live, now: time.Now}
}

// SetClock replaces the time source used for the hangover.
func (p *Producer) SetClock(now func() time.Time) { p.now = now }

// Run reads from src until ctx is cancelled or the stream fails. The
// source is closed on return.
func (p *Producer) Run(ctx context.Context, src audio.Source) error {
	stop := context.AfterFunc(ctx, func() { src.Close() })
	defer stop()
	defer src.Close()

	for {
		frame, err := src.ReadFrame()
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, audio.ErrStreamClosed) {
				return nil
			}
			return fmt.Errorf("audio stream fault: %w", err)
		}
		p.Process(frame)
	}
}

// Process queues frame if it is part of speech.
func (p *Producer) Process(frame audio.Frame) {
	now := p.now()
	listen := p.live.Load().Listen
	level := frame.Level()

	switch {
	case level >= listen.RecordingThreshold:
		p.lastNoiseTime = now
		if !p.isTransmitting {
			p.isTransmitting = true
			p.totalFrames = 0
			slog.Debug("Speech detected, queueing audio", "level", level)
			if p.havePrev {
				p.queue.Push(p.prev)
				p.totalFrames++
			}
		}
		p.queue.Push(frame)
		p.totalFrames++

	case p.isTransmitting:
		// Continue through short pauses.
		p.queue.Push(frame)
		p.totalFrames++
		if now.Sub(p.lastNoiseTime) > listen.StreamHangover {
			p.isTransmitting = false
			slog.Debug("Extended silence detected, pausing queue", "frames", p.totalFrames)
		}
	}

	p.prev = frame
	p.havePrev = true
}
