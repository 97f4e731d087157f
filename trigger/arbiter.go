// Package trigger merges the amplitude, external and hotkey trigger sources
// into the shared trigger flag.
package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bosley/hark/config"
	"github.com/bosley/hark/observe"
	"github.com/bosley/hark/session"
)

// Arbiter raises the session trigger on behalf of every trigger source.
// Raising is not starting: the recorder consumes the flag and decides
// whether capture may begin.
type Arbiter struct {
	state   *session.State
	live    *config.Live
	metrics *observe.Metrics
	now     func() time.Time

	mu sync.Mutex
	// pressDeadline is non-zero while a first hotkey press waits for its pair.
	pressDeadline time.Time
}

// NewArbiter returns an arbiter writing to state. metrics may be nil.
func NewArbiter(state *session.State, live *config.Live, metrics *observe.Metrics) *Arbiter {
	return &Arbiter{
		state:   state,
		live:    live,
		metrics: metrics,
		now:     time.Now,
	}
}

// SetClock replaces the time source used for the hotkey window.
func (a *Arbiter) SetClock(now func() time.Time) { a.now = now }

// Amplitude raises the trigger when audio triggering is enabled, nothing is
// being recorded or spoken, and level exceeds the recording threshold.
func (a *Arbiter) Amplitude(level float64) bool {
	cfg := a.live.Load()
	if !cfg.Listen.AudioTrigger || a.state.Recording() || a.state.Speaking() {
		return false
	}
	if level <= cfg.Listen.RecordingThreshold {
		return false
	}
	a.raise(observe.SourceAmplitude)
	slog.Debug("Amplitude trigger", "level", level, "threshold", cfg.Listen.RecordingThreshold)
	return true
}

// External applies a boolean received from the transport. A true value
// raises the trigger regardless of the audio trigger setting.
func (a *Arbiter) External(on bool) bool {
	if !on {
		return false
	}
	a.raise(observe.SourceExternal)
	slog.Info("External trigger received")
	return true
}

// KeyPressed registers one hotkey press. The second press inside the
// configured window interrupts speech if the assistant is talking and
// otherwise raises the trigger when nothing is being recorded.
func (a *Arbiter) KeyPressed() {
	now := a.now()
	window := a.live.Load().Trigger.KeyPressWindow

	a.mu.Lock()
	second := !a.pressDeadline.IsZero() && now.Before(a.pressDeadline)
	if second {
		a.pressDeadline = time.Time{}
	} else {
		a.pressDeadline = now.Add(window)
	}
	a.mu.Unlock()

	if !second {
		return
	}
	switch {
	case a.state.Speaking():
		a.state.SetPanic(true)
		slog.Info("Hotkey barge-in, interrupting speech")
	case !a.state.Recording():
		a.raise(observe.SourceHotkey)
		slog.Info("Hotkey trigger")
	}
}

func (a *Arbiter) raise(source string) {
	a.state.SetTrigger(true)
	a.metrics.RecordTrigger(context.Background(), source)
}
