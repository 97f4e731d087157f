// Package session holds the process-wide coordination flags shared by
// capture, recognition, generation and playback.
//
// Reads are advisory: every flag is an independent atomic, and callers must
// tolerate another goroutine flipping a flag between two reads. The worst case
// is one extra frame captured or discarded.
package session

import (
	"sync/atomic"
	"time"
)

// State is the shared flag set. The zero value is ready to use.
type State struct {
	recording  atomic.Bool
	speaking   atomic.Bool
	generating atomic.Bool
	trigger    atomic.Bool
	panic      atomic.Bool

	// silence deadline of the active recording, unix nanoseconds
	silenceDeadline atomic.Int64
}

func New() *State { return &State{} }

func (s *State) Recording() bool  { return s.recording.Load() }
func (s *State) Speaking() bool   { return s.speaking.Load() }
func (s *State) Generating() bool { return s.generating.Load() }
func (s *State) Triggered() bool  { return s.trigger.Load() }
func (s *State) Panicked() bool   { return s.panic.Load() }

func (s *State) SetRecording(v bool)  { s.recording.Store(v) }
func (s *State) SetSpeaking(v bool)   { s.speaking.Store(v) }
func (s *State) SetGenerating(v bool) { s.generating.Store(v) }
func (s *State) SetTrigger(v bool)    { s.trigger.Store(v) }
func (s *State) SetPanic(v bool)      { s.panic.Store(v) }

// ConsumeTrigger clears the trigger and reports whether it was set.
func (s *State) ConsumeTrigger() bool { return s.trigger.Swap(false) }

// CaptureGated reports whether a new capture must not start: the assistant
// is already recording, producing a reply, or speaking one.
func (s *State) CaptureGated() bool {
	return s.recording.Load() || s.generating.Load() || s.speaking.Load()
}

// Busy reports whether the assistant is producing or playing a reply.
func (s *State) Busy() bool {
	return s.generating.Load() || s.speaking.Load()
}

// ArmSilenceTimer sets the silence deadline.
func (s *State) ArmSilenceTimer(deadline time.Time) {
	s.silenceDeadline.Store(deadline.UnixNano())
}

// SilenceDeadline returns the armed deadline, or the zero time.
func (s *State) SilenceDeadline() time.Time {
	ns := s.silenceDeadline.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (s *State) ClearSilenceTimer() { s.silenceDeadline.Store(0) }

// Snapshot is a point-in-time copy of the flags for status reporting.
type Snapshot struct {
	Recording       bool      `json:"recording"`
	Speaking        bool      `json:"speaking"`
	Generating      bool      `json:"generating"`
	Trigger         bool      `json:"trigger"`
	Panic           bool      `json:"panic"`
	SilenceDeadline time.Time `json:"silenceDeadline,omitzero"`
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Recording:       s.Recording(),
		Speaking:        s.Speaking(),
		Generating:      s.Generating(),
		Trigger:         s.Triggered(),
		Panic:           s.Panicked(),
		SilenceDeadline: s.SilenceDeadline(),
	}
}
