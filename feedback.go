package main

import (
	"context"
	"log/slog"

	"github.com/bosley/hark/gate"
	"github.com/bosley/hark/speech"
)

// Transport parameters acknowledged after every transcription.
const (
	paramVoiceRecEnd = "VoiceRec_End"
	paramChatResult  = "CGPT_Result"
	paramChatEnd     = "CGPT_End"
)

type statusBoard interface {
	Status(msg string)
	SetParameter(name string, value any)
}

type apologizer interface {
	Speak(ctx context.Context, text string) (bool, error)
}

// feedback turns pipeline events into transport messages and sound cues.
type feedback struct {
	board   statusBoard
	cues    *speech.Cues
	speaker apologizer
}

func (f *feedback) Status(msg string) {
	f.board.Status(msg)
}

func (f *feedback) ListeningStarted() {
	f.board.Status("Listening...")
	f.cues.Play(speech.CueSpeechOn)
}

func (f *feedback) ListeningStopped(cause string) {
	f.cues.Play(speech.CueSpeechOff)
}

// Acknowledge reports a gate decision. Non-accepted outcomes also close the
// chat round on the transport since no reply will follow.
func (f *feedback) Acknowledge(ctx context.Context, d gate.Decision) {
	if d.Status != "" {
		f.board.Status(d.Status)
	}
	f.board.SetParameter(paramVoiceRecEnd, true)
	if d.Outcome == gate.Accepted {
		return
	}
	f.board.SetParameter(paramChatResult, true)
	f.board.SetParameter(paramChatEnd, true)

	switch d.Outcome {
	case gate.TooShort, gate.Unintelligible, gate.Empty, gate.Failed:
		f.cues.Play(speech.CueMisrecognition)
	}
	if d.Apology != "" && f.speaker != nil {
		go func() {
			if _, err := f.speaker.Speak(ctx, d.Apology); err != nil {
				slog.Warn("Failed to speak apology", "error", err)
			}
		}()
	}
}
