package scribe

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Result is one transcription. Confidence is in [0, 1]; how it is derived
// depends on the recognizer.
type Result struct {
	Utterance  uuid.UUID `json:"utterance"`
	Text       string    `json:"text"`
	Language   string    `json:"language,omitempty"`
	Confidence float64   `json:"confidence"`

	// Duration is the length of the transcribed audio.
	Duration time.Duration `json:"duration"`
}

// Recognizer turns a WAV container into text.
type Recognizer interface {
	Recognize(ctx context.Context, wav []byte) (Result, error)
}

// Handler receives the outcome of every queued utterance.
type Handler interface {
	Handle(ctx context.Context, res Result)
	Fail(ctx context.Context, err error)
}

// Notifier receives status strings for the transport.
type Notifier interface {
	Status(msg string)
}
