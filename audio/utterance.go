package audio

import (
	"time"

	"github.com/google/uuid"
)

// Utterance is one finalized recording, serialized as a WAV container and
// ready for transcription.
type Utterance struct {
	ID      uuid.UUID
	Started time.Time
	Format  Format

	// Frames counts the frames in the container, pre-roll included.
	Frames   int
	Duration time.Duration

	// Cause is the stop condition that closed the recording.
	Cause string
	WAV   []byte
}
