// Package whisper provides a local speech recognizer backed by the
// whisper.cpp CGO bindings. libwhisper.a and whisper.h must be available at
// link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/bosley/hark/audio"
	"github.com/bosley/hark/scribe"
)

var _ scribe.Recognizer = (*Recognizer)(nil)

// Recognizer transcribes WAV containers with a whisper.cpp model. It is not
// safe for concurrent use; wrap it in a [scribe.Engine].
type Recognizer struct {
	model    whisperlib.Model
	language string
	prompt   string
}

// New loads the ggml model at modelPath. language may be empty for
// auto-detection.
func New(modelPath, language, prompt string) (*Recognizer, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	if language == "" {
		language = "auto"
	}
	return &Recognizer{model: model, language: language, prompt: prompt}, nil
}

// Close releases the model.
func (r *Recognizer) Close() error {
	return r.model.Close()
}

// Recognize decodes wav, runs inference on a fresh context and reports the
// mean token probability as confidence.
func (r *Recognizer) Recognize(ctx context.Context, wav []byte) (scribe.Result, error) {
	if err := ctx.Err(); err != nil {
		return scribe.Result{}, err
	}
	clip, err := audio.DecodeWAVBytes(wav)
	if err != nil {
		return scribe.Result{}, fmt.Errorf("whisper: decode input: %w", err)
	}
	if clip.Format.SampleRate != whisperlib.SampleRate {
		return scribe.Result{}, fmt.Errorf("whisper: input must be %d Hz, got %d", whisperlib.SampleRate, clip.Format.SampleRate)
	}

	wctx, err := r.model.NewContext()
	if err != nil {
		return scribe.Result{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(r.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", r.language, "error", err)
	}
	if r.prompt != "" {
		wctx.SetInitialPrompt(r.prompt)
	}

	if err := wctx.Process(clip.Mono(), nil, nil, nil); err != nil {
		return scribe.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		parts  []string
		sum    float64
		tokens int
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return scribe.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
		for _, tok := range segment.Tokens {
			// Special tokens are bracketed and carry no speech.
			if strings.HasPrefix(tok.Text, "[_") || strings.HasPrefix(tok.Text, "<|") {
				continue
			}
			sum += float64(tok.P)
			tokens++
		}
	}

	res := scribe.Result{
		Text:     strings.Join(parts, " "),
		Language: wctx.DetectedLanguage(),
		Duration: clip.Duration(),
	}
	if tokens > 0 {
		res.Confidence = sum / float64(tokens)
	}
	return res, nil
}
