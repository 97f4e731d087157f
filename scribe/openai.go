package scribe

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Transcriber is the part of the OpenAI client OpenAI uses.
type Transcriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

var _ Transcriber = (*openai.Client)(nil)

// OpenAI recognizes speech with the hosted transcription API.
type OpenAI struct {
	client   Transcriber
	model    string
	language string
	prompt   string
}

// NewOpenAI returns a recognizer using model, e.g. "whisper-1". language and
// prompt may be empty.
func NewOpenAI(client Transcriber, model, language, prompt string) *OpenAI {
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAI{client: client, model: model, language: language, prompt: prompt}
}

// Recognize uploads wav and derives confidence from the per-segment
// no-speech probabilities: 1 minus their mean.
func (o *OpenAI) Recognize(ctx context.Context, wav []byte) (Result, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		Reader:   bytes.NewReader(wav),
		FilePath: "utterance.wav",
		Prompt:   o.prompt,
		Language: o.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to create transcription: %w", err)
	}

	res := Result{
		Text:       resp.Text,
		Language:   resp.Language,
		Duration:   time.Duration(resp.Duration * float64(time.Second)),
		Confidence: 1,
	}
	if n := len(resp.Segments); n > 0 {
		var sum float64
		for _, seg := range resp.Segments {
			sum += seg.NoSpeechProb
		}
		res.Confidence = 1 - sum/float64(n)
	}
	return res, nil
}
