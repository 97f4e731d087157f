package speech

import (
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/bosley/hark/audio"
)

// openAISampleRate is the rate of the raw PCM the speech endpoint returns.
const openAISampleRate = 24000

// SpeechClient is the part of the OpenAI client OpenAI uses.
type SpeechClient interface {
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

var _ SpeechClient = (*openai.Client)(nil)

// OpenAI synthesizes speech with the hosted text-to-speech API.
type OpenAI struct {
	client SpeechClient
	model  string
	voice  string
}

func NewOpenAI(client SpeechClient, model, voice string) *OpenAI {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAI{client: client, model: model, voice: voice}
}

// Synthesize requests raw 16-bit mono PCM so no container parsing is needed.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.SpeechVoice(o.voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return audio.Clip{}, fmt.Errorf("failed to create speech: %w", err)
	}
	defer resp.Close()

	pcm, err := io.ReadAll(resp)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("failed to read speech: %w", err)
	}
	return audio.Clip{
		Format:  audio.PCM16(openAISampleRate, 1),
		Samples: audio.BytesToInt16(pcm),
	}, nil
}
