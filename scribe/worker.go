package scribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bosley/hark/audio"
)

func (s *Scribe) processJob(ctx context.Context, u audio.Utterance) {
	slog.Info("Processing utterance",
		"utterance", u.ID,
		"durationSeconds", u.Duration.Seconds(),
		"cause", u.Cause)
	if s.notifier != nil {
		s.notifier.Status("Transcribing...")
	}

	res, err := s.engine.Recognize(ctx, u.WAV)
	if err != nil {
		slog.Error("Failed to transcribe utterance",
			"error", err,
			"utterance", u.ID)
		s.handler.Fail(ctx, fmt.Errorf("transcription of %s failed: %w", u.ID, err))
		return
	}

	res.Utterance = u.ID
	res.Text = extractText(res.Text)
	if res.Duration == 0 {
		res.Duration = u.Duration
	}

	slog.Info("Successfully transcribed utterance",
		"utterance", u.ID,
		"text", res.Text,
		"language", res.Language,
		"confidence", res.Confidence)
	s.handler.Handle(ctx, res)
}

// extractText joins recognizer output lines, dropping blank-audio markers.
func extractText(output string) string {
	var builder strings.Builder
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "[BLANK_AUDIO]") {
			line = strings.ReplaceAll(line, "[BLANK_AUDIO]", "")
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString(" ")
		}
		builder.WriteString(text)
	}
	return builder.String()
}
