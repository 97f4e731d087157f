// Package speech turns reply text into audio and plays it back, segment by
// segment, with cooperative barge-in.
package speech

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bosley/hark/audio"
)

// Synthesizer converts text to playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audio.Clip, error)
}

// Player writes a clip to the output device. abort is checked after every
// frame; a nil abort never interrupts.
type Player interface {
	Play(ctx context.Context, clip audio.Clip, abort func() bool) (interrupted bool, err error)
}

const separators = " .,!?;:\n"

// Split cuts text into segments of at most limit runes, breaking after the
// last separator inside each window. A window without a separator is cut
// hard at limit.
func Split(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if limit <= 0 {
		limit = 142
	}

	var segments []string
	for utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		cut := -1
		if unicode.IsSpace(runes[limit]) {
			cut = limit
		}
		for i := limit - 1; cut < 0 && i >= 0; i-- {
			if strings.ContainsRune(separators, runes[i]) {
				cut = i + 1
				break
			}
		}
		if cut <= 0 {
			cut = limit
		}
		if seg := strings.TrimSpace(string(runes[:cut])); seg != "" {
			segments = append(segments, seg)
		}
		text = strings.TrimSpace(string(runes[cut:]))
	}
	if text != "" {
		segments = append(segments, text)
	}
	return segments
}
