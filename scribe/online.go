package scribe

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bosley/hark/audio"
)

// Online is an incremental recognizer built on a batch [Engine]. It keeps
// a growing buffer of the current phrase, re-transcribes it on every
// Process call and commits the words two consecutive hypotheses agree on.
type Online struct {
	engine    *Engine
	format    audio.Format
	maxBuffer time.Duration

	buffer    []float32
	prev      []string
	committed int
}

// NewOnline returns an adapter for mono audio at sampleRate. Once the
// buffer exceeds maxBuffer the current hypothesis is committed in full and
// the buffer restarts.
func NewOnline(engine *Engine, sampleRate int, maxBuffer time.Duration) *Online {
	return &Online{
		engine:    engine,
		format:    audio.PCM16(sampleRate, 1),
		maxBuffer: maxBuffer,
	}
}

// Insert appends normalised mono samples to the phrase buffer.
func (o *Online) Insert(samples []float32) {
	o.buffer = append(o.buffer, samples...)
}

// Process returns the words that became stable since the previous call.
func (o *Online) Process(ctx context.Context) (string, error) {
	if len(o.buffer) == 0 {
		return "", nil
	}
	words, err := o.hypothesis(ctx)
	if err != nil {
		return "", err
	}

	var out []string
	if agreed := commonPrefix(o.prev, words); agreed > o.committed {
		out = append(out, words[o.committed:agreed]...)
		o.committed = agreed
	}
	o.prev = words

	if o.bufferDuration() > o.maxBuffer {
		if len(words) > o.committed {
			out = append(out, words[o.committed:]...)
		}
		slog.Debug("Streaming buffer full, committing hypothesis", "words", len(words))
		o.clear()
	}
	return strings.Join(out, " "), nil
}

// Finish transcribes the buffer one last time and returns every word not
// yet committed.
func (o *Online) Finish(ctx context.Context) (string, error) {
	if len(o.buffer) == 0 {
		return "", nil
	}
	words, err := o.hypothesis(ctx)
	if err != nil {
		return "", err
	}
	var rest string
	if len(words) > o.committed {
		rest = strings.Join(words[o.committed:], " ")
	}
	o.clear()
	return rest, nil
}

// Reset forgets the current phrase.
func (o *Online) Reset() {
	o.clear()
}

func (o *Online) clear() {
	o.buffer = nil
	o.prev = nil
	o.committed = 0
}

func (o *Online) bufferDuration() time.Duration {
	return time.Duration(len(o.buffer)) * time.Second / time.Duration(o.format.SampleRate)
}

func (o *Online) hypothesis(ctx context.Context) ([]string, error) {
	frame := audio.NewFrame(audio.FromFloat32(o.buffer), o.format, time.Time{})
	wav, err := audio.EncodeWAVBytes(o.format, []audio.Frame{frame})
	if err != nil {
		return nil, err
	}
	res, err := o.engine.Recognize(ctx, wav)
	if err != nil {
		return nil, err
	}
	return strings.Fields(extractText(res.Text)), nil
}

// commonPrefix counts the leading words a and b share, ignoring case and
// trailing punctuation.
func commonPrefix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && sameWord(a[n], b[n]) {
		n++
	}
	return n
}

func sameWord(a, b string) bool {
	trim := func(s string) string { return strings.TrimRight(s, ".,!?;:") }
	return strings.EqualFold(trim(a), trim(b))
}
