package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bosley/hark/audio"
	"github.com/bosley/hark/config"
	"github.com/bosley/hark/session"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"short", "Hello there.", 20, []string{"Hello there."}},
		{"breaks on last separator", "one two three four", 10, []string{"one two", "three four"}},
		{"window ends on a word", "three four five", 10, []string{"three four", "five"}},
		{"keeps punctuation", "Yes. Then we go", 7, []string{"Yes.", "Then we", "go"}},
		{"hard cut without separator", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"empty", "   ", 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, tt.limit)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Split(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
			}
			for _, seg := range got {
				if utf8.RuneCountInString(seg) > tt.limit {
					t.Errorf("segment %q longer than %d", seg, tt.limit)
				}
			}
		})
	}
}

// textSynth encodes the segment text into the clip so the player can tell
// which segment it received.
type textSynth struct {
	mu      sync.Mutex
	started []string
	onStart func(text string)
	fail    string
}

func (s *textSynth) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	s.mu.Lock()
	s.started = append(s.started, text)
	hook := s.onStart
	s.mu.Unlock()
	if hook != nil {
		hook(text)
	}
	if text == s.fail {
		return audio.Clip{}, errors.New("voice unavailable")
	}
	samples := make([]int16, len(text))
	for i, r := range text {
		samples[i] = int16(r)
	}
	return audio.Clip{Format: audio.PCM16(24000, 1), Samples: samples}, nil
}

type recordingPlayer struct {
	mu     sync.Mutex
	played []string
	during func(text string)
	active int
	maxAct int
}

func (p *recordingPlayer) Play(_ context.Context, clip audio.Clip, abort func() bool) (bool, error) {
	var b strings.Builder
	for _, s := range clip.Samples {
		b.WriteRune(rune(s))
	}
	text := b.String()

	p.mu.Lock()
	p.active++
	if p.active > p.maxAct {
		p.maxAct = p.active
	}
	p.played = append(p.played, text)
	during := p.during
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	if during != nil {
		during(text)
	}
	if abort != nil && abort() {
		return true, nil
	}
	return false, nil
}

func newSpeaker(t *testing.T, synth Synthesizer, player Player) (*Speaker, *session.State) {
	t.Helper()
	cfg := config.Default()
	cfg.TTS.SegmentLength = 10
	state := session.New()
	return NewSpeaker(synth, player, state, config.NewLive(cfg), nil), state
}

func TestSpeak_PlaysSegmentsInOrder(t *testing.T) {
	synth := &textSynth{}
	player := &recordingPlayer{}
	s, state := newSpeaker(t, synth, player)

	var speakingDuring bool
	player.during = func(string) { speakingDuring = state.Speaking() }

	interrupted, err := s.Speak(context.Background(), "one two three four five six")
	if err != nil || interrupted {
		t.Fatalf("Speak = %v, %v", interrupted, err)
	}
	want := []string{"one two", "three four", "five six"}
	if strings.Join(player.played, "|") != strings.Join(want, "|") {
		t.Errorf("played %q, want %q", player.played, want)
	}
	if !speakingDuring {
		t.Error("speaking flag not set during playback")
	}
	if state.Speaking() {
		t.Error("speaking flag left set")
	}
	if player.maxAct != 1 {
		t.Errorf("%d segments played concurrently", player.maxAct)
	}
}

func TestSpeak_SynthesizesAhead(t *testing.T) {
	secondStarted := make(chan struct{})
	synth := &textSynth{onStart: func(text string) {
		if text == "three four" {
			close(secondStarted)
		}
	}}
	player := &recordingPlayer{}
	player.during = func(text string) {
		if text != "one two" {
			return
		}
		select {
		case <-secondStarted:
		case <-time.After(2 * time.Second):
			t.Error("second segment was not synthesized while the first played")
		}
	}
	s, _ := newSpeaker(t, synth, player)

	if _, err := s.Speak(context.Background(), "one two three four"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
}

func TestSpeak_PanicStopsAndClears(t *testing.T) {
	synth := &textSynth{}
	player := &recordingPlayer{}
	s, state := newSpeaker(t, synth, player)
	player.during = func(string) { state.SetPanic(true) }

	interrupted, err := s.Speak(context.Background(), "one two three four five six")
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if !interrupted {
		t.Error("Speak did not report the interruption")
	}
	if len(player.played) != 1 {
		t.Errorf("played %d segments after barge-in, want 1", len(player.played))
	}
	if state.Panicked() {
		t.Error("panic not cleared after the interrupted cycle")
	}
}

func TestSpeak_SynthesisErrorStops(t *testing.T) {
	synth := &textSynth{fail: "three four"}
	player := &recordingPlayer{}
	s, state := newSpeaker(t, synth, player)

	_, err := s.Speak(context.Background(), "one two three four five six")
	if err == nil {
		t.Fatal("expected synthesis error")
	}
	if len(player.played) != 1 {
		t.Errorf("played %q, want only the first segment", player.played)
	}
	if state.Speaking() {
		t.Error("speaking flag left set after error")
	}
}

func TestCues_RespectSoundFeedback(t *testing.T) {
	player := &recordingPlayer{}
	cfg := config.Default()
	live := config.NewLive(cfg)
	clip := audio.Clip{Format: audio.PCM16(16000, 1), Samples: []int16{'o', 'n'}}
	cues := NewCues(player, live, map[Cue]audio.Clip{CueSpeechOn: clip})

	cues.Play(CueSpeechOn)
	cues.Play(CueSpeechOff) // not loaded
	cues.Wait()
	if len(player.played) != 1 {
		t.Fatalf("played %d cues, want 1", len(player.played))
	}

	live.Update(func(c *config.Config) { c.Listen.SoundFeedback = false })
	cues.Play(CueSpeechOn)
	cues.Wait()
	if len(player.played) != 1 {
		t.Fatal("cue played with sound feedback disabled")
	}
}
