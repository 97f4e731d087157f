package stream

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/bosley/hark/audio"
	"github.com/bosley/hark/config"
	"github.com/bosley/hark/session"
)

const testFrameSize = 4

var testFormat = audio.PCM16(16000, 1)

func frameOf(v int16) audio.Frame {
	samples := make([]int16, testFrameSize)
	for i := range samples {
		samples[i] = v
	}
	return audio.NewFrame(samples, testFormat, time.Time{})
}

// wordAdapter turns every inserted frame into the word "w<amplitude>". It
// holds back the most recent word until Finish, like a recognizer waiting
// for more context.
type wordAdapter struct {
	pending  []string
	resets   int
	delay    time.Duration
	clock    *time.Time
	failNext error
}

func (a *wordAdapter) Insert(samples []float32) {
	for i := 0; i+testFrameSize <= len(samples); i += testFrameSize {
		v := int(math.Round(float64(samples[i]) * 32768))
		a.pending = append(a.pending, fmt.Sprintf("w%d", v))
	}
}

func (a *wordAdapter) Process(context.Context) (string, error) {
	if a.delay > 0 {
		*a.clock = a.clock.Add(a.delay)
	}
	if err := a.failNext; err != nil {
		a.failNext = nil
		return "", err
	}
	if len(a.pending) < 2 {
		return "", nil
	}
	done := a.pending[:len(a.pending)-1]
	a.pending = a.pending[len(a.pending)-1:]
	return strings.Join(done, " "), nil
}

func (a *wordAdapter) Finish(context.Context) (string, error) {
	out := strings.Join(a.pending, " ")
	a.pending = nil
	return out, nil
}

func (a *wordAdapter) Reset() {
	a.pending = nil
	a.resets++
}

type phraseSink struct {
	phrases []string
	fails   int
}

func (s *phraseSink) Phrase(_ context.Context, text string) { s.phrases = append(s.phrases, text) }
func (s *phraseSink) Fail(context.Context, error)           { s.fails++ }

type segHarness struct {
	seg     *Segmenter
	queue   *Queue
	adapter *wordAdapter
	sink    *phraseSink
	state   *session.State
	live    *config.Live
	clock   time.Time
}

func newSegHarness(t *testing.T) *segHarness {
	t.Helper()
	cfg := config.Default()
	cfg.Listen.AudioTrigger = true
	cfg.Listen.SilenceTimeout = 500 * time.Millisecond
	h := &segHarness{
		queue: NewQueue(),
		sink:  &phraseSink{},
		state: session.New(),
		live:  config.NewLive(cfg),
		clock: time.Unix(9000, 0),
	}
	h.adapter = &wordAdapter{clock: &h.clock}
	h.seg = NewSegmenter(h.queue, h.adapter, h.state, h.live, h.sink)
	h.seg.SetClock(func() time.Time { return h.clock })
	return h
}

func (h *segHarness) arrive(d time.Duration, values ...int16) {
	h.clock = h.clock.Add(d)
	for _, v := range values {
		h.queue.Push(frameOf(v))
	}
	h.seg.Step(context.Background())
}

func (h *segHarness) idle(d time.Duration) {
	h.clock = h.clock.Add(d)
	h.seg.Step(context.Background())
}

func TestScenario_TwoPhrasesResetIndependently(t *testing.T) {
	h := newSegHarness(t)

	h.arrive(0, 1, 2)
	h.arrive(100*time.Millisecond, 3)
	h.idle(200 * time.Millisecond)
	if len(h.sink.phrases) != 0 {
		t.Fatalf("phrase completed before the silence timeout: %v", h.sink.phrases)
	}
	h.idle(400 * time.Millisecond)
	if len(h.sink.phrases) != 1 {
		t.Fatalf("got %d phrases after silence, want 1", len(h.sink.phrases))
	}

	h.idle(2 * time.Second)
	h.arrive(0, 4, 5)
	h.idle(600 * time.Millisecond)

	if len(h.sink.phrases) != 2 {
		t.Fatalf("got %d phrases, want 2: %v", len(h.sink.phrases), h.sink.phrases)
	}
	if got := h.sink.phrases[0]; got != "w1 w2 w3" {
		t.Errorf("phrase 1 = %q, want %q", got, "w1 w2 w3")
	}
	if got := h.sink.phrases[1]; got != "w4 w5" {
		t.Errorf("phrase 2 = %q, want %q", got, "w4 w5")
	}
	for _, w := range strings.Fields(h.sink.phrases[0]) {
		if strings.Contains(h.sink.phrases[1], w) {
			t.Errorf("phrase 2 %q contains %q from phrase 1", h.sink.phrases[1], w)
		}
	}
	if h.adapter.resets < 2 {
		t.Errorf("adapter reset %d times, want at least once per phrase", h.adapter.resets)
	}
}

func TestGapOnArrivalClosesPreviousPhraseFirst(t *testing.T) {
	h := newSegHarness(t)
	h.arrive(0, 1, 2)
	// No idle step sees the gap; the next arrival must close phrase one
	// before its audio reaches the adapter.
	h.arrive(time.Second, 7)
	if len(h.sink.phrases) != 1 || h.sink.phrases[0] != "w1 w2" {
		t.Fatalf("phrases = %v, want [w1 w2]", h.sink.phrases)
	}
	h.idle(time.Second)
	if len(h.sink.phrases) != 2 || h.sink.phrases[1] != "w7" {
		t.Fatalf("phrases = %v, want second phrase w7", h.sink.phrases)
	}
}

func TestGatedWhileSpeakingDiscardsQueueAndPhrase(t *testing.T) {
	h := newSegHarness(t)
	h.arrive(0, 1, 2, 3)

	h.state.SetSpeaking(true)
	h.arrive(10*time.Millisecond, 8, 9)
	if h.queue.Len() != 0 {
		t.Fatal("queue not drained while speaking")
	}
	h.idle(time.Second)
	if len(h.sink.phrases) != 0 {
		t.Fatalf("phrase emitted while gated: %v", h.sink.phrases)
	}

	h.state.SetSpeaking(false)
	h.arrive(0, 4)
	h.idle(time.Second)
	if len(h.sink.phrases) != 1 || h.sink.phrases[0] != "w4" {
		t.Fatalf("phrases = %v, want [w4]", h.sink.phrases)
	}
}

func TestAudioTriggerDisabledDiscards(t *testing.T) {
	h := newSegHarness(t)
	h.live.Update(func(c *config.Config) { c.Listen.AudioTrigger = false })
	h.arrive(0, 1, 2)
	h.idle(time.Second)
	if h.queue.Len() != 0 || len(h.sink.phrases) != 0 {
		t.Fatalf("queue=%d phrases=%v, want both empty", h.queue.Len(), h.sink.phrases)
	}
}

func TestTriggerConsumedByPhrase(t *testing.T) {
	h := newSegHarness(t)
	h.state.SetTrigger(true)

	h.arrive(0, 1)
	if h.state.Triggered() {
		t.Error("trigger still set after a phrase began")
	}
	h.arrive(10*time.Millisecond, 2)

	h.state.SetTrigger(true)
	h.idle(time.Second)
	if got := strings.Join(h.sink.phrases, "|"); got != "w1 w2" {
		t.Fatalf("phrases = %q, want one phrase \"w1 w2\"", got)
	}
	if h.state.Triggered() {
		t.Error("trigger still set after the phrase completed")
	}
}

func TestTriggerDroppedWhileGated(t *testing.T) {
	h := newSegHarness(t)
	h.state.SetSpeaking(true)
	h.state.SetTrigger(true)

	h.arrive(0, 1)
	if h.state.Triggered() {
		t.Error("trigger kept while capture is gated")
	}

	h.state.SetSpeaking(false)
	h.live.Update(func(c *config.Config) { c.Listen.AudioTrigger = false })
	h.state.SetTrigger(true)
	h.idle(0)
	if h.state.Triggered() {
		t.Error("trigger kept while the audio trigger is disabled")
	}
}

func TestLatencyCompensation(t *testing.T) {
	h := newSegHarness(t)
	h.adapter.delay = 700 * time.Millisecond

	h.arrive(0, 1, 2)
	// Processing took longer than the silence timeout; the phrase must not
	// be cut on the very next idle step.
	h.idle(0)
	if len(h.sink.phrases) != 0 {
		t.Fatalf("slow recognizer caused an early cut: %v", h.sink.phrases)
	}
	h.idle(600 * time.Millisecond)
	if len(h.sink.phrases) != 1 {
		t.Fatalf("phrase did not complete after real silence: %v", h.sink.phrases)
	}
}

func TestRecognitionErrorIsReportedAndLoopContinues(t *testing.T) {
	h := newSegHarness(t)
	h.adapter.failNext = errors.New("engine down")
	h.arrive(0, 1)
	if h.sink.fails != 1 {
		t.Fatalf("fails = %d, want 1", h.sink.fails)
	}
	h.arrive(50*time.Millisecond, 2)
	h.idle(time.Second)
	if len(h.sink.phrases) != 1 {
		t.Fatalf("phrases = %v, want one phrase after recovery", h.sink.phrases)
	}
}

func TestProducer_QueuesSpeechWithPreRollAndHangover(t *testing.T) {
	cfg := config.Default()
	cfg.Listen.RecordingThreshold = 1000
	cfg.Listen.StreamHangover = 150 * time.Millisecond
	q := NewQueue()
	p := NewProducer(q, config.NewLive(cfg))
	clock := time.Unix(100, 0)
	p.SetClock(func() time.Time { return clock })

	levels := []int16{10, 20, 2000, 2000, 30, 40, 50, 60, 70}
	for _, v := range levels {
		p.Process(frameOf(v))
		clock = clock.Add(64 * time.Millisecond)
	}

	var got []int16
	for _, f := range q.Drain() {
		got = append(got, f.Samples()[0])
	}
	// Pre-roll 20, loud 2000 2000, then quiet frames until the hangover
	// (150ms after the last loud frame) has passed.
	want := []int16{20, 2000, 2000, 30, 40, 50}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("queued %v, want %v", got, want)
	}
}
