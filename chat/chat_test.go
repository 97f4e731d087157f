package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bosley/hark/config"
	"github.com/bosley/hark/dispatch"
	"github.com/bosley/hark/session"
)

type fakeCompleter struct {
	state      *session.State
	reply      string
	err        error
	requests   []openai.ChatCompletionRequest
	generating bool
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	f.generating = f.state.Generating()
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}}},
	}, nil
}

type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
	done   chan struct{}
}

func (f *fakeSpeaker) Speak(_ context.Context, text string) (bool, error) {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return false, nil
}

type fixture struct {
	bot     *Bot
	client  *fakeCompleter
	speaker *fakeSpeaker
	inbox   *dispatch.Dispatcher
	state   *session.State
	history *History
	live    *config.Live
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	state := session.New()
	f := &fixture{
		client:  &fakeCompleter{state: state, reply: "Hi there"},
		speaker: &fakeSpeaker{},
		inbox:   dispatch.New(4),
		state:   state,
		history: NewHistory(0),
		live:    config.NewLive(config.Default()),
	}
	f.bot = New(f.client, f.history, f.inbox, f.speaker, state, f.live, nil)
	return f
}

func TestRespond_CompletesAndSpeaks(t *testing.T) {
	f := newFixture(t)
	f.inbox.Dispatch(context.Background(), "hello")
	<-f.inbox.Messages()

	if err := f.bot.Respond(context.Background(), "hello"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !f.client.generating {
		t.Error("generating flag not set during completion")
	}
	if f.state.Generating() {
		t.Error("generating flag left set")
	}
	if !f.inbox.Responded() {
		t.Error("responded latch not set")
	}
	if len(f.speaker.spoken) != 1 || f.speaker.spoken[0] != "Hi there" {
		t.Errorf("spoken = %q", f.speaker.spoken)
	}

	req := f.client.requests[0]
	if req.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", req.Model)
	}
	if req.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("first message role = %q, want system", req.Messages[0].Role)
	}
	if last := req.Messages[len(req.Messages)-1]; last.Content != "hello" {
		t.Errorf("last message = %q, want user text", last.Content)
	}
	want := []string{"user: hello", "assistant: Hi there"}
	if got := f.history.Messages(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("history = %q, want %q", got, want)
	}
}

func TestRespond_ParrotMode(t *testing.T) {
	f := newFixture(t)
	f.live.Update(func(c *config.Config) { c.Chat.ParrotMode = true })

	if err := f.bot.Respond(context.Background(), "say this back"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if len(f.client.requests) != 0 {
		t.Error("model called in parrot mode")
	}
	if len(f.speaker.spoken) != 1 || f.speaker.spoken[0] != "say this back" {
		t.Errorf("spoken = %q", f.speaker.spoken)
	}
}

func TestRespond_CompletionError(t *testing.T) {
	f := newFixture(t)
	f.client.err = errors.New("rate limited")
	f.inbox.Dispatch(context.Background(), "hello")

	err := f.bot.Respond(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if f.state.Generating() {
		t.Error("generating flag left set after error")
	}
	if !f.inbox.Responded() {
		t.Error("responded latch not set after error")
	}
	if len(f.speaker.spoken) != 0 {
		t.Error("spoke after a failed completion")
	}
}

func TestHistory_Bounded(t *testing.T) {
	h := NewHistory(3)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		h.Add(openai.ChatMessageRoleUser, s)
	}
	want := []string{"user: c", "user: d", "user: e"}
	if got := h.Messages(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Messages = %q, want %q", got, want)
	}

	h.SetLimit(1)
	if got := h.Messages(); len(got) != 1 || got[0] != "user: e" {
		t.Errorf("after SetLimit = %q", got)
	}

	h.Reset()
	if len(h.Messages()) != 0 {
		t.Error("Reset left messages")
	}
	if p := h.prompt("sys"); len(p) != 1 || p[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("prompt after reset = %+v", p)
	}
}

func TestRun_ConsumesInbox(t *testing.T) {
	f := newFixture(t)
	f.speaker.done = make(chan struct{}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.bot.Run(ctx) }()

	f.inbox.Dispatch(ctx, "one")
	f.inbox.Dispatch(ctx, "two")
	for range 2 {
		select {
		case <-f.speaker.done:
		case <-time.After(2 * time.Second):
			t.Fatal("reply not spoken")
		}
	}
	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Run = %v", err)
	}
	if len(f.client.requests) != 2 {
		t.Errorf("completions = %d, want 2", len(f.client.requests))
	}
}
