// Package chat is the conversation back end: it answers queued utterances
// with a chat model and speaks the reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bosley/hark/config"
	"github.com/bosley/hark/observe"
	"github.com/bosley/hark/session"
)

// Completer is the part of the OpenAI client the bot uses.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var _ Completer = (*openai.Client)(nil)

// Inbox delivers accepted text and takes the responded latch.
type Inbox interface {
	Messages() <-chan string
	MarkResponded()
}

// Speaker plays a reply.
type Speaker interface {
	Speak(ctx context.Context, text string) (interrupted bool, err error)
}

// Bot consumes the inbox one message at a time.
type Bot struct {
	client  Completer
	history *History
	inbox   Inbox
	speaker Speaker
	state   *session.State
	live    *config.Live
	metrics *observe.Metrics
}

func New(client Completer, history *History, inbox Inbox, speaker Speaker, state *session.State, live *config.Live, metrics *observe.Metrics) *Bot {
	return &Bot{
		client:  client,
		history: history,
		inbox:   inbox,
		speaker: speaker,
		state:   state,
		live:    live,
		metrics: metrics,
	}
}

// Run answers messages until ctx is cancelled. Failed replies are logged and
// the loop continues with the next message.
func (b *Bot) Run(ctx context.Context) error {
	slog.Info("Chat back end started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Chat back end stopped")
			return nil
		case text := <-b.inbox.Messages():
			if err := b.Respond(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Failed to respond", "error", err)
			}
		}
	}
}

// Respond produces and speaks one reply. The responded latch is set as soon
// as a reply exists, before playback starts.
func (b *Bot) Respond(ctx context.Context, text string) error {
	cfg := b.live.Load()
	b.history.SetLimit(cfg.Chat.MaxHistory)

	var reply string
	if cfg.Chat.ParrotMode {
		reply = text
	} else {
		b.history.Add(openai.ChatMessageRoleUser, text)
		var err error
		reply, err = b.complete(ctx, cfg.Chat)
		if err != nil {
			b.inbox.MarkResponded()
			return err
		}
		b.history.Add(openai.ChatMessageRoleAssistant, reply)
	}
	b.inbox.MarkResponded()

	if reply == "" {
		return nil
	}
	interrupted, err := b.speaker.Speak(ctx, reply)
	if err != nil {
		return fmt.Errorf("failed to speak reply: %w", err)
	}
	if interrupted {
		slog.Info("Reply interrupted by user")
	}
	return nil
}

func (b *Bot) complete(ctx context.Context, cfg config.ChatConfig) (string, error) {
	b.state.SetGenerating(true)
	defer b.state.SetGenerating(false)

	start := time.Now()
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    cfg.Model,
		Messages: b.history.prompt(cfg.SystemPrompt),
	})
	b.metrics.RecordLLM(ctx, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	slog.Debug("Chat completion", "model", cfg.Model, "elapsed", time.Since(start))
	return resp.Choices[0].Message.Content, nil
}
