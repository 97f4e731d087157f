// Package gate classifies transcription results and routes them to the
// chat dispatcher, the command handler, or nowhere.
package gate

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bosley/hark/config"
	"github.com/bosley/hark/observe"
	"github.com/bosley/hark/scribe"
)

// Outcome is the classification of one transcription.
type Outcome int

const (
	Accepted Outcome = iota
	TooShort
	Unintelligible
	CommandIntercepted
	Empty
	// Failed marks a recognizer error; nothing was transcribed.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case TooShort:
		return "too_short"
	case Unintelligible:
		return "unintelligible"
	case CommandIntercepted:
		return "command"
	case Empty:
		return "empty"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Decision is the gate's verdict on one transcription.
type Decision struct {
	Outcome Outcome

	// Text is the trimmed transcription.
	Text string

	// Command is the sanitized command name for CommandIntercepted.
	Command string

	// Status is the human-readable line shown on the transport.
	Status string

	// Apology is spoken after an Unintelligible result when configured.
	Apology string
}

// Dispatcher receives accepted text.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string) bool
}

// CommandHandler receives sanitized command names.
type CommandHandler interface {
	Execute(ctx context.Context, name string)
}

// Feedback is told about every decision exactly once.
type Feedback interface {
	Acknowledge(ctx context.Context, d Decision)
}

// Gate applies the classification rules and routes the result.
type Gate struct {
	live       *config.Live
	dispatcher Dispatcher
	commands   CommandHandler
	feedback   Feedback
	metrics    *observe.Metrics
}

// New returns a gate. metrics may be nil.
func New(live *config.Live, dispatcher Dispatcher, commands CommandHandler, feedback Feedback, metrics *observe.Metrics) *Gate {
	return &Gate{
		live:       live,
		dispatcher: dispatcher,
		commands:   commands,
		feedback:   feedback,
		metrics:    metrics,
	}
}

// Evaluate classifies a batch transcription. Rules apply in order: length,
// confidence, emptiness, command keyword.
func (g *Gate) Evaluate(res scribe.Result) Decision {
	cfg := g.live.Load()

	if res.Duration <= cfg.Listen.SilenceTimeout+cfg.Gate.TooShortMargin {
		return Decision{Outcome: TooShort, Text: strings.TrimSpace(res.Text), Status: "Nothing heard"}
	}
	if res.Confidence < cfg.Gate.MinConfidence {
		return Decision{
			Outcome: Unintelligible,
			Text:    strings.TrimSpace(res.Text),
			Status:  "Could not understand",
			Apology: cfg.Gate.Apology,
		}
	}
	return classifyText(res.Text, cfg.Gate.CommandKeyword)
}

// Handle evaluates res and routes it.
func (g *Gate) Handle(ctx context.Context, res scribe.Result) {
	g.route(ctx, g.Evaluate(res))
}

// Phrase routes a streaming phrase. Streaming results carry no duration or
// confidence, so only the text rules apply.
func (g *Gate) Phrase(ctx context.Context, text string) {
	g.route(ctx, classifyText(text, g.live.Load().Gate.CommandKeyword))
}

// Fail reports a recognizer error. Nothing is dispatched.
func (g *Gate) Fail(ctx context.Context, err error) {
	slog.Warn("Transcription failed, skipping utterance", "error", err)
	g.route(ctx, Decision{Outcome: Failed, Status: "Transcription failed"})
}

func (g *Gate) route(ctx context.Context, d Decision) {
	slog.Info("Transcription classified",
		"outcome", d.Outcome.String(),
		"text", d.Text,
		"command", d.Command)

	switch d.Outcome {
	case Accepted:
		g.dispatcher.Dispatch(ctx, d.Text)
	case CommandIntercepted:
		g.commands.Execute(ctx, d.Command)
	}

	g.metrics.RecordOutcome(ctx, d.Outcome.String())
	g.feedback.Acknowledge(ctx, d)
}

func classifyText(raw, keyword string) Decision {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Decision{Outcome: Empty, Status: "Nothing heard"}
	}
	if keyword != "" && len(text) >= len(keyword) && strings.EqualFold(text[:len(keyword)], keyword) {
		cmd := SanitizeCommand(text[len(keyword):])
		return Decision{
			Outcome: CommandIntercepted,
			Text:    text,
			Command: cmd,
			Status:  "Command: " + cmd,
		}
	}
	return Decision{Outcome: Accepted, Text: text, Status: text}
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SanitizeCommand strips everything but ASCII letters and digits and
// lowercases the rest.
func SanitizeCommand(s string) string {
	return strings.ToLower(nonAlnum.ReplaceAllString(s, ""))
}
