package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bosley/hark/config"
)

// History is the conversation log the reset and messagelog commands act on.
type History interface {
	Reset()
	Messages() []string
}

// Deps are the runtime handles the builtin commands toggle.
type Deps struct {
	Live    *config.Live
	Level   *slog.LevelVar
	History History

	// Shutdown stops the process.
	Shutdown func()
}

// RegisterBuiltins adds reset, audiotrigger, sound, verbose, parrotmode,
// messagelog and shutdown. Toggles change the in-memory configuration only.
func RegisterBuiltins(r *Registry, d Deps) {
	r.Register("reset", func(context.Context) string {
		d.History.Reset()
		return "Conversation reset"
	})

	r.Register("audiotrigger", func(context.Context) string {
		c := d.Live.Update(func(c *config.Config) { c.Listen.AudioTrigger = !c.Listen.AudioTrigger })
		return "Audio trigger " + onOff(c.Listen.AudioTrigger)
	})

	r.Register("sound", func(context.Context) string {
		c := d.Live.Update(func(c *config.Config) { c.Listen.SoundFeedback = !c.Listen.SoundFeedback })
		return "Sound feedback " + onOff(c.Listen.SoundFeedback)
	})

	r.Register("parrotmode", func(context.Context) string {
		c := d.Live.Update(func(c *config.Config) { c.Chat.ParrotMode = !c.Chat.ParrotMode })
		return "Parrot mode " + onOff(c.Chat.ParrotMode)
	})

	r.Register("verbose", func(context.Context) string {
		if d.Level.Level() == slog.LevelDebug {
			d.Level.Set(d.Live.Load().Server.LogLevel.Level())
			return "Verbose logging off"
		}
		d.Level.Set(slog.LevelDebug)
		return "Verbose logging on"
	})

	r.Register("messagelog", func(context.Context) string {
		msgs := d.History.Messages()
		for i, m := range msgs {
			slog.Info("Message log", "index", i, "message", m)
		}
		return fmt.Sprintf("Logged %d messages", len(msgs))
	})

	r.Register("shutdown", func(context.Context) string {
		d.Shutdown()
		return "Shutting down"
	})
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
