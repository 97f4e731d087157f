// Package command implements the voice commands reachable through the
// command keyword ("system reset", "system sound", ...).
package command

import (
	"context"
	"log/slog"
	"sort"

	"github.com/antzucaro/matchr"
)

// minSimilarity is the Jaro-Winkler score a misheard name needs to resolve
// to a registered command.
const minSimilarity = 0.9

// Func runs a command and returns the status line to show.
type Func func(ctx context.Context) string

// Notifier receives the status line of each executed command.
type Notifier interface {
	Status(msg string)
}

// Registry maps sanitized command names to their implementations.
type Registry struct {
	cmds     map[string]Func
	notifier Notifier
}

// NewRegistry returns an empty registry. notifier may be nil.
func NewRegistry(notifier Notifier) *Registry {
	return &Registry{cmds: make(map[string]Func), notifier: notifier}
}

// Register adds or replaces the command called name.
func (r *Registry) Register(name string, fn Func) {
	r.cmds[name] = fn
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.cmds))
	for n := range r.cmds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve finds the command for name: an exact match first, then the most
// similar registered name scoring at least minSimilarity.
func (r *Registry) Resolve(name string) (string, bool) {
	if _, ok := r.cmds[name]; ok {
		return name, true
	}
	best, bestScore := "", 0.0
	for _, candidate := range r.Names() {
		if s := matchr.JaroWinkler(name, candidate, false); s > bestScore {
			best, bestScore = candidate, s
		}
	}
	if bestScore >= minSimilarity {
		return best, true
	}
	return "", false
}

// Execute runs the command called name. Unknown names are reported, not
// treated as errors.
func (r *Registry) Execute(ctx context.Context, name string) {
	resolved, ok := r.Resolve(name)
	if !ok {
		slog.Warn("Unknown voice command", "command", name, "known", r.Names())
		r.status("Unknown command: " + name)
		return
	}
	if resolved != name {
		slog.Info("Resolved misheard command", "heard", name, "command", resolved)
	}
	msg := r.cmds[resolved](ctx)
	slog.Info("Voice command executed", "command", resolved, "result", msg)
	r.status(msg)
}

func (r *Registry) status(msg string) {
	if r.notifier != nil && msg != "" {
		r.notifier.Status(msg)
	}
}

