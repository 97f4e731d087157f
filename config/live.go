package config

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Live holds the active configuration. Readers call [Live.Load] on every
// tick and never see a partially applied change: updates replace the whole
// snapshot.
type Live struct {
	cur atomic.Pointer[Config]

	mu   sync.Mutex
	subs []func(old, new *Config)
}

// NewLive wraps cfg. cfg must not be modified after the call.
func NewLive(cfg *Config) *Live {
	l := &Live{}
	l.cur.Store(cfg)
	return l
}

// Load returns the current snapshot. Callers must treat it as read-only.
func (l *Live) Load() *Config {
	return l.cur.Load()
}

// Store replaces the snapshot and notifies subscribers.
func (l *Live) Store(cfg *Config) {
	l.mu.Lock()
	old := l.cur.Swap(cfg)
	subs := slices.Clone(l.subs)
	l.mu.Unlock()

	for _, fn := range subs {
		fn(old, cfg)
	}
}

// Update applies fn to a copy of the current snapshot, stores it and
// returns it.
func (l *Live) Update(fn func(c *Config)) *Config {
	l.mu.Lock()
	old := l.cur.Load()
	next := old.Clone()
	fn(next)
	l.cur.Store(next)
	subs := slices.Clone(l.subs)
	l.mu.Unlock()

	for _, sub := range subs {
		sub(old, next)
	}
	return next
}

// OnChange registers fn to run after every Store or Update.
func (l *Live) OnChange(fn func(old, new *Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, fn)
}
