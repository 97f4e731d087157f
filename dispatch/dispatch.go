// Package dispatch holds the outbound message queue between speech capture
// and the conversation back end.
package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Dispatcher queues accepted text for the chat back end and tracks whether
// the back end has answered the latest input.
type Dispatcher struct {
	queue     chan string
	responded atomic.Bool
}

// New returns a dispatcher that buffers up to size messages.
func New(size int) *Dispatcher {
	if size <= 0 {
		size = 16
	}
	d := &Dispatcher{queue: make(chan string, size)}
	d.responded.Store(true)
	return d
}

// Dispatch appends text to the queue and clears the responded latch. It
// never blocks; when the queue is full the message is dropped and false is
// returned.
func (d *Dispatcher) Dispatch(_ context.Context, text string) bool {
	select {
	case d.queue <- text:
		d.responded.Store(false)
		slog.Debug("Message queued for chat", "text", text, "pending", len(d.queue))
		return true
	default:
		slog.Warn("Chat queue full, dropping message", "text", text)
		return false
	}
}

// Messages is consumed by the chat back end.
func (d *Dispatcher) Messages() <-chan string {
	return d.queue
}

// Pending reports how many messages wait in the queue.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// MarkResponded sets the latch once a reply for the latest input exists.
func (d *Dispatcher) MarkResponded() {
	d.responded.Store(true)
}

// Responded reports whether the back end has answered the latest input.
func (d *Dispatcher) Responded() bool {
	return d.responded.Load()
}
