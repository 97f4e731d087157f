package scribe

import (
	"context"
	"sync"
	"time"

	"github.com/bosley/hark/observe"
)

// Engine is the single shared recognition handle. Every call, batch or
// streaming, goes through it, so at most one transcription is in flight.
type Engine struct {
	mu      sync.Mutex
	rec     Recognizer
	metrics *observe.Metrics
}

// NewEngine wraps rec. metrics may be nil.
func NewEngine(rec Recognizer, metrics *observe.Metrics) *Engine {
	return &Engine{rec: rec, metrics: metrics}
}

// Recognize runs rec under the engine lock.
func (e *Engine) Recognize(ctx context.Context, wav []byte) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	res, err := e.rec.Recognize(ctx, wav)
	e.metrics.RecordSTT(ctx, time.Since(start), err)
	return res, err
}
