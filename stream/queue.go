// Package stream implements continuous capture: a producer pushes frames
// into a queue and a segmenter feeds them to an incremental recognizer,
// cutting phrases on gaps between arrivals.
package stream

import (
	"sync"

	"github.com/bosley/hark/audio"
)

// Queue is the only structure shared between producer and segmenter.
type Queue struct {
	mu     sync.Mutex
	frames []audio.Frame
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Push(f audio.Frame) {
	q.mu.Lock()
	q.frames = append(q.frames, f)
	q.mu.Unlock()
}

// Drain removes and returns every queued frame in arrival order.
func (q *Queue) Drain() []audio.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.frames
	q.frames = nil
	return out
}

// Clear discards every queued frame and reports how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.frames)
	q.frames = nil
	return n
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
