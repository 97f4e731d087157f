package server

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Subscriber is one connected websocket client.
type Subscriber struct {
	ID   uuid.UUID
	Addr string
	send chan []byte
}

// SubscriberList tracks connected websocket clients.
type SubscriberList struct {
	subscribers map[uuid.UUID]*Subscriber
	mu          sync.RWMutex
}

func NewSubscriberList() *SubscriberList {
	return &SubscriberList{
		subscribers: make(map[uuid.UUID]*Subscriber),
	}
}

func (sl *SubscriberList) Add(sub *Subscriber) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.subscribers[sub.ID] = sub
}

// Remove drops the subscriber and closes its send channel once.
func (sl *SubscriberList) Remove(id uuid.UUID) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sub, ok := sl.subscribers[id]; ok {
		delete(sl.subscribers, id)
		close(sub.send)
	}
}

func (sl *SubscriberList) Len() int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return len(sl.subscribers)
}

// Broadcast queues msg for every subscriber. Slow subscribers whose buffer
// is full miss the message.
func (sl *SubscriberList) Broadcast(msg []byte) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	for _, sub := range sl.subscribers {
		select {
		case sub.send <- msg:
		default:
			slog.Warn("Subscriber buffer full, dropping message", "subscriberID", sub.ID)
		}
	}
}

// CloseAll removes every subscriber, which ends their write pumps.
func (sl *SubscriberList) CloseAll() {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	for id, sub := range sl.subscribers {
		delete(sl.subscribers, id)
		close(sub.send)
	}
}
