package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// subscriberBuffer is how far one SSE client may fall behind before its
// events are dropped.
const subscriberBuffer = 16

// Hub relays run events to in-process subscribers. Publish never blocks:
// a subscriber with a full buffer misses the event and Dropped counts it.
type Hub struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}
	dropped atomic.Int64
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan Event]struct{})}
}

func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch. Calling it twice is harmless.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; !ok {
		return
	}
	delete(h.clients, ch)
	close(ch)
}

func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped is the number of deliveries skipped for slow subscribers.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }
