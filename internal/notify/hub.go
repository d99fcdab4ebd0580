package notify

import (
	"sync"

	"github.com/hirewire/resumeq/internal/core"
)

// Hub fans queue events out to in-process subscribers (the websocket
// endpoint). Slow subscribers are skipped rather than blocked on; events
// are change hints, not a durable stream.
type Hub struct {
	mu   sync.Mutex
	subs map[chan core.QueueEvent]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan core.QueueEvent]struct{})}
}

// Subscribe registers a listener and returns its channel plus a cancel
// function that must be called when the listener goes away.
func (h *Hub) Subscribe() (<-chan core.QueueEvent, func()) {
	ch := make(chan core.QueueEvent, 16)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers an event to every subscriber with room in its buffer.
func (h *Hub) Broadcast(event core.QueueEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of attached listeners.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
