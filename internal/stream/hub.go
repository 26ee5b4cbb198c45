// Package stream fans verdict records out to in-process subscribers such as
// the SSE and websocket handlers.
package stream

import (
	"sync"

	"github.com/dshills/nfdiff/internal/schema"
)

// Hub broadcasts reports to every subscriber. A subscriber whose buffer is
// full misses the report; Publish never blocks.
type Hub struct {
	mu      sync.Mutex
	subs    map[chan *schema.Report]struct{}
	dropped uint64
	closed  bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan *schema.Report]struct{})}
}

// Subscribe registers a subscriber with the given buffer size. The channel is
// closed by Unsubscribe or Close.
func (h *Hub) Subscribe(buf int) <-chan *schema.Report {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan *schema.Report, buf)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a subscriber. Unknown channels are ignored.
func (h *Hub) Unsubscribe(sub <-chan *schema.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		if ch == sub {
			delete(h.subs, ch)
			close(ch)
			return
		}
	}
}

// Publish delivers r to every subscriber with room in its buffer.
func (h *Hub) Publish(r *schema.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- r:
		default:
			h.dropped++
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was
// full.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close closes every subscriber. Later subscriptions receive a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}
