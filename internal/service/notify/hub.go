// Package notify fans ticket lifecycle events out to provider feed
// subscribers within the process.
package notify

import "sync"

// Event describes a ticket transition for the provider queue.
type Event struct {
	Kind      string `json:"kind"` // "ticket_pending" | "ticket_answered"
	TicketID  string `json:"ticketId"`
	PatientID string `json:"patientId"`
}

// Hub is a small publish/subscribe broker. Slow subscribers drop events
// rather than blocking a turn.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a listener. The returned cancel func must be called to
// release it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)
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

// Publish delivers the event to every live subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
