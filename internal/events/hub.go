package events

import (
	"log/slog"
	"sync"
)

// subscriberBuffer bounds how far a slow session may lag before it starts
// losing events. Dropped events are recovered by the session's next fetch.
const subscriberBuffer = 32

// Hub is the single broadcast point for a server process. Every connected
// session holds one Subscriber; Broadcast fans an event out to all of them in
// subscription order without blocking on any.
type Hub struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
}

// Subscriber is one session's ordered event feed.
type Subscriber struct {
	ch chan Event
}

// Events returns the channel events arrive on. It is closed when the
// subscriber is unsubscribed or the hub shuts down.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new session feed. Returns nil if the hub is closed.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	s := &Subscriber{ch: make(chan Event, subscriberBuffer)}
	h.subs[s] = struct{}{}
	return s
}

// Unsubscribe removes a session feed and closes its channel. Safe to call
// twice and safe after Close.
func (h *Hub) Unsubscribe(s *Subscriber) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.ch)
}

// Broadcast delivers the event to every current subscriber. Delivery per
// subscriber preserves broadcast order; a subscriber whose buffer is full
// loses the event (at-most-once, no replay).
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			h.logger.Warn("dropping event for slow subscriber", slog.String("kind", ev.Kind))
		}
	}
}

// Close tears down all subscribers. Further Subscribe/Broadcast calls are
// no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}

// SubscriberCount reports how many sessions are currently attached.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
