// Package events provides event fan-out: an in-process hub for session
// subscribers and an optional Kafka exporter for finalized events.
package events

import (
	"sync"

	"github.com/rs/zerolog/log"

	"live-interpreter-service/internal/model"
)

const subscriberBuffer = 64

// Hub broadcasts pipeline events to session subscribers. Subscribers get a
// live feed only: events published before Subscribe are not replayed. A
// subscriber that stops draining loses events rather than stalling the
// pipeline.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan model.PipelineEvent
	closed map[string]struct{}
	next   int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[string]map[int]chan model.PipelineEvent),
		closed: make(map[string]struct{}),
	}
}

// Subscribe registers a live feed for a session. The returned cancel
// function removes the subscription and closes the channel; it is safe to
// call more than once. Subscribing to a session that has already closed
// yields an immediately closed channel, so a late subscriber never hangs.
func (h *Hub) Subscribe(sessionID string) (<-chan model.PipelineEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan model.PipelineEvent, subscriberBuffer)
	if _, done := h.closed[sessionID]; done {
		close(ch)
		return ch, func() {}
	}
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[int]chan model.PipelineEvent)
	}
	id := h.next
	h.next++
	h.subs[sessionID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if m := h.subs[sessionID]; m != nil {
				if c, ok := m[id]; ok {
					delete(m, id)
					close(c)
				}
			}
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of its session.
func (h *Hub) Publish(ev model.PipelineEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			log.Warn().Str("sessionId", ev.SessionID).Str("type", string(ev.Type)).
				Str("component", "hub").Msg("Subscriber behind, event dropped")
		}
	}
}

// CloseSession closes and removes all subscriptions for a session. Called
// once the session has reached a terminal state and its final events have
// been published.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs[sessionID] {
		delete(h.subs[sessionID], id)
		close(ch)
	}
	delete(h.subs, sessionID)
	// Sessions run one at a time, so this set stays tiny.
	h.closed[sessionID] = struct{}{}
}

// SubscriberCount reports the number of active subscribers for a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
