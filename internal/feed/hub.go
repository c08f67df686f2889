// Package feed is the in-memory pub/sub hub behind the live event
// WebSocket. It keeps a small replay buffer so clients that connect slightly
// late still see recent events.
package feed

import (
	"sync"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
)

type Hub struct {
	mu        sync.RWMutex
	subs      map[chan model.StandardizedEvent]struct{}
	replay    []model.StandardizedEvent
	maxReplay int
}

func NewHub() *Hub {
	return &Hub{
		subs:      map[chan model.StandardizedEvent]struct{}{},
		maxReplay: 100,
	}
}

// Subscribe registers a consumer. The returned cancel func must be called to
// release the channel. Recent events are replayed best-effort without ever
// blocking Subscribe.
func (h *Hub) Subscribe() (<-chan model.StandardizedEvent, func()) {
	ch := make(chan model.StandardizedEvent, 64)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	replay := append([]model.StandardizedEvent(nil), h.replay...)
	h.mu.Unlock()

	// Each replay send re-checks membership under the lock: cancel closes
	// the channel under the same lock, so a subscriber that disconnects
	// mid-replay never sees a send on a closed channel.
	go func() {
		for _, evt := range replay {
			h.mu.Lock()
			if _, ok := h.subs[ch]; !ok {
				h.mu.Unlock()
				return
			}
			select {
			case ch <- evt:
			default:
				h.mu.Unlock()
				return
			}
			h.mu.Unlock()
		}
	}()

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

// Publish fans the event out to all subscribers. Slow subscribers drop
// events rather than blocking the pipeline.
func (h *Hub) Publish(evt model.StandardizedEvent) {
	h.mu.Lock()
	h.replay = append(h.replay, evt)
	if len(h.replay) > h.maxReplay {
		h.replay = h.replay[len(h.replay)-h.maxReplay:]
	}
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	h.mu.Unlock()
}
