package api

import (
	"sync"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/telemetry"
)

// Hub fans coin updates out to stream subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	buffer int
}

type subscriber struct {
	ch chan domain.Coin
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: make(map[*subscriber]struct{}), buffer: buffer}
}

func (h *Hub) add() *subscriber {
	s := &subscriber{ch: make(chan domain.Coin, h.buffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Broadcast never blocks; a subscriber whose buffer is full misses the update.
func (h *Hub) Broadcast(c domain.Coin) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		select {
		case s.ch <- c:
		default:
			telemetry.WSMessageDropped()
		}
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
