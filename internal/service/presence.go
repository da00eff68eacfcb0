package service

import (
	"sync"
	"time"

	"github.com/msomdec/workville/internal/domain"
)

// PresenceEvent announces a member's new status to live subscribers.
type PresenceEvent struct {
	UserID int64
	Status domain.Status
	At     time.Time
}

// PresenceHub fans presence events out to subscribers. Publishing never
// blocks; a subscriber whose buffer is full misses the event.
type PresenceHub struct {
	mu     sync.Mutex
	subs   map[int]chan PresenceEvent
	nextID int
	buffer int
}

// NewPresenceHub creates a hub whose subscriber channels hold buffer events.
func NewPresenceHub(buffer int) *PresenceHub {
	if buffer < 1 {
		buffer = 1
	}
	return &PresenceHub{subs: make(map[int]chan PresenceEvent), buffer: buffer}
}

// Subscribe registers a new listener. The returned function unsubscribes and
// closes the channel.
func (h *PresenceHub) Subscribe() (<-chan PresenceEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan PresenceEvent, h.buffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber with room in its buffer.
func (h *PresenceHub) Publish(ev PresenceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (h *PresenceHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
