package engine

import "sync"

// Hub fans refresh signals out to dashboard subscribers. Signals coalesce:
// a slow subscriber sees at most one pending refresh.
type Hub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

func NewHub() *Hub {
	return &Hub{subs: map[int]chan struct{}{}}
}

// Publish signals every subscriber without blocking.
func (h *Hub) Publish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a channel that receives refresh signals and a function
// that unsubscribes.
func (h *Hub) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Subscribers is the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
