// Package chat implements the messaging core: thread resolution, sends
// with unread accounting, live subscriptions with degraded fallbacks,
// and the per-view session lifecycle.
package chat

import (
	"sync"
)

// Hub fans out thread-change notifications to live subscriptions. It
// maps thread ids to the currently registered listeners so a send or a
// mark-read can wake every open view of that thread.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int64]chan struct{}
	nextID int64
}

// NewHub creates a new hub instance.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int64]chan struct{})}
}

// Register adds a listener for the given thread and returns the
// connection id to unregister with, plus the channel the hub signals on.
// The channel has capacity one: a pending signal already means "state
// changed, re-fetch", so coalescing further signals loses nothing.
func (h *Hub) Register(threadID string) (int64, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[threadID]; !ok {
		h.subs[threadID] = make(map[int64]chan struct{})
	}

	h.nextID++
	id := h.nextID
	ch := make(chan struct{}, 1)
	h.subs[threadID][id] = ch
	return id, ch
}

// Unregister removes a previously registered listener. No signals are
// delivered on the channel after Unregister returns.
func (h *Hub) Unregister(threadID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.subs[threadID]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.subs, threadID)
		}
	}
}

// Notify signals every listener of the thread. Best-effort and
// non-blocking: a listener that already has a pending signal is skipped.
func (h *Hub) Notify(threadID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[threadID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Listeners reports how many listeners are registered for a thread.
func (h *Hub) Listeners(threadID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[threadID])
}
