package store

import (
	"context"
	"sync"
)

const subscriptionBuffer = 64

// Hub fans changes out to room-scoped subscriptions. Sends never block: a
// subscriber that falls behind misses changes.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: map[*Subscription]struct{}{}}
}

type Subscription struct {
	roomID string
	ch     chan Change
	hub    *Hub
	once   sync.Once
	stop   func() bool
}

// C delivers changes until the subscription is closed.
func (s *Subscription) C() <-chan Change {
	return s.ch
}

func (s *Subscription) RoomID() string {
	return s.roomID
}

// Close is safe to call more than once and from any goroutine.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.hub.remove(s)
	})
}

// Subscribe registers a subscription for roomID that also closes when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, roomID string) *Subscription {
	sub := &Subscription{roomID: roomID, ch: make(chan Change, subscriptionBuffer), hub: h}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		sub.once.Do(func() {})
		return sub
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	sub.stop = context.AfterFunc(ctx, sub.Close)
	return sub
}

func (h *Hub) Publish(c Change) {
	roomID := c.RoomID()
	if roomID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.roomID != roomID {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			metricFeedDropped.Add(1)
		}
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}
