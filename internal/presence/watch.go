package presence

import (
	"context"
	"sync"

	"playroom/internal/session"
	"playroom/internal/store"
)

const watchBuffer = 16

// Watch delivers presence events for one room until closed.
type Watch struct {
	roomID string
	self   string
	sub    *store.Subscription
	events chan Event

	last map[string]string
	stop chan struct{}
	once sync.Once
	done chan struct{}
}

func openWatch(ctx context.Context, h *session.Handle, roomID string) (*Watch, error) {
	st := h.Store()
	seed, err := st.ListPresence(ctx, roomID)
	if err != nil {
		return nil, session.Unavailable(err)
	}
	sub, err := st.Subscribe(ctx, roomID)
	if err != nil {
		return nil, session.Unavailable(err)
	}
	w := &Watch{
		roomID: roomID,
		self:   h.Identity().UserID,
		sub:    sub,
		events: make(chan Event, watchBuffer),
		last:   make(map[string]string, len(seed)),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, p := range seed {
		w.last[p.UserID] = p.Status
	}
	go w.run()
	return w, nil
}

func (w *Watch) Events() <-chan Event {
	return w.events
}

func (w *Watch) RoomID() string {
	return w.roomID
}

// Close stops delivery and closes Events. Safe to call more than once.
func (w *Watch) Close() {
	w.once.Do(func() {
		close(w.stop)
		w.sub.Close()
	})
	<-w.done
}

func (w *Watch) run() {
	defer close(w.done)
	defer close(w.events)
	for {
		select {
		case <-w.stop:
			return
		case c, ok := <-w.sub.C():
			if !ok {
				return
			}
			ev, emit := w.transition(c)
			if !emit {
				continue
			}
			select {
			case w.events <- ev:
			case <-w.stop:
				return
			}
		}
	}
}

// transition tracks the last known status per user. A user first seen
// online is a join, not a reconnect, and yields nothing.
func (w *Watch) transition(c store.Change) (Event, bool) {
	if c.Kind != store.KindPresence || c.Presence == nil {
		return Event{}, false
	}
	p := c.Presence
	if p.RoomID != w.roomID || p.UserID == w.self {
		return Event{}, false
	}
	prev, seen := w.last[p.UserID]
	w.last[p.UserID] = p.Status
	if seen && prev == p.Status {
		return Event{}, false
	}
	switch p.Status {
	case store.PresenceDisconnected:
		return Event{Kind: EventDisconnected, UserID: p.UserID, RoomID: p.RoomID, At: p.LastHeartbeat}, true
	case store.PresenceOnline:
		if !seen {
			return Event{}, false
		}
		return Event{Kind: EventReconnected, UserID: p.UserID, RoomID: p.RoomID, At: p.LastHeartbeat}, true
	}
	return Event{}, false
}
