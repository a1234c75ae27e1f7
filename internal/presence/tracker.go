// Package presence reports liveness for the session's own user and turns
// other players' presence rows into disconnect and reconnect events.
package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"playroom/internal/session"
	"playroom/internal/store"
)

const DefaultInterval = 5 * time.Second

const opHeartbeat = "heartbeat"

var ErrAlreadyStarted = errors.New("heartbeat_already_started")

// TeardownOptions controls the final write. The zero value marks the user
// disconnected; KeepSeat stops local activity without touching any row.
type TeardownOptions struct {
	KeepSeat bool
	// RoomID names the room to mark when neither StartHeartbeat nor
	// Subscribe was called on this tracker.
	RoomID string
}

type Tracker struct {
	h        *session.Handle
	interval time.Duration

	mu       sync.Mutex
	roomID   string
	cancel   context.CancelFunc
	done     chan struct{}
	watches  map[*Watch]struct{}
	tornDown bool
}

func NewTracker(h *session.Handle, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := &Tracker{h: h, interval: interval, watches: map[*Watch]struct{}{}}
	h.OnClose(t.stop)
	return t
}

// StartHeartbeat writes presence online for userID now and then every
// interval until ctx ends or the tracker is torn down. Write failures go to
// the session's failure sink.
func (t *Tracker) StartHeartbeat(ctx context.Context, roomID, userID string) error {
	if roomID == "" {
		return session.ErrInvalidRequest
	}
	if err := t.h.Authorize(userID); err != nil {
		return err
	}
	t.mu.Lock()
	if t.tornDown {
		t.mu.Unlock()
		return session.ErrClosed
	}
	if t.cancel != nil {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	hbCtx, cancel := context.WithCancel(ctx)
	t.roomID = roomID
	t.cancel = cancel
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()

	t.beat(hbCtx, roomID, userID)
	go t.run(hbCtx, roomID, userID, done)
	return nil
}

// Beat writes a single heartbeat and returns its error, for clients that
// poll instead of holding a live connection. Only seated users may beat.
func (t *Tracker) Beat(ctx context.Context, roomID, userID string) error {
	if roomID == "" {
		return session.ErrInvalidRequest
	}
	if err := t.h.Authorize(userID); err != nil {
		return err
	}
	_, err := t.h.Store().GetMembership(ctx, roomID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return session.ErrUnauthorized
	}
	if err != nil {
		return session.Unavailable(err)
	}
	err = t.h.Store().UpsertPresence(ctx, store.Presence{
		UserID:        userID,
		RoomID:        roomID,
		Status:        store.PresenceOnline,
		LastHeartbeat: t.h.Now(),
	})
	if err != nil {
		return session.Unavailable(err)
	}
	return nil
}

func (t *Tracker) run(ctx context.Context, roomID, userID string, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.beat(ctx, roomID, userID)
		}
	}
}

func (t *Tracker) beat(ctx context.Context, roomID, userID string) {
	now := t.h.Now()
	err := t.h.Store().UpsertPresence(ctx, store.Presence{
		UserID:        userID,
		RoomID:        roomID,
		Status:        store.PresenceOnline,
		LastHeartbeat: now,
	})
	if err != nil && ctx.Err() == nil {
		t.h.Failures().Report(session.Failure{Op: opHeartbeat, RoomID: roomID, UserID: userID, Err: err, At: now})
	}
}

// Subscribe watches roomID for other players' presence transitions.
func (t *Tracker) Subscribe(ctx context.Context, roomID string) (*Watch, error) {
	if roomID == "" {
		return nil, session.ErrInvalidRequest
	}
	t.mu.Lock()
	if t.tornDown {
		t.mu.Unlock()
		return nil, session.ErrClosed
	}
	t.mu.Unlock()

	w, err := openWatch(ctx, t.h, roomID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tornDown {
		w.Close()
		return nil, session.ErrClosed
	}
	if t.roomID == "" {
		t.roomID = roomID
	}
	t.watches[w] = struct{}{}
	return w, nil
}

// Teardown stops the heartbeat and every watch, then writes the user
// disconnected unless opts.KeepSeat. Only the first call has any effect.
func (t *Tracker) Teardown(ctx context.Context, opts TeardownOptions) error {
	roomID, first := t.shutdown()
	if roomID == "" {
		roomID = opts.RoomID
	}
	if !first || opts.KeepSeat || roomID == "" {
		return nil
	}
	userID := t.h.Identity().UserID
	now := t.h.Now()
	st := t.h.Store()
	err := st.UpsertPresence(ctx, store.Presence{
		UserID:        userID,
		RoomID:        roomID,
		Status:        store.PresenceDisconnected,
		LastHeartbeat: now,
	})
	if err != nil {
		return session.Unavailable(err)
	}
	err = st.SetMembershipConnection(ctx, roomID, userID, store.Disconnected, now)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return session.Unavailable(err)
	}
	return nil
}

func (t *Tracker) stop() {
	t.shutdown()
}

func (t *Tracker) shutdown() (roomID string, first bool) {
	t.mu.Lock()
	if t.tornDown {
		t.mu.Unlock()
		return "", false
	}
	t.tornDown = true
	cancel, done := t.cancel, t.done
	watches := t.watches
	t.watches = nil
	roomID = t.roomID
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	for w := range watches {
		w.Close()
	}
	return roomID, true
}
