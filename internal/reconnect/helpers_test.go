package reconnect

import (
	"context"
	"sync"
	"testing"
	"time"

	"playroom/internal/auth"
	"playroom/internal/session"
	"playroom/internal/store"
	"playroom/internal/store/memstore"

	"github.com/rs/zerolog"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// seatUser creates a two-seat room and seats userID with token, disconnected.
func seatUser(t *testing.T, st *memstore.Store, userID, token string, at time.Time) store.Room {
	t.Helper()
	ctx := context.Background()
	room, err := st.CreateRoom(ctx, store.Room{GameType: "pong", MaxPlayers: 2})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	err = st.WithRoomLock(ctx, room.ID, func(tx store.RoomTx) error {
		if err := tx.IncrementPlayers(ctx); err != nil {
			return err
		}
		return tx.UpsertMembership(ctx, store.Membership{
			UserID:           userID,
			Username:         userID,
			ConnectionStatus: store.Disconnected,
			ReconnectToken:   token,
			LastSeen:         at,
		})
	})
	if err != nil {
		t.Fatalf("seat %s: %v", userID, err)
	}
	got, err := st.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	return *got
}

func openHandle(st store.Backend, userID string, clock *fakeClock) *session.Handle {
	return session.Open(st, auth.Identity{UserID: userID, Username: userID},
		session.WithClock(clock.Now), session.WithLogger(zerolog.Nop()))
}
