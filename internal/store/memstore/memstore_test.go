package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"playroom/internal/store"
)

func TestWithRoomLockCommitsAtomically(t *testing.T) {
	st := New()
	defer st.Close()
	ctx := context.Background()
	room, err := st.CreateRoom(ctx, store.Room{GameType: "memory", MaxPlayers: 2})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	sub, _ := st.Subscribe(ctx, room.ID)
	defer sub.Close()

	now := time.Now()
	err = st.WithRoomLock(ctx, room.ID, func(tx store.RoomTx) error {
		if err := tx.IncrementPlayers(ctx); err != nil {
			return err
		}
		if err := tx.UpsertMembership(ctx, store.Membership{UserID: "a", ConnectionStatus: store.Connected, ReconnectToken: "t", LastSeen: now}); err != nil {
			return err
		}
		// Nothing is visible outside the tx yet.
		if _, err := st.GetMembership(ctx, room.ID, "a"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("membership visible before commit: %v", err)
		}
		return tx.UpsertPresence(ctx, store.Presence{UserID: "a", RoomID: room.ID, Status: store.PresenceOnline, LastHeartbeat: now})
	})
	if err != nil {
		t.Fatalf("with room lock: %v", err)
	}

	kinds := []store.ChangeKind{}
	for i := 0; i < 3; i++ {
		select {
		case c := <-sub.C():
			kinds = append(kinds, c.Kind)
		case <-time.After(time.Second):
			t.Fatalf("only got %v", kinds)
		}
	}
	want := []store.ChangeKind{store.KindRoom, store.KindMembership, store.KindPresence}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("change order = %v, want %v", kinds, want)
		}
	}
}

func TestWithRoomLockDiscardsOnError(t *testing.T) {
	st := New()
	ctx := context.Background()
	room, _ := st.CreateRoom(ctx, store.Room{GameType: "memory", MaxPlayers: 2})
	boom := errors.New("boom")

	err := st.WithRoomLock(ctx, room.ID, func(tx store.RoomTx) error {
		_ = tx.IncrementPlayers(ctx)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	got, _ := st.GetRoom(ctx, room.ID)
	if got.CurrentPlayers != 0 {
		t.Fatalf("current_players = %d, want 0", got.CurrentPlayers)
	}
}

func TestConcurrentIncrementsRespectCapacity(t *testing.T) {
	st := New()
	ctx := context.Background()
	room, _ := st.CreateRoom(ctx, store.Room{GameType: "math", MaxPlayers: 3})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.WithRoomLock(ctx, room.ID, func(tx store.RoomTx) error {
				return tx.IncrementPlayers(ctx)
			})
		}()
	}
	wg.Wait()
	got, _ := st.GetRoom(ctx, room.ID)
	if got.CurrentPlayers != 3 || got.Status != store.RoomActive {
		t.Fatalf("room = %+v, want 3 players active", got)
	}
}

func TestUpsertMembershipPreservesScore(t *testing.T) {
	st := New()
	ctx := context.Background()
	room, _ := st.CreateRoom(ctx, store.Room{GameType: "pattern", MaxPlayers: 2})
	seat := store.Membership{UserID: "a", Username: "alice", ConnectionStatus: store.Connected, ReconnectToken: "t", LastSeen: time.Now()}
	upsert := func() {
		if err := st.WithRoomLock(ctx, room.ID, func(tx store.RoomTx) error { return tx.UpsertMembership(ctx, seat) }); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	upsert()
	if err := st.UpdateScore(ctx, room.ID, "a", 42, time.Now()); err != nil {
		t.Fatalf("score: %v", err)
	}
	upsert()
	m, _ := st.GetMembership(ctx, room.ID, "a")
	if m.Score != 42 {
		t.Fatalf("score = %d, want 42", m.Score)
	}
}

func TestSeatWritesKeepScoreWrittenDuringLock(t *testing.T) {
	st := New()
	defer st.Close()
	ctx := context.Background()
	room, _ := st.CreateRoom(ctx, store.Room{GameType: "pattern", MaxPlayers: 2})
	seat := store.Membership{UserID: "a", Username: "alice", ConnectionStatus: store.Connected, ReconnectToken: "t", LastSeen: time.Now()}
	if err := st.WithRoomLock(ctx, room.ID, func(tx store.RoomTx) error { return tx.UpsertMembership(ctx, seat) }); err != nil {
		t.Fatalf("seat: %v", err)
	}

	cases := []struct {
		name  string
		write func(tx store.RoomTx) error
	}{
		{"set connection", func(tx store.RoomTx) error {
			return tx.SetMembershipConnection(ctx, "a", store.Disconnected, time.Now())
		}},
		{"upsert seat", func(tx store.RoomTx) error {
			return tx.UpsertMembership(ctx, seat)
		}},
	}
	for i, tc := range cases {
		score := int64(100 + i)
		err := st.WithRoomLock(ctx, room.ID, func(tx store.RoomTx) error {
			if err := tc.write(tx); err != nil {
				return err
			}
			if err := st.UpdateScore(ctx, room.ID, "a", score, time.Now()); err != nil {
				return err
			}
			return st.MarkFinished(ctx, room.ID, "a", time.Now())
		})
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		m, _ := st.GetMembership(ctx, room.ID, "a")
		if m.Score != score || !m.Finished || m.FinishTime == nil {
			t.Fatalf("%s: membership = %+v, want score %d finished", tc.name, m, score)
		}
	}
	m, _ := st.GetMembership(ctx, room.ID, "a")
	if m.ConnectionStatus != store.Connected || m.ReconnectToken != "t" {
		t.Fatalf("seat columns = %s/%s, want connected/t", m.ConnectionStatus, m.ReconnectToken)
	}
}

func TestFailInjection(t *testing.T) {
	st := New()
	ctx := context.Background()
	down := errors.New("down")
	st.Fail(down)
	if _, err := st.GetRoom(ctx, "x"); !errors.Is(err, down) {
		t.Fatalf("err = %v, want down", err)
	}
	if err := st.UpsertPresence(ctx, store.Presence{UserID: "a"}); !errors.Is(err, down) {
		t.Fatalf("err = %v, want down", err)
	}
	st.Fail(nil)
	if err := st.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMarkStalePresence(t *testing.T) {
	st := New()
	ctx := context.Background()
	now := time.Now()
	_ = st.UpsertPresence(ctx, store.Presence{UserID: "old", RoomID: "r", Status: store.PresenceOnline, LastHeartbeat: now.Add(-time.Minute)})
	_ = st.UpsertPresence(ctx, store.Presence{UserID: "new", RoomID: "r", Status: store.PresenceOnline, LastHeartbeat: now})
	n, err := st.MarkStalePresence(ctx, now.Add(-10*time.Second))
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	ps, _ := st.ListPresence(ctx, "r")
	if ps[0].UserID != "new" || ps[0].Status != store.PresenceOnline || ps[1].Status != store.PresenceDisconnected {
		t.Fatalf("unexpected presence: %+v", ps)
	}
}
