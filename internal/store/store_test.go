package store

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRoomLockSerializesIncrements(t *testing.T) {
	st, ctx := openStore(t)
	room := mustCreateRoom(t, st, ctx, 2)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.WithRoomLock(ctx, room.ID, func(tx RoomTx) error {
				if tx.Room().Full() {
					return ErrRoomAtCapacity
				}
				return tx.IncrementPlayers(ctx)
			})
			if err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := st.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if got.CurrentPlayers != 2 || admitted != 2 {
		t.Fatalf("current_players=%d admitted=%d, want 2/2", got.CurrentPlayers, admitted)
	}
	if got.Status != RoomActive {
		t.Fatalf("status = %s, want active once full", got.Status)
	}
}

func TestRoomLockRollsBackOnError(t *testing.T) {
	st, ctx := openStore(t)
	room := mustCreateRoom(t, st, ctx, 2)
	boom := errors.New("boom")

	err := st.WithRoomLock(ctx, room.ID, func(tx RoomTx) error {
		if err := tx.IncrementPlayers(ctx); err != nil {
			return err
		}
		if err := tx.UpsertMembership(ctx, Membership{UserID: "u1", ConnectionStatus: Connected, ReconnectToken: "t", LastSeen: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	got, _ := st.GetRoom(ctx, room.ID)
	if got.CurrentPlayers != 0 {
		t.Fatalf("current_players = %d, want 0 after rollback", got.CurrentPlayers)
	}
	if _, err := st.GetMembership(ctx, room.ID, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("membership err = %v, want ErrNotFound", err)
	}
}

func TestRoomLockMissingRoom(t *testing.T) {
	st, ctx := openStore(t)
	err := st.WithRoomLock(ctx, "nope", func(RoomTx) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMembershipUpsertKeepsScore(t *testing.T) {
	st, ctx := openStore(t)
	room := mustCreateRoom(t, st, ctx, 2)
	now := time.Now().UTC().Truncate(time.Millisecond)

	seat := Membership{UserID: "u1", Username: "alice", ConnectionStatus: Connected, ReconnectToken: "tok", LastSeen: now}
	if err := st.WithRoomLock(ctx, room.ID, func(tx RoomTx) error { return tx.UpsertMembership(ctx, seat) }); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.UpdateScore(ctx, room.ID, "u1", 120, now); err != nil {
		t.Fatalf("update score: %v", err)
	}
	seat.ConnectionStatus = Disconnected
	if err := st.WithRoomLock(ctx, room.ID, func(tx RoomTx) error { return tx.UpsertMembership(ctx, seat) }); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	m, err := st.GetMembership(ctx, room.ID, "u1")
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if m.Score != 120 || m.ConnectionStatus != Disconnected || m.ReconnectToken != "tok" {
		t.Fatalf("unexpected membership: %+v", m)
	}
	if err := st.UpdateScore(ctx, room.ID, "ghost", 1, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ghost score err = %v, want ErrNotFound", err)
	}
}

func TestFinishRoomIfComplete(t *testing.T) {
	st, ctx := openStore(t)
	room := mustCreateRoom(t, st, ctx, 2)
	now := time.Now()
	for _, u := range []string{"a", "b"} {
		user := u
		if err := st.WithRoomLock(ctx, room.ID, func(tx RoomTx) error {
			if err := tx.IncrementPlayers(ctx); err != nil {
				return err
			}
			return tx.UpsertMembership(ctx, Membership{UserID: user, ConnectionStatus: Connected, ReconnectToken: user, LastSeen: now})
		}); err != nil {
			t.Fatalf("seat %s: %v", user, err)
		}
	}
	if err := st.MarkFinished(ctx, room.ID, "a", now); err != nil {
		t.Fatalf("finish a: %v", err)
	}
	if done, err := st.FinishRoomIfComplete(ctx, room.ID); err != nil || done {
		t.Fatalf("finish room early: done=%v err=%v", done, err)
	}
	if err := st.MarkFinished(ctx, room.ID, "b", now); err != nil {
		t.Fatalf("finish b: %v", err)
	}
	if done, err := st.FinishRoomIfComplete(ctx, room.ID); err != nil || !done {
		t.Fatalf("finish room: done=%v err=%v", done, err)
	}
}

func TestPresenceStaleSweep(t *testing.T) {
	st, ctx := openStore(t)
	now := time.Now()
	if err := st.UpsertPresence(ctx, Presence{UserID: "old", RoomID: "r", Status: PresenceOnline, LastHeartbeat: now.Add(-time.Minute)}); err != nil {
		t.Fatalf("upsert old: %v", err)
	}
	if err := st.UpsertPresence(ctx, Presence{UserID: "fresh", RoomID: "r", Status: PresenceOnline, LastHeartbeat: now}); err != nil {
		t.Fatalf("upsert fresh: %v", err)
	}
	n, err := st.MarkStalePresence(ctx, now.Add(-30*time.Second))
	if err != nil || n != 1 {
		t.Fatalf("sweep n=%d err=%v, want 1", n, err)
	}
	p, _ := st.GetPresence(ctx, "old")
	if p.Status != PresenceDisconnected {
		t.Fatalf("old presence status = %s", p.Status)
	}
}

func TestChangeFeedDeliversCommittedRows(t *testing.T) {
	st, ctx := openStore(t)
	room := mustCreateRoom(t, st, ctx, 2)

	sub, err := st.Subscribe(ctx, room.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if err := st.UpsertPresence(ctx, Presence{UserID: "u1", RoomID: room.ID, Status: PresenceOnline, LastHeartbeat: time.Now()}); err != nil {
		t.Fatalf("upsert presence: %v", err)
	}
	select {
	case c := <-sub.C():
		if c.Kind != KindPresence || c.Presence.UserID != "u1" {
			t.Fatalf("unexpected change: %+v", c)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for presence change")
	}
}
