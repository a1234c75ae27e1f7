package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"playroom/internal/store"
)

func (s *Store) roomLock(roomID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.roomLocks[roomID]
	if !ok {
		l = &sync.Mutex{}
		s.roomLocks[roomID] = l
	}
	return l
}

// WithRoomLock serializes callers per room. Writes are staged on the tx and
// applied under the data lock in one step, so readers never see a partial join.
func (s *Store) WithRoomLock(ctx context.Context, roomID string, fn func(store.RoomTx) error) error {
	l := s.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	tx := &memTx{s: s, room: *room, seats: map[string]seatWrite{}}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	if s.failWith != nil {
		defer s.mu.Unlock()
		return s.failWith
	}
	now := s.now()
	var changes []store.Change
	if tx.increments > 0 {
		r := s.rooms[tx.room.ID]
		for i := 0; i < tx.increments; i++ {
			r.CurrentPlayers++
			if r.Status == store.RoomWaiting && r.CurrentPlayers >= r.MaxPlayers {
				r.Status = store.RoomActive
			}
		}
		r.UpdatedAt = now
		changes = append(changes, store.RoomChange(*r))
	}
	for _, userID := range tx.memberOrder {
		w := tx.seats[userID]
		key := memberKey{tx.room.ID, userID}
		cur, ok := s.members[key]
		if !ok {
			cp := w.row
			s.members[key] = &cp
			cur = &cp
		} else {
			w.applyTo(cur)
		}
		cur.UpdatedAt = now
		changes = append(changes, store.MembershipChange(*cur))
	}
	for _, p := range tx.presence {
		changes = append(changes, store.PresenceChange(s.applyPresence(p)))
	}
	s.mu.Unlock()
	s.publish(changes)
	return nil
}

// seatWrite is a staged seat change. Only the seat columns are written back at
// commit; score and finish state written meanwhile outside the lock survive.
type seatWrite struct {
	row      store.Membership
	identity bool
}

func (w seatWrite) applyTo(m *store.Membership) {
	if w.identity {
		m.Username = w.row.Username
		m.ReconnectToken = w.row.ReconnectToken
	}
	m.ConnectionStatus = w.row.ConnectionStatus
	m.LastSeen = w.row.LastSeen
}

type memTx struct {
	s           *Store
	room        store.Room
	increments  int
	seats       map[string]seatWrite
	memberOrder []string
	presence    []store.Presence
}

func (t *memTx) Room() store.Room {
	return t.room
}

func (t *memTx) Membership(ctx context.Context, userID string) (*store.Membership, error) {
	if w, ok := t.seats[userID]; ok {
		m := w.row
		return &m, nil
	}
	return t.s.GetMembership(ctx, t.room.ID, userID)
}

func (t *memTx) IncrementPlayers(context.Context) error {
	if t.room.CurrentPlayers >= t.room.MaxPlayers {
		return store.ErrRoomAtCapacity
	}
	t.room.CurrentPlayers++
	if t.room.Status == store.RoomWaiting && t.room.CurrentPlayers >= t.room.MaxPlayers {
		t.room.Status = store.RoomActive
	}
	t.increments++
	return nil
}

func (t *memTx) stage(m store.Membership, identity bool) {
	w, ok := t.seats[m.UserID]
	if !ok {
		t.memberOrder = append(t.memberOrder, m.UserID)
	}
	t.seats[m.UserID] = seatWrite{row: m, identity: identity || w.identity}
}

func (t *memTx) UpsertMembership(ctx context.Context, m store.Membership) error {
	m.RoomID = t.room.ID
	cur, err := t.Membership(ctx, m.UserID)
	switch {
	case err == nil:
		cur.Username = m.Username
		cur.ConnectionStatus = m.ConnectionStatus
		cur.ReconnectToken = m.ReconnectToken
		cur.LastSeen = m.LastSeen
		t.stage(*cur, true)
	case errors.Is(err, store.ErrNotFound):
		m.Score, m.Finished, m.FinishTime = 0, false, nil
		t.stage(m, true)
	default:
		return err
	}
	return nil
}

func (t *memTx) SetMembershipConnection(ctx context.Context, userID, status string, at time.Time) error {
	cur, err := t.Membership(ctx, userID)
	if err != nil {
		return err
	}
	cur.ConnectionStatus = status
	cur.LastSeen = at
	t.stage(*cur, false)
	return nil
}

func (t *memTx) UpsertPresence(_ context.Context, p store.Presence) error {
	t.presence = append(t.presence, p)
	return nil
}
