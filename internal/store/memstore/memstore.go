// Package memstore is an in-process session substrate with the same locking
// and feed semantics as the Postgres store. It backs tests and the
// STORE_BACKEND=memory server mode.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"playroom/internal/store"
)

type memberKey struct {
	roomID string
	userID string
}

type Store struct {
	mu        sync.Mutex
	rooms     map[string]*store.Room
	members   map[memberKey]*store.Membership
	presence  map[string]*store.Presence
	roomLocks map[string]*sync.Mutex
	failWith  error

	hub *store.Hub
	now func() time.Time
}

var _ store.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		rooms:     map[string]*store.Room{},
		members:   map[memberKey]*store.Membership{},
		presence:  map[string]*store.Presence{},
		roomLocks: map[string]*sync.Mutex{},
		hub:       store.NewHub(),
		now:       time.Now,
	}
}

// Fail makes every subsequent call return err until Fail(nil).
func (s *Store) Fail(err error) {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
}

func (s *Store) Close() {
	s.hub.Close()
}

func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failWith
}

// publish must be called without s.mu held; changes go out in write order.
func (s *Store) publish(changes []store.Change) {
	for _, c := range changes {
		s.hub.Publish(c)
	}
}

func (s *Store) Subscribe(ctx context.Context, roomID string) (*store.Subscription, error) {
	s.mu.Lock()
	err := s.failWith
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, roomID), nil
}

func (s *Store) CreateRoom(_ context.Context, room store.Room) (*store.Room, error) {
	s.mu.Lock()
	if s.failWith != nil {
		defer s.mu.Unlock()
		return nil, s.failWith
	}
	if room.ID == "" {
		room.ID = store.NewID()
	}
	if room.Status == "" {
		room.Status = store.RoomWaiting
	}
	now := s.now()
	room.CreatedAt, room.UpdatedAt = now, now
	cp := room
	s.rooms[room.ID] = &cp
	s.mu.Unlock()
	s.publish([]store.Change{store.RoomChange(room)})
	return &room, nil
}

func (s *Store) GetRoom(_ context.Context, roomID string) (*store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) SetRoomStatus(_ context.Context, roomID, status string) error {
	s.mu.Lock()
	if s.failWith != nil {
		defer s.mu.Unlock()
		return s.failWith
	}
	r, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = s.now()
	cp := *r
	s.mu.Unlock()
	s.publish([]store.Change{store.RoomChange(cp)})
	return nil
}

func (s *Store) FinishRoomIfComplete(_ context.Context, roomID string) (bool, error) {
	s.mu.Lock()
	if s.failWith != nil {
		defer s.mu.Unlock()
		return false, s.failWith
	}
	r, ok := s.rooms[roomID]
	if !ok || r.Status == store.RoomFinished || r.CurrentPlayers != r.MaxPlayers {
		s.mu.Unlock()
		return false, nil
	}
	for k, m := range s.members {
		if k.roomID == roomID && !m.Finished {
			s.mu.Unlock()
			return false, nil
		}
	}
	r.Status = store.RoomFinished
	r.UpdatedAt = s.now()
	cp := *r
	s.mu.Unlock()
	s.publish([]store.Change{store.RoomChange(cp)})
	return true, nil
}

func (s *Store) GetMembership(_ context.Context, roomID, userID string) (*store.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	m, ok := s.members[memberKey{roomID, userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) ListMemberships(_ context.Context, roomID string) ([]store.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := []store.Membership{}
	for k, m := range s.members {
		if k.roomID == roomID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// updateMembership applies fn to an existing seat and publishes the result.
func (s *Store) updateMembership(roomID, userID string, fn func(m *store.Membership)) error {
	s.mu.Lock()
	if s.failWith != nil {
		defer s.mu.Unlock()
		return s.failWith
	}
	m, ok := s.members[memberKey{roomID, userID}]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	fn(m)
	m.UpdatedAt = s.now()
	cp := *m
	s.mu.Unlock()
	s.publish([]store.Change{store.MembershipChange(cp)})
	return nil
}

func (s *Store) SetMembershipConnection(_ context.Context, roomID, userID, status string, at time.Time) error {
	return s.updateMembership(roomID, userID, func(m *store.Membership) {
		m.ConnectionStatus = status
		m.LastSeen = at
	})
}

func (s *Store) UpdateScore(_ context.Context, roomID, userID string, score int64, at time.Time) error {
	return s.updateMembership(roomID, userID, func(m *store.Membership) {
		m.Score = score
		m.LastSeen = at
	})
}

func (s *Store) MarkFinished(_ context.Context, roomID, userID string, at time.Time) error {
	return s.updateMembership(roomID, userID, func(m *store.Membership) {
		ft := at
		m.Finished = true
		m.FinishTime = &ft
		m.LastSeen = at
	})
}

func (s *Store) UpsertPresence(_ context.Context, p store.Presence) error {
	s.mu.Lock()
	if s.failWith != nil {
		defer s.mu.Unlock()
		return s.failWith
	}
	cp := s.applyPresence(p)
	s.mu.Unlock()
	s.publish([]store.Change{store.PresenceChange(cp)})
	return nil
}

// applyPresence must be called with s.mu held.
func (s *Store) applyPresence(p store.Presence) store.Presence {
	if cur, ok := s.presence[p.UserID]; ok {
		p.CreatedAt = cur.CreatedAt
	} else {
		p.CreatedAt = s.now()
	}
	cp := p
	s.presence[p.UserID] = &cp
	return p
}

func (s *Store) GetPresence(_ context.Context, userID string) (*store.Presence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	p, ok := s.presence[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListPresence(_ context.Context, roomID string) ([]store.Presence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := []store.Presence{}
	for _, p := range s.presence {
		if p.RoomID == roomID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) MarkStalePresence(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	if s.failWith != nil {
		defer s.mu.Unlock()
		return 0, s.failWith
	}
	var changes []store.Change
	for _, p := range s.presence {
		if p.Status == store.PresenceOnline && p.LastHeartbeat.Before(before) {
			p.Status = store.PresenceDisconnected
			changes = append(changes, store.PresenceChange(*p))
		}
	}
	s.mu.Unlock()
	s.publish(changes)
	return len(changes), nil
}
