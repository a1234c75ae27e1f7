package store

import (
	"context"
	"time"
)

// Backend is the shared session substrate. *Store (Postgres) and
// memstore.Store implement it.
type Backend interface {
	CreateRoom(ctx context.Context, room Room) (*Room, error)
	GetRoom(ctx context.Context, roomID string) (*Room, error)
	SetRoomStatus(ctx context.Context, roomID, status string) error
	// FinishRoomIfComplete marks a full room finished once every member has
	// finished. It reports whether this call made the transition.
	FinishRoomIfComplete(ctx context.Context, roomID string) (bool, error)

	// WithRoomLock runs fn while holding an exclusive lock on the room row.
	// Writes made through the RoomTx become visible together when fn returns
	// nil and are discarded otherwise. A missing room yields ErrNotFound.
	WithRoomLock(ctx context.Context, roomID string, fn func(RoomTx) error) error

	GetMembership(ctx context.Context, roomID, userID string) (*Membership, error)
	ListMemberships(ctx context.Context, roomID string) ([]Membership, error)
	SetMembershipConnection(ctx context.Context, roomID, userID, status string, at time.Time) error
	UpdateScore(ctx context.Context, roomID, userID string, score int64, at time.Time) error
	MarkFinished(ctx context.Context, roomID, userID string, at time.Time) error

	UpsertPresence(ctx context.Context, p Presence) error
	GetPresence(ctx context.Context, userID string) (*Presence, error)
	ListPresence(ctx context.Context, roomID string) ([]Presence, error)
	MarkStalePresence(ctx context.Context, before time.Time) (int, error)

	// Subscribe opens a change feed scoped to roomID. The subscription ends
	// when ctx is done or Close is called.
	Subscribe(ctx context.Context, roomID string) (*Subscription, error)

	Ping(ctx context.Context) error
}

type RoomTx interface {
	// Room is the locked row as read at lock time, including increments made
	// through this transaction.
	Room() Room
	Membership(ctx context.Context, userID string) (*Membership, error)
	IncrementPlayers(ctx context.Context) error
	// UpsertMembership inserts the seat or refreshes username, connection
	// status, token and last_seen. Score and finish state are kept.
	UpsertMembership(ctx context.Context, m Membership) error
	SetMembershipConnection(ctx context.Context, userID, status string, at time.Time) error
	UpsertPresence(ctx context.Context, p Presence) error
}
