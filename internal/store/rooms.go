package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrRoomAtCapacity guards the increment itself; callers check capacity
// first and should never see it.
var ErrRoomAtCapacity = errors.New("room at capacity")

const roomColumns = `id, game_type, status, max_players, current_players, created_at, updated_at`

func scanRoom(row pgx.Row) (*Room, error) {
	var r Room
	if err := row.Scan(&r.ID, &r.GameType, &r.Status, &r.MaxPlayers, &r.CurrentPlayers, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, mapNotFound(err)
	}
	return &r, nil
}

func (s *Store) CreateRoom(ctx context.Context, room Room) (*Room, error) {
	if room.ID == "" {
		room.ID = NewID()
	}
	if room.Status == "" {
		room.Status = RoomWaiting
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO rooms (id, game_type, status, max_players, current_players)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING `+roomColumns,
		room.ID, room.GameType, room.Status, room.MaxPlayers, room.CurrentPlayers)
	return scanRoom(row)
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	return scanRoom(s.Pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, roomID))
}

func (s *Store) SetRoomStatus(ctx context.Context, roomID, status string) error {
	return requireRow(s.Pool.Exec(ctx, `UPDATE rooms SET status = $2, updated_at = now() WHERE id = $1`, roomID, status))
}

func (s *Store) FinishRoomIfComplete(ctx context.Context, roomID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE rooms SET status = 'finished', updated_at = now()
		WHERE id = $1
		  AND status <> 'finished'
		  AND current_players = max_players
		  AND NOT EXISTS (SELECT 1 FROM memberships WHERE room_id = $1 AND NOT finished)
	`, roomID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// WithRoomLock holds SELECT ... FOR UPDATE on the room row for the whole of
// fn; concurrent joiners queue on the lock and read the committed counter.
func (s *Store) WithRoomLock(ctx context.Context, roomID string, fn func(RoomTx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	room, err := scanRoom(tx.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1 FOR UPDATE`, roomID))
	if err != nil {
		return err
	}
	if err := fn(&pgRoomTx{tx: tx, room: *room}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgRoomTx struct {
	tx   pgx.Tx
	room Room
}

func (t *pgRoomTx) Room() Room {
	return t.room
}

func (t *pgRoomTx) Membership(ctx context.Context, userID string) (*Membership, error) {
	return getMembership(ctx, t.tx, t.room.ID, userID)
}

func (t *pgRoomTx) IncrementPlayers(ctx context.Context) error {
	room, err := scanRoom(t.tx.QueryRow(ctx, `
		UPDATE rooms
		SET current_players = current_players + 1,
		    status = CASE WHEN status = 'waiting' AND current_players + 1 >= max_players THEN 'active' ELSE status END,
		    updated_at = now()
		WHERE id = $1 AND current_players < max_players
		RETURNING `+roomColumns, t.room.ID))
	if errors.Is(err, ErrNotFound) {
		return ErrRoomAtCapacity
	}
	if err != nil {
		return err
	}
	t.room = *room
	return nil
}

func (t *pgRoomTx) UpsertMembership(ctx context.Context, m Membership) error {
	m.RoomID = t.room.ID
	return upsertMembership(ctx, t.tx, m)
}

func (t *pgRoomTx) SetMembershipConnection(ctx context.Context, userID, status string, at time.Time) error {
	return setMembershipConnection(ctx, t.tx, t.room.ID, userID, status, at)
}

func (t *pgRoomTx) UpsertPresence(ctx context.Context, p Presence) error {
	return upsertPresence(ctx, t.tx, p)
}
