package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const presenceColumns = `user_id, room_id, status, last_heartbeat, created_at`

func scanPresence(row pgx.Row) (*Presence, error) {
	var p Presence
	if err := row.Scan(&p.UserID, &p.RoomID, &p.Status, &p.LastHeartbeat, &p.CreatedAt); err != nil {
		return nil, mapNotFound(err)
	}
	return &p, nil
}

// upsertPresence overwrites the user's single presence row, including the room.
func upsertPresence(ctx context.Context, q querier, p Presence) error {
	_, err := q.Exec(ctx, `
		INSERT INTO presence (user_id, room_id, status, last_heartbeat)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id) DO UPDATE
		SET room_id = EXCLUDED.room_id,
		    status = EXCLUDED.status,
		    last_heartbeat = EXCLUDED.last_heartbeat
	`, p.UserID, p.RoomID, p.Status, p.LastHeartbeat)
	return err
}

func (s *Store) UpsertPresence(ctx context.Context, p Presence) error {
	return upsertPresence(ctx, s.Pool, p)
}

func (s *Store) GetPresence(ctx context.Context, userID string) (*Presence, error) {
	return scanPresence(s.Pool.QueryRow(ctx, `SELECT `+presenceColumns+` FROM presence WHERE user_id = $1`, userID))
}

func (s *Store) ListPresence(ctx context.Context, roomID string) ([]Presence, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+presenceColumns+` FROM presence WHERE room_id = $1 ORDER BY user_id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Presence{}
	for rows.Next() {
		p, err := scanPresence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) MarkStalePresence(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE presence SET status = 'disconnected'
		WHERE status = 'online' AND last_heartbeat < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
