package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const membershipColumns = `room_id, user_id, username, connection_status, reconnect_token, score, finished, finish_time, last_seen, updated_at`

func scanMembership(row pgx.Row) (*Membership, error) {
	var (
		m          Membership
		finishTime pgtype.Timestamptz
	)
	if err := row.Scan(&m.RoomID, &m.UserID, &m.Username, &m.ConnectionStatus, &m.ReconnectToken,
		&m.Score, &m.Finished, &finishTime, &m.LastSeen, &m.UpdatedAt); err != nil {
		return nil, mapNotFound(err)
	}
	m.FinishTime = timePtrVal(finishTime)
	return &m, nil
}

func getMembership(ctx context.Context, q querier, roomID, userID string) (*Membership, error) {
	return scanMembership(q.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE room_id = $1 AND user_id = $2`, roomID, userID))
}

func upsertMembership(ctx context.Context, q querier, m Membership) error {
	_, err := q.Exec(ctx, `
		INSERT INTO memberships (room_id, user_id, username, connection_status, reconnect_token, last_seen)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (room_id, user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    connection_status = EXCLUDED.connection_status,
		    reconnect_token = EXCLUDED.reconnect_token,
		    last_seen = EXCLUDED.last_seen,
		    updated_at = now()
	`, m.RoomID, m.UserID, m.Username, m.ConnectionStatus, m.ReconnectToken, timestamptzParam(m.LastSeen))
	return err
}

func setMembershipConnection(ctx context.Context, q querier, roomID, userID, status string, at time.Time) error {
	return requireRow(q.Exec(ctx, `
		UPDATE memberships SET connection_status = $3, last_seen = $4, updated_at = now()
		WHERE room_id = $1 AND user_id = $2
	`, roomID, userID, status, at))
}

func (s *Store) GetMembership(ctx context.Context, roomID, userID string) (*Membership, error) {
	return getMembership(ctx, s.Pool, roomID, userID)
}

func (s *Store) ListMemberships(ctx context.Context, roomID string) ([]Membership, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE room_id = $1 ORDER BY user_id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Membership{}
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Store) SetMembershipConnection(ctx context.Context, roomID, userID, status string, at time.Time) error {
	return setMembershipConnection(ctx, s.Pool, roomID, userID, status, at)
}

func (s *Store) UpdateScore(ctx context.Context, roomID, userID string, score int64, at time.Time) error {
	return requireRow(s.Pool.Exec(ctx, `
		UPDATE memberships SET score = $3, last_seen = $4, updated_at = now()
		WHERE room_id = $1 AND user_id = $2
	`, roomID, userID, score, at))
}

func (s *Store) MarkFinished(ctx context.Context, roomID, userID string, at time.Time) error {
	return requireRow(s.Pool.Exec(ctx, `
		UPDATE memberships SET finished = true, finish_time = $3, last_seen = $3, updated_at = now()
		WHERE room_id = $1 AND user_id = $2
	`, roomID, userID, at))
}
