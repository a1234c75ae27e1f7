// Package roomjoin admits players into rooms. The capacity check and the
// counter increment run under the room row lock so concurrent joins never
// overfill a room.
package roomjoin

import (
	"context"
	"errors"

	"playroom/internal/reconnect"
	"playroom/internal/session"
	"playroom/internal/store"

	"github.com/rs/zerolog/log"
)

type Result struct {
	Room          store.Room           `json:"room"`
	Membership    store.Membership     `json:"membership"`
	AlreadyJoined bool                 `json:"already_joined"`
	Capability    reconnect.Capability `json:"capability"`
}

type Coordinator struct{}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Join seats h's user in roomID, or refreshes the seat it already holds.
// Rejoining keeps the reconnect token and never touches the counter.
func (c *Coordinator) Join(ctx context.Context, h *session.Handle, roomID, userID string) (*Result, error) {
	metricJoinTotal.Add(1)
	res, err := c.join(ctx, h, roomID, userID)
	if err != nil {
		metricJoinErrors.Add(1)
		if errors.Is(err, session.ErrRoomFull) {
			metricJoinRoomFull.Add(1)
		}
		if errors.Is(err, session.ErrStoreUnavailable) {
			log.Error().Err(err).Str("room_id", roomID).Str("user_id", userID).Msg("join failed")
		}
		return nil, err
	}
	log.Info().
		Str("room_id", roomID).
		Str("user_id", userID).
		Bool("already_joined", res.AlreadyJoined).
		Int("current_players", res.Room.CurrentPlayers).
		Msg("player joined room")
	return res, nil
}

func (c *Coordinator) join(ctx context.Context, h *session.Handle, roomID, userID string) (*Result, error) {
	if roomID == "" {
		return nil, session.ErrInvalidRequest
	}
	if err := h.Authorize(userID); err != nil {
		return nil, err
	}
	id := h.Identity()
	now := h.Now()

	var res Result
	err := h.Store().WithRoomLock(ctx, roomID, func(tx store.RoomTx) error {
		if tx.Room().Status == store.RoomFinished {
			return session.ErrRoomFinished
		}
		existing, err := tx.Membership(ctx, userID)
		switch {
		case err == nil:
			res.AlreadyJoined = true
		case errors.Is(err, store.ErrNotFound):
		default:
			return session.Unavailable(err)
		}

		var token string
		if res.AlreadyJoined {
			token = existing.ReconnectToken
		} else {
			if tx.Room().Full() {
				return session.ErrRoomFull
			}
			if err := tx.IncrementPlayers(ctx); err != nil {
				if errors.Is(err, store.ErrRoomAtCapacity) {
					return session.ErrRoomFull
				}
				return session.Unavailable(err)
			}
			if token, err = reconnect.NewToken(); err != nil {
				return err
			}
		}

		err = tx.UpsertMembership(ctx, store.Membership{
			UserID:           userID,
			Username:         id.Username,
			ConnectionStatus: store.Connected,
			ReconnectToken:   token,
			LastSeen:         now,
		})
		if err != nil {
			return session.Unavailable(err)
		}
		err = tx.UpsertPresence(ctx, store.Presence{
			UserID:        userID,
			RoomID:        roomID,
			Status:        store.PresenceOnline,
			LastHeartbeat: now,
		})
		if err != nil {
			return session.Unavailable(err)
		}
		m, err := tx.Membership(ctx, userID)
		if err != nil {
			return session.Unavailable(err)
		}
		res.Room = tx.Room()
		res.Membership = *m
		res.Capability = reconnect.Issue(*m, now)
		return nil
	})
	switch {
	case err == nil:
		return &res, nil
	case errors.Is(err, session.ErrRoomFull), errors.Is(err, session.ErrRoomFinished), errors.Is(err, session.ErrStoreUnavailable):
		return nil, err
	case errors.Is(err, store.ErrNotFound):
		return nil, session.ErrRoomNotFound
	default:
		return nil, session.Unavailable(err)
	}
}
