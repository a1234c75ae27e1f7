package reconnect

import (
	"context"
	"crypto/subtle"
	"errors"
	"expvar"
	"time"

	"playroom/internal/session"
	"playroom/internal/store"
)

var (
	metricReconnectTotal    = expvar.NewInt("reconnect_total")
	metricReconnectRejected = expvar.NewMap("reconnect_rejected_total")
)

// Resumed is the state handed back after a successful redeem.
type Resumed struct {
	Room       store.Room       `json:"room"`
	Membership store.Membership `json:"membership"`
	Capability Capability       `json:"capability"`
}

// Redeemer turns a cached capability back into a live seat.
type Redeemer interface {
	Redeem(ctx context.Context, c Capability) (*Resumed, error)
}

// Manager redeems capabilities against the store on behalf of one session.
type Manager struct {
	h   *session.Handle
	ttl time.Duration
}

var _ Redeemer = (*Manager)(nil)

func NewManager(h *session.Handle, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{h: h, ttl: ttl}
}

func (m *Manager) Redeem(ctx context.Context, c Capability) (*Resumed, error) {
	return m.Reconnect(ctx, c)
}

// Reconnect checks c against the stored seat and marks it connected again.
// A rejected capability leaves every row untouched.
func (m *Manager) Reconnect(ctx context.Context, c Capability) (*Resumed, error) {
	res, err := m.reconnect(ctx, c)
	if err != nil {
		metricReconnectRejected.Add(session.Code(err), 1)
		lg := m.h.Logger()
		lg.Info().Err(err).Str("room_id", c.RoomID).Msg("reconnect rejected")
		return nil, err
	}
	metricReconnectTotal.Add(1)
	return res, nil
}

func (m *Manager) reconnect(ctx context.Context, c Capability) (*Resumed, error) {
	if !c.Valid() {
		return nil, session.ErrInvalidRequest
	}
	if err := m.h.Authorize(c.UserID); err != nil {
		return nil, err
	}
	now := m.h.Now()
	if c.Expired(now, m.ttl) {
		return nil, session.ErrCapabilityExpired
	}

	var res Resumed
	err := m.h.Store().WithRoomLock(ctx, c.RoomID, func(tx store.RoomTx) error {
		room := tx.Room()
		if room.Status == store.RoomFinished {
			return session.ErrRoomFinished
		}
		mem, err := tx.Membership(ctx, c.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return session.ErrTokenMismatch
		}
		if err != nil {
			return session.Unavailable(err)
		}
		if subtle.ConstantTimeCompare([]byte(mem.ReconnectToken), []byte(c.Token)) != 1 {
			return session.ErrTokenMismatch
		}
		if err := tx.SetMembershipConnection(ctx, c.UserID, store.Connected, now); err != nil {
			return session.Unavailable(err)
		}
		err = tx.UpsertPresence(ctx, store.Presence{
			UserID:        c.UserID,
			RoomID:        c.RoomID,
			Status:        store.PresenceOnline,
			LastHeartbeat: now,
		})
		if err != nil {
			return session.Unavailable(err)
		}
		mem.ConnectionStatus = store.Connected
		mem.LastSeen = now
		res = Resumed{Room: room, Membership: *mem, Capability: Issue(*mem, now)}
		return nil
	})
	switch {
	case err == nil:
		return &res, nil
	case errors.Is(err, session.ErrRoomFinished), errors.Is(err, session.ErrTokenMismatch), errors.Is(err, session.ErrStoreUnavailable):
		return nil, err
	case errors.Is(err, store.ErrNotFound):
		return nil, session.ErrRoomNotFound
	default:
		return nil, session.Unavailable(err)
	}
}
