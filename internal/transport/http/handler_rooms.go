package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"playroom/internal/auth"
	"playroom/internal/config"
	"playroom/internal/presence"
	"playroom/internal/reconnect"
	"playroom/internal/roomjoin"
	"playroom/internal/scores"
	"playroom/internal/session"
	"playroom/internal/store"
	"playroom/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type RoomHandlers struct {
	store         store.Backend
	coord         *roomjoin.Coordinator
	live          *ws.Server
	heartbeat     time.Duration
	capabilityTTL time.Duration
}

func NewRoomHandlers(st store.Backend, cfg config.SessionConfig, live *ws.Server) *RoomHandlers {
	return &RoomHandlers{
		store:         st,
		coord:         roomjoin.NewCoordinator(),
		live:          live,
		heartbeat:     cfg.HeartbeatInterval,
		capabilityTTL: cfg.CapabilityTTL,
	}
}

// RoomView is a room with its seats. Reconnect tokens never appear here.
type RoomView struct {
	Room    store.Room         `json:"room"`
	Members []store.Membership `json:"members"`
}

// open starts a per-request session for the authenticated caller.
func (h *RoomHandlers) open(r *http.Request) (*session.Handle, string, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil, "", false
	}
	logger := log.With().Str("component", "http").Str("user_id", id.UserID).Logger()
	return session.Open(h.store, id, session.WithLogger(logger)), chi.URLParam(r, "room_id"), true
}

func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return session.ErrInvalidRequest
	}
	return nil
}

func (h *RoomHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "room_id")
		room, err := h.store.GetRoom(r.Context(), roomID)
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, session.ErrRoomNotFound)
			return
		}
		if err != nil {
			WriteError(w, session.Unavailable(err))
			return
		}
		members, err := h.store.ListMemberships(r.Context(), roomID)
		if err != nil {
			WriteError(w, session.Unavailable(err))
			return
		}
		writeJSON(w, http.StatusOK, RoomView{Room: *room, Members: members})
	}
}

func (h *RoomHandlers) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, roomID, ok := h.open(r)
		if !ok {
			WriteError(w, session.ErrUnauthorized)
			return
		}
		defer sess.Close()
		var body struct {
			UserID string `json:"user_id"`
		}
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		if body.UserID == "" {
			body.UserID = sess.Identity().UserID
		}
		res, err := h.coord.Join(r.Context(), sess, roomID, body.UserID)
		if err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *RoomHandlers) Reconnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, roomID, ok := h.open(r)
		if !ok {
			WriteError(w, session.ErrUnauthorized)
			return
		}
		defer sess.Close()
		var capab reconnect.Capability
		if err := decodeBody(r, &capab); err != nil {
			WriteError(w, err)
			return
		}
		if capab.RoomID != roomID {
			WriteError(w, session.ErrInvalidRequest)
			return
		}
		res, err := reconnect.NewManager(sess, h.capabilityTTL).Reconnect(r.Context(), capab)
		if err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *RoomHandlers) Heartbeat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, roomID, ok := h.open(r)
		if !ok {
			WriteError(w, session.ErrUnauthorized)
			return
		}
		defer sess.Close()
		if err := presence.NewTracker(sess, h.heartbeat).Beat(r.Context(), roomID, sess.Identity().UserID); err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "next_ms": h.heartbeat.Milliseconds()})
	}
}

func (h *RoomHandlers) Score() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, roomID, ok := h.open(r)
		if !ok {
			WriteError(w, session.ErrUnauthorized)
			return
		}
		defer sess.Close()
		var body struct {
			Score *int64 `json:"score"`
		}
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		if body.Score == nil {
			WriteError(w, session.ErrInvalidRequest)
			return
		}
		if err := scores.NewRelay(sess).Publish(r.Context(), roomID, sess.Identity().UserID, *body.Score); err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	}
}

func (h *RoomHandlers) Finish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, roomID, ok := h.open(r)
		if !ok {
			WriteError(w, session.ErrUnauthorized)
			return
		}
		defer sess.Close()
		if err := scores.NewRelay(sess).PublishFinish(r.Context(), roomID, sess.Identity().UserID); err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	}
}

func (h *RoomHandlers) Leave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, roomID, ok := h.open(r)
		if !ok {
			WriteError(w, session.ErrUnauthorized)
			return
		}
		defer sess.Close()
		var body struct {
			KeepSeat bool `json:"keep_seat"`
		}
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		if _, err := h.store.GetMembership(r.Context(), roomID, sess.Identity().UserID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				WriteError(w, session.ErrUnauthorized)
				return
			}
			WriteError(w, session.Unavailable(err))
			return
		}
		opts := presence.TeardownOptions{KeepSeat: body.KeepSeat, RoomID: roomID}
		if err := presence.NewTracker(sess, h.heartbeat).Teardown(r.Context(), opts); err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "keep_seat": body.KeepSeat})
	}
}

func (h *RoomHandlers) Live() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			WriteError(w, session.ErrUnauthorized)
			return
		}
		roomID := chi.URLParam(r, "room_id")
		if err := h.live.Admit(r.Context(), id, roomID); err != nil {
			WriteError(w, err)
			return
		}
		h.live.HandleLive(w, r, id, roomID)
	}
}
