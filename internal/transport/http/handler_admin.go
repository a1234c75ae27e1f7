package httptransport

import (
	"encoding/json"
	"net/http"
	"strings"

	"playroom/internal/session"
	"playroom/internal/store"
)

type AdminHandlers struct {
	store store.Backend
}

func NewAdminHandlers(st store.Backend) *AdminHandlers {
	return &AdminHandlers{store: st}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "store": "down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "store": "up"})
	}
}

// CreateRoom is the upstream matchmaking hook: it seeds a waiting room.
func (h *AdminHandlers) CreateRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ID         string `json:"id"`
			GameType   string `json:"game_type"`
			MaxPlayers int    `json:"max_players"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		body.GameType = strings.TrimSpace(body.GameType)
		if body.MaxPlayers == 0 {
			body.MaxPlayers = 2
		}
		if body.GameType == "" || body.MaxPlayers < 1 {
			WriteError(w, session.ErrInvalidRequest)
			return
		}
		room, err := h.store.CreateRoom(r.Context(), store.Room{
			ID:         body.ID,
			GameType:   body.GameType,
			Status:     store.RoomWaiting,
			MaxPlayers: body.MaxPlayers,
		})
		if err != nil {
			WriteError(w, session.Unavailable(err))
			return
		}
		metricAdminRoomCreated.Add(1)
		writeJSON(w, http.StatusCreated, room)
	}
}
