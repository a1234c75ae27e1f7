package presence

import "time"

type EventKind string

const (
	EventDisconnected EventKind = "player_disconnected"
	EventReconnected  EventKind = "player_reconnected"
)

// Event reports another player's presence transition in a watched room.
type Event struct {
	Kind   EventKind `json:"type"`
	UserID string    `json:"user_id"`
	RoomID string    `json:"room_id"`
	At     time.Time `json:"at"`
}
