package store

import "time"

const (
	RoomWaiting  = "waiting"
	RoomActive   = "active"
	RoomFinished = "finished"

	Connected    = "connected"
	Disconnected = "disconnected"

	PresenceOnline       = "online"
	PresenceDisconnected = "disconnected"
)

type Room struct {
	ID             string    `json:"id"`
	GameType       string    `json:"game_type"`
	Status         string    `json:"status"`
	MaxPlayers     int       `json:"max_players"`
	CurrentPlayers int       `json:"current_players"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (r Room) Full() bool {
	return r.CurrentPlayers >= r.MaxPlayers
}

// Membership is a user's seat in a room. ReconnectToken never leaves the
// server in JSON; it is handed out only inside a capability.
type Membership struct {
	RoomID           string     `json:"room_id"`
	UserID           string     `json:"user_id"`
	Username         string     `json:"username"`
	ConnectionStatus string     `json:"connection_status"`
	ReconnectToken   string     `json:"-"`
	Score            int64      `json:"score"`
	Finished         bool       `json:"finished"`
	FinishTime       *time.Time `json:"finish_time,omitempty"`
	LastSeen         time.Time  `json:"last_seen"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Presence is account-wide: one row per user, RoomID is the room touched last.
type Presence struct {
	UserID        string    `json:"user_id"`
	RoomID        string    `json:"room_id"`
	Status        string    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	CreatedAt     time.Time `json:"created_at"`
}
