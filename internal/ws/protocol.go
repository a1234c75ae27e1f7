package ws

import (
	"time"

	"playroom/internal/scores"
)

const ProtocolVersion = "1.0"

const (
	TypeScore  = "score"
	TypeFinish = "finish"
	TypeLeave  = "leave"

	TypeSessionStarted     = "session_started"
	TypeAck                = "ack"
	TypePlayerDisconnected = "player_disconnected"
	TypePlayerReconnected  = "player_reconnected"
	TypeOpponentUpdate     = "opponent_update"
)

// ClientMessage is every frame a player may send.
type ClientMessage struct {
	Type     string `json:"type"`
	Score    int64  `json:"score,omitempty"`
	KeepSeat bool   `json:"keep_seat,omitempty"`
}

type SessionStarted struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RoomID          string `json:"room_id"`
	UserID          string `json:"user_id"`
	HeartbeatMS     int64  `json:"heartbeat_ms"`
}

type Ack struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Op              string `json:"op"`
	Ok              bool   `json:"ok"`
	Error           string `json:"error,omitempty"`
}

type PresenceMessage struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	UserID          string    `json:"user_id"`
	RoomID          string    `json:"room_id"`
	At              time.Time `json:"at"`
}

type OpponentMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	scores.OpponentUpdate
}

// ServerMessage is the union of frames the server sends, for clients that
// decode before switching on Type.
type ServerMessage struct {
	Type       string     `json:"type"`
	Op         string     `json:"op,omitempty"`
	Ok         bool       `json:"ok,omitempty"`
	Error      string     `json:"error,omitempty"`
	RoomID     string     `json:"room_id,omitempty"`
	UserID     string     `json:"user_id,omitempty"`
	Username   string     `json:"username,omitempty"`
	Score      int64      `json:"score,omitempty"`
	Finished   bool       `json:"finished,omitempty"`
	FinishTime *time.Time `json:"finish_time,omitempty"`
	At         time.Time  `json:"at,omitempty"`
}
