package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"playroom/internal/session"
	"playroom/internal/ws"

	"github.com/gorilla/websocket"
)

// Live is an open live-session socket.
type Live struct {
	conn *websocket.Conn
}

// DialLive opens the live socket for roomID. The server starts the
// heartbeat as soon as the socket is up.
func (a *API) DialLive(ctx context.Context, roomID string) (*Live, error) {
	url := strings.Replace(strings.TrimRight(a.baseURL, "/"), "http", "ws", 1) + "/api/rooms/" + roomID + "/live"
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, http.Header{"Authorization": {"Bearer " + a.token}})
	if err != nil {
		if resp != nil && resp.Body != nil {
			defer resp.Body.Close()
			var e apiError
			if json.NewDecoder(resp.Body).Decode(&e) == nil {
				if known := session.FromCode(e.Error); known != nil {
					return nil, known
				}
			}
		}
		return nil, session.Unavailable(err)
	}
	return &Live{conn: conn}, nil
}

func (l *Live) Next() (ws.ServerMessage, error) {
	var msg ws.ServerMessage
	err := l.conn.ReadJSON(&msg)
	return msg, err
}

func (l *Live) Send(msg ws.ClientMessage) error {
	return l.conn.WriteJSON(msg)
}

func (l *Live) Score(score int64) error {
	return l.Send(ws.ClientMessage{Type: ws.TypeScore, Score: score})
}

func (l *Live) Finish() error {
	return l.Send(ws.ClientMessage{Type: ws.TypeFinish})
}

// Leave asks the server to end the session. Read until Next fails to see the
// server close the socket.
func (l *Live) Leave(keepSeat bool) error {
	return l.Send(ws.ClientMessage{Type: ws.TypeLeave, KeepSeat: keepSeat})
}

func (l *Live) Close() error {
	return l.conn.Close()
}
