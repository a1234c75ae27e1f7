// Package ws serves the live session socket: the server runs the player's
// heartbeat for as long as the socket is open and pushes presence and
// opponent updates down it.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"playroom/internal/auth"
	"playroom/internal/presence"
	"playroom/internal/scores"
	"playroom/internal/session"
	"playroom/internal/store"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	sendBuffer      = 32
	writeWait       = 10 * time.Second
	teardownTimeout = 5 * time.Second
	maxMessageBytes = 4096
)

type Server struct {
	store     store.Backend
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

func NewServer(st store.Backend, heartbeat time.Duration) *Server {
	if heartbeat <= 0 {
		heartbeat = presence.DefaultInterval
	}
	return &Server{
		store:     st,
		heartbeat: heartbeat,
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	roomID  string
	userID  string
	tracker *presence.Tracker
	relay   *scores.Relay
	log     zerolog.Logger

	leave *presence.TeardownOptions
}

// Admit checks that id holds a seat in roomID. It writes nothing.
func (s *Server) Admit(ctx context.Context, id auth.Identity, roomID string) error {
	room, err := s.store.GetRoom(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return session.ErrRoomNotFound
	}
	if err != nil {
		return session.Unavailable(err)
	}
	if room.Status == store.RoomFinished {
		return session.ErrRoomFinished
	}
	_, err = s.store.GetMembership(ctx, roomID, id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return session.ErrUnauthorized
	}
	if err != nil {
		return session.Unavailable(err)
	}
	return nil
}

// HandleLive upgrades the request and runs the session until the socket
// closes. Callers run Admit first.
func (s *Server) HandleLive(w http.ResponseWriter, r *http.Request, id auth.Identity, roomID string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(maxMessageBytes)
	metricLiveConnectionsTotal.Add(1)
	metricLiveConnectionsActive.Add(1)
	defer metricLiveConnectionsActive.Add(-1)

	logger := log.With().Str("component", "ws").Str("room_id", roomID).Str("user_id", id.UserID).Logger()
	h := session.Open(s.store, id, session.WithLogger(logger))
	defer h.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &Client{
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		roomID:  roomID,
		userID:  id.UserID,
		tracker: presence.NewTracker(h, s.heartbeat),
		relay:   scores.NewRelay(h),
		log:     logger,
	}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(c)
	}()

	forwardDone := make(chan struct{})
	feed, err := s.start(ctx, c)
	if err != nil {
		logger.Warn().Err(err).Msg("live session start failed")
		c.enqueue(Ack{Type: TypeAck, ProtocolVersion: ProtocolVersion, Op: TypeSessionStarted, Error: session.Code(err)})
		close(forwardDone)
	} else {
		go func() {
			defer close(forwardDone)
			s.forward(c, feed.watch, feed.scores)
		}()
		c.enqueue(SessionStarted{
			Type:            TypeSessionStarted,
			ProtocolVersion: ProtocolVersion,
			RoomID:          roomID,
			UserID:          id.UserID,
			HeartbeatMS:     s.heartbeat.Milliseconds(),
		})
		s.readLoop(ctx, c)
	}

	opts := presence.TeardownOptions{RoomID: roomID}
	if c.leave != nil {
		opts.KeepSeat = c.leave.KeepSeat
	}
	tctx, tcancel := context.WithTimeout(context.Background(), teardownTimeout)
	if err := c.tracker.Teardown(tctx, opts); err != nil {
		logger.Warn().Err(err).Msg("live session teardown failed")
	}
	tcancel()
	if feed != nil {
		feed.scores.Close()
	}
	<-forwardDone
	close(c.send)
	<-writerDone
	_ = conn.Close()
	logger.Info().Bool("left", c.leave != nil).Bool("keep_seat", opts.KeepSeat).Msg("live session closed")
}

type liveFeeds struct {
	watch  *presence.Watch
	scores *scores.Feed
}

func (s *Server) start(ctx context.Context, c *Client) (*liveFeeds, error) {
	if err := c.tracker.StartHeartbeat(ctx, c.roomID, c.userID); err != nil {
		return nil, err
	}
	watch, err := c.tracker.Subscribe(ctx, c.roomID)
	if err != nil {
		return nil, err
	}
	feed, err := c.relay.Subscribe(ctx, c.roomID)
	if err != nil {
		return nil, err
	}
	return &liveFeeds{watch: watch, scores: feed}, nil
}

func (s *Server) readLoop(ctx context.Context, c *Client) {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in ClientMessage
		if err := json.Unmarshal(msg, &in); err != nil {
			c.ack("", session.ErrInvalidRequest)
			continue
		}
		switch in.Type {
		case TypeScore:
			c.ack(in.Type, c.relay.Publish(ctx, c.roomID, c.userID, in.Score))
		case TypeFinish:
			c.ack(in.Type, c.relay.PublishFinish(ctx, c.roomID, c.userID))
		case TypeLeave:
			c.leave = &presence.TeardownOptions{KeepSeat: in.KeepSeat}
			c.ack(in.Type, nil)
			return
		default:
			c.ack(in.Type, session.ErrInvalidRequest)
		}
	}
}

// forward pushes events until both the watch and the score feed close.
func (s *Server) forward(c *Client, watch *presence.Watch, feed *scores.Feed) {
	events, updates := watch.Events(), feed.Updates()
	for events != nil || updates != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.enqueue(PresenceMessage{
				Type:            string(ev.Kind),
				ProtocolVersion: ProtocolVersion,
				UserID:          ev.UserID,
				RoomID:          ev.RoomID,
				At:              ev.At,
			})
		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			c.enqueue(OpponentMessage{Type: TypeOpponentUpdate, ProtocolVersion: ProtocolVersion, OpponentUpdate: u})
		}
	}
}

func (s *Server) writeLoop(c *Client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.log.Debug().Err(err).Msg("live write failed")
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (c *Client) ack(op string, err error) {
	a := Ack{Type: TypeAck, ProtocolVersion: ProtocolVersion, Op: op, Ok: err == nil}
	if err != nil {
		a.Error = session.Code(err)
	}
	c.enqueue(a)
}

// enqueue drops the frame when the writer has fallen behind.
func (c *Client) enqueue(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
		metricLiveSendDropped.Add(1)
	}
}
