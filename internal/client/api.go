// Package client talks to the session server over HTTP and the live socket.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"playroom/internal/auth"
	"playroom/internal/reconnect"
	"playroom/internal/roomjoin"
	"playroom/internal/session"
	"playroom/internal/store"

	"github.com/go-resty/resty/v2"
)

// RoomView mirrors GET /api/rooms/{room_id}.
type RoomView struct {
	Room    store.Room         `json:"room"`
	Members []store.Membership `json:"members"`
}

type apiError struct {
	Error string `json:"error"`
}

// API is a player's client. Reconnect goes through a client without
// retries so a capability is redeemed at most once per call.
type API struct {
	baseURL string
	token   string
	http    *resty.Client
	once    *resty.Client
}

var _ reconnect.Redeemer = (*API)(nil)

func New(baseURL, token string) *API {
	build := func(retries int) *resty.Client {
		return resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10*time.Second).
			SetRetryCount(retries).
			SetRetryWaitTime(200*time.Millisecond).
			SetRetryMaxWaitTime(2*time.Second).
			SetAuthToken(token).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json")
	}
	return &API{baseURL: baseURL, token: token, http: build(2), once: build(0)}
}

func (a *API) Join(ctx context.Context, roomID string) (*roomjoin.Result, error) {
	var out roomjoin.Result
	resp, err := a.http.R().
		SetContext(ctx).
		SetPathParam("room_id", roomID).
		SetBody(map[string]any{}).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/api/rooms/{room_id}/join")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Redeem(ctx context.Context, c reconnect.Capability) (*reconnect.Resumed, error) {
	var out reconnect.Resumed
	resp, err := a.once.R().
		SetContext(ctx).
		SetPathParam("room_id", c.RoomID).
		SetBody(c).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/api/rooms/{room_id}/reconnect")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Room(ctx context.Context, roomID string) (*RoomView, error) {
	var out RoomView
	resp, err := a.http.R().
		SetContext(ctx).
		SetPathParam("room_id", roomID).
		SetResult(&out).
		SetError(&apiError{}).
		Get("/api/rooms/{room_id}")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Heartbeat(ctx context.Context, roomID string) error {
	return a.post(ctx, roomID, "heartbeat", map[string]any{})
}

func (a *API) PublishScore(ctx context.Context, roomID string, score int64) error {
	return a.post(ctx, roomID, "score", map[string]any{"score": score})
}

func (a *API) Finish(ctx context.Context, roomID string) error {
	return a.post(ctx, roomID, "finish", map[string]any{})
}

func (a *API) Leave(ctx context.Context, roomID string, keepSeat bool) error {
	return a.post(ctx, roomID, "leave", map[string]any{"keep_seat": keepSeat})
}

func (a *API) post(ctx context.Context, roomID, action string, body any) error {
	resp, err := a.http.R().
		SetContext(ctx).
		SetPathParam("room_id", roomID).
		SetBody(body).
		SetError(&apiError{}).
		Post("/api/rooms/{room_id}/" + action)
	return check(resp, err)
}

// CreateRoom calls the admin seeding hook.
func (a *API) CreateRoom(ctx context.Context, adminKey, gameType string, maxPlayers int) (*store.Room, error) {
	var out store.Room
	resp, err := a.once.R().
		SetContext(ctx).
		SetHeader("X-Admin-Key", adminKey).
		SetBody(map[string]any{"game_type": gameType, "max_players": maxPlayers}).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/api/admin/rooms")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// check turns a transport failure or an error body into a session error.
func check(resp *resty.Response, err error) error {
	if err != nil {
		return session.Unavailable(err)
	}
	if !resp.IsError() {
		return nil
	}
	code := ""
	if e, ok := resp.Error().(*apiError); ok {
		code = e.Error
	}
	if known := session.FromCode(code); known != nil {
		return known
	}
	switch {
	case code == auth.ErrMissingToken.Error(), code == auth.ErrInvalidToken.Error():
		return fmt.Errorf("%w: %s", session.ErrUnauthorized, code)
	case resp.StatusCode() >= http.StatusInternalServerError:
		return session.Unavailable(fmt.Errorf("server returned %d", resp.StatusCode()))
	default:
		return errors.New(resp.Status())
	}
}
