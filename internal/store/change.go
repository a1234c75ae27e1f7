package store

import (
	"encoding/json"
	"errors"
	"fmt"
)

type ChangeKind string

const (
	KindRoom       ChangeKind = "room"
	KindMembership ChangeKind = "membership"
	KindPresence   ChangeKind = "presence"
)

var ErrBadChange = errors.New("bad_change")

// Change is one row change on the feed. Exactly one payload pointer is set,
// matching Kind.
type Change struct {
	Kind       ChangeKind
	Room       *Room
	Membership *Membership
	Presence   *Presence
}

func RoomChange(r Room) Change { return Change{Kind: KindRoom, Room: &r} }

func MembershipChange(m Membership) Change {
	m.ReconnectToken = ""
	return Change{Kind: KindMembership, Membership: &m}
}

func PresenceChange(p Presence) Change { return Change{Kind: KindPresence, Presence: &p} }

// RoomID is the room the change belongs to, used for feed scoping.
func (c Change) RoomID() string {
	switch c.Kind {
	case KindRoom:
		if c.Room != nil {
			return c.Room.ID
		}
	case KindMembership:
		if c.Membership != nil {
			return c.Membership.RoomID
		}
	case KindPresence:
		if c.Presence != nil {
			return c.Presence.RoomID
		}
	}
	return ""
}

type changeEnvelope struct {
	Kind    ChangeKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// ParseChange decodes a feed notification ({"kind": ..., "payload": row}) into
// a typed Change, rejecting unknown kinds and rows missing their keys.
func ParseChange(raw []byte) (Change, error) {
	var env changeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Change{}, fmt.Errorf("%w: %v", ErrBadChange, err)
	}
	if len(env.Payload) == 0 {
		return Change{}, fmt.Errorf("%w: empty payload", ErrBadChange)
	}
	switch env.Kind {
	case KindRoom:
		var r Room
		if err := json.Unmarshal(env.Payload, &r); err != nil {
			return Change{}, fmt.Errorf("%w: room: %v", ErrBadChange, err)
		}
		if r.ID == "" {
			return Change{}, fmt.Errorf("%w: room without id", ErrBadChange)
		}
		return RoomChange(r), nil
	case KindMembership:
		var m Membership
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return Change{}, fmt.Errorf("%w: membership: %v", ErrBadChange, err)
		}
		if m.RoomID == "" || m.UserID == "" {
			return Change{}, fmt.Errorf("%w: membership without key", ErrBadChange)
		}
		return MembershipChange(m), nil
	case KindPresence:
		var p Presence
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Change{}, fmt.Errorf("%w: presence: %v", ErrBadChange, err)
		}
		if p.UserID == "" {
			return Change{}, fmt.Errorf("%w: presence without user", ErrBadChange)
		}
		return PresenceChange(p), nil
	default:
		return Change{}, fmt.Errorf("%w: unknown kind %q", ErrBadChange, env.Kind)
	}
}
