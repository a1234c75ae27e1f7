package store

import (
	"errors"
	"testing"
)

func TestParseChangeMembership(t *testing.T) {
	raw := `{"kind":"membership","payload":{"room_id":"r1","user_id":"u1","username":"alice","connection_status":"connected","score":120,"finished":false,"finish_time":null,"last_seen":"2026-01-02T03:04:05.123456+00:00","updated_at":"2026-01-02T03:04:05+00:00"}}`
	c, err := ParseChange([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Kind != KindMembership || c.Membership == nil {
		t.Fatalf("unexpected change: %+v", c)
	}
	if c.Membership.Score != 120 || c.Membership.FinishTime != nil || c.RoomID() != "r1" {
		t.Fatalf("unexpected membership: %+v", c.Membership)
	}
}

func TestParseChangePresence(t *testing.T) {
	raw := `{"kind":"presence","payload":{"user_id":"u1","room_id":"r1","status":"disconnected","last_heartbeat":"2026-01-02T03:04:05Z","created_at":"2026-01-02T03:04:05Z"}}`
	c, err := ParseChange([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Presence.Status != PresenceDisconnected || c.RoomID() != "r1" {
		t.Fatalf("unexpected presence: %+v", c.Presence)
	}
}

func TestParseChangeRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"not json":          `{`,
		"unknown kind":      `{"kind":"ledger","payload":{}}`,
		"missing payload":   `{"kind":"room"}`,
		"room without id":   `{"kind":"room","payload":{"status":"active"}}`,
		"membership no key": `{"kind":"membership","payload":{"room_id":"r1"}}`,
		"wrong type":        `{"kind":"presence","payload":{"user_id":7}}`,
	}
	for name, raw := range cases {
		if _, err := ParseChange([]byte(raw)); !errors.Is(err, ErrBadChange) {
			t.Fatalf("%s: err = %v, want ErrBadChange", name, err)
		}
	}
}

func TestMembershipChangeStripsToken(t *testing.T) {
	c := MembershipChange(Membership{RoomID: "r", UserID: "u", ReconnectToken: "secret"})
	if c.Membership.ReconnectToken != "" {
		t.Fatal("token leaked into change")
	}
}
