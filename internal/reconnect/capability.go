package reconnect

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"playroom/internal/store"
)

// DefaultTTL is how long a cached capability stays redeemable.
const DefaultTTL = 60 * time.Second

const tokenBytes = 32

var ErrNoCapability = errors.New("no_capability")

// Capability proves the right to resume one seat. Only its owner sees it.
type Capability struct {
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

func (c Capability) Valid() bool {
	return c.RoomID != "" && c.UserID != "" && c.Token != "" && !c.IssuedAt.IsZero()
}

// Expired reports whether more than ttl has passed since issue.
func (c Capability) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return now.Sub(c.IssuedAt) > ttl
}

// NewToken returns 256 random bits, hex encoded.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Issue builds the capability the client caches for m.
func Issue(m store.Membership, now time.Time) Capability {
	return Capability{
		RoomID:   m.RoomID,
		UserID:   m.UserID,
		Token:    m.ReconnectToken,
		IssuedAt: now,
	}
}
