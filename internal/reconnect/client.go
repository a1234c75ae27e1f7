package reconnect

import (
	"context"

	"playroom/internal/session"
)

// Client resumes the seat remembered in the local cache.
type Client struct {
	cache    *Cache
	redeemer Redeemer
}

func NewClient(cache *Cache, redeemer Redeemer) *Client {
	return &Client{cache: cache, redeemer: redeemer}
}

// Remember caches capab, replacing any capability for another room.
func (c *Client) Remember(ctx context.Context, capab Capability) error {
	return c.cache.SaveLocal(ctx, capab)
}

// Resume redeems the cached capability once. Any failure clears the slot so
// the next launch starts from a fresh join.
func (c *Client) Resume(ctx context.Context) (*Resumed, error) {
	capab, err := c.cache.slot.Load(ctx)
	if err != nil {
		return nil, err
	}
	if capab == nil {
		return nil, ErrNoCapability
	}
	if capab.Expired(c.cache.now(), c.cache.ttl) {
		if err := c.cache.ClearLocal(ctx); err != nil {
			return nil, err
		}
		return nil, session.ErrCapabilityExpired
	}
	res, err := c.redeemer.Redeem(ctx, *capab)
	if err != nil {
		_ = c.cache.ClearLocal(ctx)
		return nil, err
	}
	if err := c.cache.SaveLocal(ctx, res.Capability); err != nil {
		return res, err
	}
	return res, nil
}
