package reconnect

import (
	"context"
	"time"
)

// Cache is the client-local view of the slot with expiry applied.
type Cache struct {
	slot Slot
	ttl  time.Duration
	now  func() time.Time
}

func NewCache(slot Slot, ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{slot: slot, ttl: ttl, now: now}
}

func (c *Cache) TTL() time.Duration { return c.ttl }

// LoadLocal returns nil when the slot is empty or holds an expired
// capability; an expired one is cleared.
func (c *Cache) LoadLocal(ctx context.Context) (*Capability, error) {
	capab, err := c.slot.Load(ctx)
	if err != nil || capab == nil {
		return nil, err
	}
	if capab.Expired(c.now(), c.ttl) {
		return nil, c.slot.Clear(ctx)
	}
	return capab, nil
}

func (c *Cache) SaveLocal(ctx context.Context, capab Capability) error {
	return c.slot.Save(ctx, capab)
}

func (c *Cache) ClearLocal(ctx context.Context) error {
	return c.slot.Clear(ctx)
}
