package reconnect

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisSlotPrefix = "playroom:capability:"

// RedisSlot keeps one capability per device under a single key, for bots
// that run on disposable hosts. The key expires with the capability.
type RedisSlot struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisSlot(client *redis.Client, deviceID string, ttl time.Duration) *RedisSlot {
	return &RedisSlot{client: client, key: redisSlotPrefix + deviceID, ttl: ttl}
}

func (s *RedisSlot) Load(ctx context.Context) (*Capability, error) {
	b, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c Capability
	if err := json.Unmarshal(b, &c); err != nil || !c.Valid() {
		return nil, s.Clear(ctx)
	}
	return &c, nil
}

func (s *RedisSlot) Save(ctx context.Context, c Capability) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, b, s.ttl).Err()
}

func (s *RedisSlot) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
