package reconnect

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisSlot(t *testing.T, device string) (*RedisSlot, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlot(client, device, DefaultTTL), mr
}

func TestRedisSlotRoundTrip(t *testing.T) {
	ctx := context.Background()
	slot, mr := newRedisSlot(t, "bot-1")

	got, err := slot.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, slot.Save(ctx, Capability{RoomID: "r1", UserID: "u", Token: "t1", IssuedAt: now}))
	require.NoError(t, slot.Save(ctx, Capability{RoomID: "r2", UserID: "u", Token: "t2", IssuedAt: now}))

	got, err = slot.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r2", got.RoomID)
	assert.Equal(t, "t2", got.Token)
	assert.True(t, got.IssuedAt.Equal(now))
	assert.Equal(t, DefaultTTL, mr.TTL(redisSlotPrefix+"bot-1"))

	require.NoError(t, slot.Clear(ctx))
	got, err = slot.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSlotKeyExpires(t *testing.T) {
	ctx := context.Background()
	slot, mr := newRedisSlot(t, "bot-2")
	require.NoError(t, slot.Save(ctx, Capability{RoomID: "r", UserID: "u", Token: "t", IssuedAt: time.Now()}))

	mr.FastForward(DefaultTTL + time.Second)
	got, err := slot.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSlotDevicesAreIsolated(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	a := NewRedisSlot(client, "a", DefaultTTL)
	b := NewRedisSlot(client, "b", DefaultTTL)
	require.NoError(t, a.Save(ctx, Capability{RoomID: "r", UserID: "ua", Token: "t", IssuedAt: time.Now()}))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSlotCorruptValueIsAbsent(t *testing.T) {
	ctx := context.Background()
	slot, mr := newRedisSlot(t, "bot-3")
	require.NoError(t, mr.Set(redisSlotPrefix+"bot-3", "garbage"))

	got, err := slot.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists(redisSlotPrefix+"bot-3"))
}
