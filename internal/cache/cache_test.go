package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCacheWithClient(client)
}

func TestCacheSetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	err := c.Set(ctx, "address:0xabc", "acc_123", time.Minute)
	assert.NoError(t, err)

	var got string
	err = c.Get(ctx, "address:0xabc", &got)
	assert.NoError(t, err)
	assert.Equal(t, "acc_123", got)
}

func TestCacheGetMiss(t *testing.T) {
	c := newTestCache(t)

	var got string
	err := c.Get(context.Background(), "missing", &got)
	assert.Error(t, err)
}

func TestCacheDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	assert.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	assert.NoError(t, c.Delete(ctx, "k"))
}
