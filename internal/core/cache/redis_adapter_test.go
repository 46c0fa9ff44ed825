package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) (*RedisAdapter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	adapter, err := NewRedisAdapter("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	return adapter, mr
}

func TestRedisAdapter_GetSet(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()

	err := adapter.Set(ctx, "cart:user:1", []byte(`{"items":[]}`), 10*time.Second)
	assert.NoError(t, err)

	got, err := adapter.Get(ctx, "cart:user:1")
	assert.NoError(t, err)
	assert.Equal(t, []byte(`{"items":[]}`), got)
}

func TestRedisAdapter_GetNotFound(t *testing.T) {
	adapter, _ := newTestAdapter(t)

	_, err := adapter.Get(context.Background(), "non_existent_key")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisAdapter_SetNX(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()

	ok, err := adapter.SetNX(ctx, "idem:order:u1:k1", []byte("pending"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = adapter.SetNX(ctx, "idem:order:u1:k1", []byte("other"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	val, err := mr.Get("idem:order:u1:k1")
	require.NoError(t, err)
	assert.Equal(t, "pending", val)
}

func TestRedisAdapter_Delete(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "delete_test", []byte("value"), 0))
	assert.NoError(t, adapter.Delete(ctx, "delete_test"))

	_, err := adapter.Get(ctx, "delete_test")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisAdapter_TTL(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "ttl_test", []byte("expires_soon"), 1*time.Second))

	_, err := adapter.Get(ctx, "ttl_test")
	assert.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = adapter.Get(ctx, "ttl_test")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisAdapter_Ping(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	assert.NoError(t, adapter.Ping(context.Background()))
}

func TestRedisAdapter_InvalidURL(t *testing.T) {
	_, err := NewRedisAdapter("invalid://url")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")
}
