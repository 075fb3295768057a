package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestClient(t *testing.T) *Client {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires redis (set TEST_REDIS_ADDR)")
	}

	c, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestAllowFixedWindow(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	for i := 0; i < 3; i++ {
		ok, _, err := c.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, retry, err := c.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, retry > 0 && retry <= time.Minute)
}

func TestLockTokenOwnership(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	token, err := c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	second, err := c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, second)

	// A stale token does not release someone else's lock
	require.NoError(t, c.ReleaseLock(ctx, key, "stale"))
	second, _ = c.AcquireLock(ctx, key, time.Minute)
	assert.Empty(t, second)

	require.NoError(t, c.ReleaseLock(ctx, key, token))
	second, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, second)
}
