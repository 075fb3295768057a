package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, _, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, wait, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.InDelta(t, float64(30*time.Second), float64(wait), float64(time.Millisecond))

	// other clients have their own bucket
	ok, _, _ = l.Allow(ctx, "10.0.0.2")
	assert.True(t, ok)

	// a refused request does not consume a token
	now = now.Add(31 * time.Second)
	ok, _, _ = l.Allow(ctx, "10.0.0.1")
	assert.True(t, ok)
	ok, _, _ = l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)
}

func TestLocalLimiterSweepsIdleVisitors(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLimiter(1, time.Minute)
	l.now = func() time.Time { return now }

	_, _, _ = l.Allow(ctx, "10.0.0.1")
	require.Len(t, l.visitors, 1)

	now = now.Add(2 * time.Minute)
	ok, _, _ := l.Allow(ctx, "10.0.0.2")
	assert.True(t, ok)
	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "10.0.0.2")
}

type countingWindow struct {
	calls int
}

func (w *countingWindow) Allow(_ context.Context, _ string, limit int, window time.Duration) (bool, time.Duration, error) {
	w.calls++
	if w.calls > limit {
		return false, window, nil
	}
	return true, 0, nil
}

func TestSharedLimiter(t *testing.T) {
	counter := &countingWindow{}
	l := NewSharedLimiter(counter, 1, time.Minute)

	ok, _, err := l.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, wait, err := l.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)
}
