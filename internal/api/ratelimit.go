package api

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter decides whether one more request from key is allowed, and if
// not, how long the caller should wait
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// WindowCounter is a shared fixed-window counter, implemented by the Redis client
type WindowCounter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

type sharedLimiter struct {
	counter WindowCounter
	limit   int
	window  time.Duration
}

// NewSharedLimiter limits across every instance through counter
func NewSharedLimiter(counter WindowCounter, limit int, window time.Duration) RateLimiter {
	return &sharedLimiter{counter: counter, limit: limit, window: window}
}

func (l *sharedLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return l.counter.Allow(ctx, key, l.limit, l.window)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter is an in-process token bucket per key. It is used when no
// shared counter is configured.
type LocalLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewLocalLimiter allows limit requests per window for each key
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		visitors: make(map[string]*visitor),
		every:    rate.Limit(float64(limit) / window.Seconds()),
		burst:    limit,
		idle:     window,
		now:      time.Now,
	}
}

func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, l.idle, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

// sweep drops visitors idle for a whole window, at most once per window
func (l *LocalLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	l.lastSweep = now
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) >= l.idle {
			delete(l.visitors, key)
		}
	}
}
