package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const throttleWindow = 15 * time.Minute

func newRedisThrottle(t *testing.T, maxAttempts int) (*LoginThrottle, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLoginThrottle(client, maxAttempts, throttleWindow, zaptest.NewLogger(t)), srv
}

func TestRedisThrottle(t *testing.T) {
	const email = "ada@example.com"
	key := throttleKey(email)

	tests := map[string]func(t *testing.T, th *LoginThrottle, srv *miniredis.Miniredis){
		"blocks once the budget is spent": func(t *testing.T, th *LoginThrottle, srv *miniredis.Miniredis) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				require.NoError(t, th.Check(ctx, email), "attempt %d", i)
				th.Fail(ctx, email)
			}
			assert.ErrorIs(t, th.Check(ctx, email), ErrTooManyAttempts)
			assert.ErrorIs(t, th.Check(ctx, " ADA@example.com"), ErrTooManyAttempts)
			assert.NoError(t, th.Check(ctx, "grace@example.com"))
		},
		"counter carries the window as ttl": func(t *testing.T, th *LoginThrottle, srv *miniredis.Miniredis) {
			ctx := context.Background()
			th.Fail(ctx, email)
			assert.Equal(t, throttleWindow, srv.TTL(key))

			srv.FastForward(time.Minute)
			th.Fail(ctx, email)
			assert.Equal(t, throttleWindow-time.Minute, srv.TTL(key), "later failures keep the window start")
		},
		"window lapse unblocks": func(t *testing.T, th *LoginThrottle, srv *miniredis.Miniredis) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				th.Fail(ctx, email)
			}
			require.ErrorIs(t, th.Check(ctx, email), ErrTooManyAttempts)

			srv.FastForward(throttleWindow + time.Second)
			assert.NoError(t, th.Check(ctx, email))
		},
		"counter without ttl gets one on next failure": func(t *testing.T, th *LoginThrottle, srv *miniredis.Miniredis) {
			ctx := context.Background()
			require.NoError(t, srv.Set(key, "7"))
			require.Zero(t, srv.TTL(key))

			th.Fail(ctx, email)
			assert.Equal(t, throttleWindow, srv.TTL(key))

			srv.FastForward(365 * 24 * time.Hour)
			assert.NoError(t, th.Check(ctx, email))
		},
		"reset clears the counter": func(t *testing.T, th *LoginThrottle, srv *miniredis.Miniredis) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				th.Fail(ctx, email)
			}
			th.Reset(ctx, email)
			assert.False(t, srv.Exists(key))
			assert.NoError(t, th.Check(ctx, email))
		},
		"backend outage fails open": func(t *testing.T, th *LoginThrottle, srv *miniredis.Miniredis) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				th.Fail(ctx, email)
			}
			srv.Close()

			assert.NoError(t, th.Check(ctx, email))
			th.Fail(ctx, email)
			th.Reset(ctx, email)
		},
	}

	for name, run := range tests {
		t.Run(name, func(t *testing.T) {
			th, srv := newRedisThrottle(t, 3)
			run(t, th, srv)
		})
	}
}

func TestRedisThrottleDefaults(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	th := NewRedisLoginThrottle(client, 0, 0, nil)
	ctx := context.Background()

	require.NoError(t, th.Check(ctx, "ada@example.com"))
	th.Fail(ctx, "ada@example.com")
	assert.ErrorIs(t, th.Check(ctx, "ada@example.com"), ErrTooManyAttempts)
	assert.Equal(t, time.Minute, srv.TTL(throttleKey("ada@example.com")))
}
