package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const throttleKeyPrefix = "storefront:login:fail:"

type attemptBackend interface {
	blocked(ctx context.Context, key string) (bool, error)
	fail(ctx context.Context, key string) error
	reset(ctx context.Context, key string) error
}

// LoginThrottle limits failed logins per identifier. Backend errors are
// logged and let the attempt through.
type LoginThrottle struct {
	backend attemptBackend
	logger  *zap.Logger
}

// NewRedisLoginThrottle counts failures in a fixed window shared through
// Redis. The window starts at the first failure; once it lapses the count
// starts over.
func NewRedisLoginThrottle(client *redis.Client, maxAttempts int, window time.Duration, logger *zap.Logger) *LoginThrottle {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return newLoginThrottle(&redisAttempts{client: client, max: int64(maxAttempts), window: window}, logger)
}

// NewLocalLoginThrottle keeps per-identifier token buckets in process memory.
func NewLocalLoginThrottle(maxAttempts int, window time.Duration, logger *zap.Logger) *LoginThrottle {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return newLoginThrottle(&localAttempts{
		limit:   rate.Every(window / time.Duration(maxAttempts)),
		burst:   maxAttempts,
		ttl:     window,
		entries: make(map[string]*attemptBucket),
	}, logger)
}

func newLoginThrottle(backend attemptBackend, logger *zap.Logger) *LoginThrottle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginThrottle{backend: backend, logger: logger}
}

// Check returns ErrTooManyAttempts once the identifier has used its budget.
func (t *LoginThrottle) Check(ctx context.Context, identifier string) error {
	if t == nil {
		return nil
	}
	blocked, err := t.backend.blocked(ctx, throttleKey(identifier))
	if err != nil {
		t.logger.Warn("login throttle check failed", zap.Error(err))
		return nil
	}
	if blocked {
		return ErrTooManyAttempts
	}
	return nil
}

// Fail records a failed attempt.
func (t *LoginThrottle) Fail(ctx context.Context, identifier string) {
	if t == nil {
		return
	}
	if err := t.backend.fail(ctx, throttleKey(identifier)); err != nil {
		t.logger.Warn("login throttle record failed", zap.Error(err))
	}
}

// Reset clears the identifier's failures after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, identifier string) {
	if t == nil {
		return
	}
	if err := t.backend.reset(ctx, throttleKey(identifier)); err != nil {
		t.logger.Warn("login throttle reset failed", zap.Error(err))
	}
}

func throttleKey(identifier string) string {
	return throttleKeyPrefix + strings.ToLower(strings.TrimSpace(identifier))
}

type redisAttempts struct {
	client *redis.Client
	max    int64
	window time.Duration
}

func (r *redisAttempts) blocked(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return count >= r.max, nil
}

// failScript counts a failure and makes sure the key carries a TTL in the
// same step, so a counter can never outlive its window.
var failScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

func (r *redisAttempts) fail(ctx context.Context, key string) error {
	return failScript.Run(ctx, r.client, []string{key}, r.window.Milliseconds()).Err()
}

func (r *redisAttempts) reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

type attemptBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type localAttempts struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	entries map[string]*attemptBucket
}

func (l *localAttempts) blocked(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.entries[key]
	if b == nil {
		return false, nil
	}
	return b.lim.Tokens() < 1, nil
}

func (l *localAttempts) fail(_ context.Context, key string) error {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, v := range l.entries {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.entries, k)
		}
	}

	b := l.entries[key]
	if b == nil {
		b = &attemptBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = b
	}
	b.lastSeen = now
	b.lim.Allow()
	return nil
}

func (l *localAttempts) reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}
