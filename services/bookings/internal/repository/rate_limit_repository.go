package repository

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitRepository counts submissions per key. It satisfies
// middleware.RateCounter.
type RateLimitRepository interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// incrWindow bumps the counter and gives it a TTL in the same step. A key that
// somehow lost its TTL gets one back on the next hit.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

type redisRateLimitRepository struct {
	client *redis.Client
}

func NewRateLimitRepository(client *redis.Client) RateLimitRepository {
	return &redisRateLimitRepository{client: client}
}

func (r *redisRateLimitRepository) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return incrWindow.Run(ctx, r.client, []string{key}, window.Milliseconds()).Int64()
}

type memoryRateLimitRepository struct {
	mu      sync.Mutex
	windows map[string]rateWindow
	now     func() time.Time
}

type rateWindow struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryRateLimitRepository() RateLimitRepository {
	return &memoryRateLimitRepository{windows: map[string]rateWindow{}, now: time.Now}
}

func (m *memoryRateLimitRepository) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = rateWindow{expiresAt: now.Add(window)}
	}
	w.count++
	m.windows[key] = w
	return w.count, nil
}
