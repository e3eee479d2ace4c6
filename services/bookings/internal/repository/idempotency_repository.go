package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyRepository caches replayable responses keyed by a hashed
// Idempotency-Key. It satisfies middleware.IdempotencyStore.
type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type redisIdempotencyRepository struct {
	client *redis.Client
}

func NewIdempotencyRepository(client *redis.Client) IdempotencyRepository {
	return &redisIdempotencyRepository{client: client}
}

// Get returns "" with no error when nothing is cached for key.
func (r *redisIdempotencyRepository) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (r *redisIdempotencyRepository) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	// SETNX keeps the first answer when two requests race.
	return r.client.SetNX(ctx, key, value, ttl).Err()
}

type memoryIdempotencyRepository struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
	now     func() time.Time
}

type idempotencyEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryIdempotencyRepository is used when no Redis is configured.
func NewMemoryIdempotencyRepository() IdempotencyRepository {
	return &memoryIdempotencyRepository{entries: map[string]idempotencyEntry{}, now: time.Now}
}

func (m *memoryIdempotencyRepository) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", nil
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return "", nil
	}
	return e.value, nil
}

func (m *memoryIdempotencyRepository) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && m.now().Before(e.expiresAt) {
		return nil
	}
	m.entries[key] = idempotencyEntry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}
