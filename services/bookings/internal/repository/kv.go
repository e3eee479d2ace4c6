package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by a KeyValue when the key was never written.
var ErrNotFound = errors.New("key not found")

// KeyValue is the single-key string storage the demo store sits on.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type memoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() KeyValue {
	return &memoryKV{data: map[string]string{}}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type redisKV struct {
	client *redis.Client
}

func NewRedisKV(client *redis.Client) KeyValue {
	return &redisKV{client: client}
}

func (r *redisKV) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *redisKV) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *redisKV) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.client.Del(ctx, key).Err()
}

type postgresKV struct {
	pool *pgxpool.Pool
}

// NewPostgresKV stores each key as one row of demo_kv, creating the table on
// first use.
func NewPostgresKV(ctx context.Context, pool *pgxpool.Pool) (KeyValue, error) {
	const q = `CREATE TABLE IF NOT EXISTS demo_kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to create demo_kv table: %w", err)
	}
	return &postgresKV{pool: pool}, nil
}

func (p *postgresKV) Get(ctx context.Context, key string) (string, error) {
	const q = `SELECT value FROM demo_kv WHERE key=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var v string
	err := p.pool.QueryRow(ctx, q, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}

func (p *postgresKV) Set(ctx context.Context, key, value string) error {
	const q = `INSERT INTO demo_kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := p.pool.Exec(ctx, q, key, value)
	return err
}

func (p *postgresKV) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM demo_kv WHERE key=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := p.pool.Exec(ctx, q, key)
	return err
}
