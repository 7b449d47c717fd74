package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator records externally-applied event ids so retried or overlapping
// ingestion runs skip work already done. Entries expire after the configured
// TTL; the durable existence check in the ticket store backstops expiry.
type Deduplicator interface {
	// IsExecuted reports whether the key was already marked within the namespace.
	IsExecuted(ctx context.Context, namespace, key string) (bool, error)
	// Save marks the key executed. Callers mark only after the guarded side
	// effect succeeded, so a crash in between re-runs the work rather than
	// losing it.
	Save(ctx context.Context, namespace, key string) error
}

type redisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis builds a Redis-backed deduplicator with the given entry TTL.
func NewRedis(client *redis.Client, ttl time.Duration) Deduplicator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &redisDeduplicator{client: client, ttl: ttl}
}

func (d *redisDeduplicator) IsExecuted(ctx context.Context, namespace, key string) (bool, error) {
	n, err := d.client.Exists(ctx, entryKey(namespace, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *redisDeduplicator) Save(ctx context.Context, namespace, key string) error {
	return d.client.Set(ctx, entryKey(namespace, key), "1", d.ttl).Err()
}

func entryKey(namespace, key string) string {
	return "dedup:" + namespace + ":" + key
}

// Memory is an in-process deduplicator used in tests and when Redis is not
// configured. Entries never expire.
type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemory builds an in-memory deduplicator.
func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

func (m *Memory) IsExecuted(_ context.Context, namespace, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[entryKey(namespace, key)]
	return ok, nil
}

func (m *Memory) Save(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[entryKey(namespace, key)] = struct{}{}
	return nil
}
