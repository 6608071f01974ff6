package kvstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the small key-value surface the services need: counters with a
// time-to-live
type Store interface {
	// Incr increments key and returns the new value. The ttl is applied when
	// the key is created and never extended afterwards.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Close() error
}

// RedisStore is the production Store
type RedisStore struct {
	client *redis.Client
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and pings it
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

// Incr implements Store. INCR and EXPIRE NX travel in one MULTI/EXEC so a
// counter can never be left without its ttl.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		if ttl > 0 {
			pipe.ExpireNX(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore is a process-local Store for development and tests
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	counter int64
	expires time.Time
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. now may be nil to use the wall clock.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return e, false
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return e, false
	}
	return e, true
}

// Incr implements Store
func (s *MemoryStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		e = memoryEntry{}
		if ttl > 0 {
			e.expires = s.now().Add(ttl)
		}
	}
	e.counter++
	s.entries[key] = e
	return e.counter, nil
}

// Close implements Store
func (s *MemoryStore) Close() error {
	return nil
}
