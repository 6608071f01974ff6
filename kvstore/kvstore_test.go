package kvstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStoreIncrExpires(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(clock.Now)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.Incr(ctx, "k", time.Minute)
		if err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		if got != want {
			t.Errorf("Expected %d, got %d", want, got)
		}
		clock.Add(10 * time.Second)
	}

	// The ttl is fixed at creation, so 60s after the first increment the key is gone.
	clock.Add(30 * time.Second)
	got, _ := s.Incr(ctx, "k", time.Minute)
	if got != 1 {
		t.Errorf("Expected the counter to restart after expiry, got %d", got)
	}
}

// txRecorder answers pipelined commands locally and keeps what was sent
type txRecorder struct {
	mu      sync.Mutex
	counter int64
	batches [][]string
}

func (h *txRecorder) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *txRecorder) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (h *txRecorder) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		var batch []string
		for _, cmd := range cmds {
			switch c := cmd.(type) {
			case *redis.IntCmd:
				h.counter++
				c.SetVal(h.counter)
			case *redis.BoolCmd:
				c.SetVal(h.counter == 1)
			}
			if name := cmd.Name(); name != "multi" && name != "exec" {
				parts := make([]string, 0, len(cmd.Args()))
				for _, a := range cmd.Args() {
					parts = append(parts, fmt.Sprint(a))
				}
				batch = append(batch, strings.ToLower(strings.Join(parts, " ")))
			}
		}
		h.batches = append(h.batches, batch)
		return nil
	}
}

func TestRedisStoreIncrSetsTTLInSameTransaction(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	rec := &txRecorder{}
	client.AddHook(rec)
	s := &RedisStore{client: client}
	ctx := context.Background()

	for want := int64(1); want <= 2; want++ {
		got, err := s.Incr(ctx, "verify:evt-1:client", time.Minute)
		if err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		if got != want {
			t.Errorf("Expected %d, got %d", want, got)
		}
	}

	if len(rec.batches) != 2 {
		t.Fatalf("Expected one transaction per increment, got %d", len(rec.batches))
	}
	for i, batch := range rec.batches {
		if len(batch) != 2 || !strings.HasPrefix(batch[0], "incr") || !strings.HasPrefix(batch[1], "expire") || !strings.HasSuffix(batch[1], "nx") {
			t.Errorf("batch %d: expected INCR then EXPIRE NX, got %v", i, batch)
		}
	}

	if _, err := s.Incr(ctx, "no-ttl", 0); err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	if last := rec.batches[len(rec.batches)-1]; len(last) != 1 {
		t.Errorf("Expected INCR alone without a ttl, got %v", last)
	}
}
