package worker

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopdesk/jobtickets/internal/clock"
)

// Dedupe remembers which jobs already ran.
type Dedupe interface {
	// FirstTime reports whether key is new, marking it seen for ttl.
	FirstTime(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisDedupe keeps marks in Redis so every replica sees them.
type RedisDedupe struct {
	client *redis.Client
	prefix string
}

// NewRedisDedupe builds a Redis-backed dedupe.
func NewRedisDedupe(client *redis.Client, prefix string) *RedisDedupe {
	return &RedisDedupe{client: client, prefix: prefix}
}

func (d *RedisDedupe) FirstTime(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+key, 1, ttl).Result()
}

// MemoryDedupe is the single-process fallback.
type MemoryDedupe struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	clock clock.Clock
}

// NewMemoryDedupe builds an in-process dedupe.
func NewMemoryDedupe(clk clock.Clock) *MemoryDedupe {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryDedupe{seen: map[string]time.Time{}, clock: clk}
}

func (d *MemoryDedupe) FirstTime(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock.Now()
	for k, until := range d.seen {
		if !now.Before(until) {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = now.Add(ttl)
	return true, nil
}
