// Package ratelimit throttles invitations and realtime connections.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopdesk/jobtickets/internal/clock"
)

// Limiter decides whether one more action under key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisWindow is a fixed-window counter shared by every API instance.
type RedisWindow struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRedisWindow allows limit actions per key per window.
func NewRedisWindow(client *redis.Client, prefix string, limit int, window time.Duration) *RedisWindow {
	return &RedisWindow{client: client, prefix: prefix, limit: int64(limit), window: window}
}

// Allow counts one action under key. The key is created with its expiry
// (SET NX EX) in the same transaction as the increment, so a counter never
// exists without a TTL.
func (w *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := w.prefix + key
	var incr *redis.IntCmd
	_, err := w.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, redisKey, 0, w.window)
		incr = pipe.Incr(ctx, redisKey)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= w.limit, nil
}

// TokenLimiter is an in-process token bucket per key. Buckets that have
// refilled completely are swept, since they behave like fresh ones.
type TokenLimiter struct {
	mu        sync.Mutex
	rate      float64
	burst     float64
	idle      time.Duration
	clock     clock.Clock
	bucket    map[string]*bucket
	lastSweep time.Time
	trusted   []netip.Prefix
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenLimiter refills perMinute tokens per minute up to burst.
func NewTokenLimiter(perMinute, burst int, clk clock.Clock) *TokenLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 20
	}
	if clk == nil {
		clk = clock.Real()
	}
	rate := float64(perMinute) / 60.0
	return &TokenLimiter{
		rate:      rate,
		burst:     float64(burst),
		idle:      time.Duration(float64(burst) / rate * float64(time.Second)),
		clock:     clk,
		bucket:    make(map[string]*bucket),
		lastSweep: clk.Now(),
	}
}

// TrustProxies lists the peers (CIDRs or bare addresses) whose
// X-Forwarded-For header is believed. With none, only the socket peer counts.
func (l *TokenLimiter) TrustProxies(proxies []string) error {
	prefixes, err := ParseProxies(proxies)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.trusted = prefixes
	l.mu.Unlock()
	return nil
}

func (l *TokenLimiter) Allow(_ context.Context, key string) (bool, error) {
	return l.allow(key), nil
}

func (l *TokenLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	b, ok := l.bucket[key]
	if !ok {
		l.bucket[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}
	elapsed := now.Sub(b.last).Seconds()
	b.tokens = min(l.burst, b.tokens+elapsed*l.rate)
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *TokenLimiter) sweep(now time.Time) {
	for key, b := range l.bucket {
		if now.Sub(b.last) >= l.idle {
			delete(l.bucket, key)
		}
	}
	l.lastSweep = now
}

// Middleware rejects requests over the per-IP limit with 429.
func (l *TokenLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		trusted := l.trusted
		l.mu.Unlock()
		ip := ClientIP(r, trusted)
		if ip != "" && !l.allow(ip) {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ParseProxies turns CIDRs or single addresses into prefixes.
func ParseProxies(proxies []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(proxies))
	for _, raw := range proxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// ClientIP returns the socket peer, unless that peer is a trusted proxy. Then
// X-Forwarded-For is read right to left and the first untrusted hop wins.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !isTrusted(host, trusted) {
		return host
	}
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded == "" {
		return host
	}
	hops := strings.Split(forwarded, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if _, err := netip.ParseAddr(hop); err != nil {
			return host
		}
		if !isTrusted(hop, trusted) {
			return hop
		}
	}
	return strings.TrimSpace(hops[0])
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
