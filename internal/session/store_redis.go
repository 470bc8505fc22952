package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
	"github.com/zeebo/blake3"

	"github.com/shopdesk/jobtickets/internal/clock"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOptions := cbor.CoreDetEncOptions()
	// Keep sub-second precision on issue and expiry stamps.
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("session: cbor encoder: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("session: cbor decoder: " + err.Error())
	}
}

// tokenKey derives the storage key for a token so raw tokens never sit in Redis.
func tokenKey(prefix, token string) string {
	sum := blake3.Sum256([]byte(token))
	return prefix + hex.EncodeToString(sum[:])
}

// RedisStore keeps session records in Redis with a TTL matching their expiry.
type RedisStore struct {
	client *redis.Client
	clock  clock.Clock
	prefix string
}

// NewRedisStore creates a store.
func NewRedisStore(client *redis.Client, clk clock.Clock) *RedisStore {
	return &RedisStore{client: client, clock: clk, prefix: "session:"}
}

func (s *RedisStore) Save(ctx context.Context, token string, record Record) error {
	ttl := record.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	payload, err := encMode.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, tokenKey(s.prefix, token), payload, ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context, token string) (*Record, error) {
	payload, err := s.client.Get(ctx, tokenKey(s.prefix, token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var record Record
	if err := decMode.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, tokenKey(s.prefix, token)).Err()
}

// RedisRevocations is a Redis-backed credential deny-list. Entries expire
// when the credential itself would have.
type RedisRevocations struct {
	client *redis.Client
	clock  clock.Clock
}

// NewRedisRevocations creates a deny-list.
func NewRedisRevocations(client *redis.Client, clk clock.Clock) *RedisRevocations {
	return &RedisRevocations{client: client, clock: clk}
}

func (r *RedisRevocations) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := until.Sub(r.clock.Now())
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, "revoked:"+id, 1, ttl).Err()
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, "revoked:"+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
