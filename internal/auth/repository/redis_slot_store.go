package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	authdomain "github.com/AlibekovAA/session-auth/internal/auth/domain"
	"github.com/AlibekovAA/session-auth/internal/common/clock"
)

// KEYS[1] slot key
// ARGV[1] expected hash, ARGV[2] next hash, ARGV[3] ttl in milliseconds
const compareAndSwapScript = `
local current = redis.call("GET", KEYS[1])
if not current or current ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`

var compareAndSwapLua = redis.NewScript(compareAndSwapScript)

// RedisSlotStore keeps one key per account holding the token digest.
// Redis key expiry doubles as slot expiry, so no sweeper is needed.
type RedisSlotStore struct {
	client redis.UniversalClient
	prefix string
	clock  clock.Clock
}

func NewRedisSlotStore(client redis.UniversalClient, prefix string, clk clock.Clock) *RedisSlotStore {
	return &RedisSlotStore{client: client, prefix: prefix, clock: clk}
}

func (s *RedisSlotStore) key(accountID string) string {
	return s.prefix + accountID
}

func (s *RedisSlotStore) ttl(slot authdomain.Slot) time.Duration {
	return slot.ExpiresAt.Sub(s.clock.Now())
}

func (s *RedisSlotStore) Store(ctx context.Context, accountID string, slot authdomain.Slot) error {
	ttl := s.ttl(slot)
	if ttl <= 0 {
		return s.Clear(ctx, accountID)
	}
	if err := s.client.Set(ctx, s.key(accountID), slot.TokenHash, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session slot: %w", err)
	}
	return nil
}

func (s *RedisSlotStore) Load(ctx context.Context, accountID string) (authdomain.Slot, error) {
	key := s.key(accountID)

	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return authdomain.Slot{}, fmt.Errorf("failed to load session slot: %w", err)
	}

	hash, err := getCmd.Result()
	if errors.Is(err, redis.Nil) || hash == "" {
		return authdomain.Slot{}, ErrSlotEmpty
	}
	if err != nil {
		return authdomain.Slot{}, fmt.Errorf("failed to load session slot: %w", err)
	}

	slot := authdomain.Slot{TokenHash: hash}
	if ttl := ttlCmd.Val(); ttl > 0 {
		slot.ExpiresAt = s.clock.Now().Add(ttl)
	}
	return slot, nil
}

func (s *RedisSlotStore) CompareAndSwap(ctx context.Context, accountID, expectedHash string, next authdomain.Slot) (bool, error) {
	ttl := s.ttl(next)
	if ttl <= 0 {
		return false, fmt.Errorf("failed to rotate session slot: next slot already expired")
	}

	swapped, err := compareAndSwapLua.Run(
		ctx,
		s.client,
		[]string{s.key(accountID)},
		expectedHash,
		next.TokenHash,
		max(ttl.Milliseconds(), 1),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to rotate session slot: %w", err)
	}
	return swapped == 1, nil
}

func (s *RedisSlotStore) Clear(ctx context.Context, accountID string) error {
	if err := s.client.Del(ctx, s.key(accountID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session slot: %w", err)
	}
	return nil
}
