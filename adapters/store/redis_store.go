package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/signon/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the Store interface
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "signon:revoked:",
	}
}

var _ ports.Store = (*RedisStore)(nil)

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	if expiry <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, s.prefix+tokenID, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	val, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}

	return val > 0, nil
}

// RedisNonceLedger keeps issued nonces as TTL'd keys so every instance sees them
type RedisNonceLedger struct {
	client *redis.Client
	prefix string
}

// NewRedisNonceLedger creates a Redis-backed ledger
func NewRedisNonceLedger(client *redis.Client) *RedisNonceLedger {
	return &RedisNonceLedger{
		client: client,
		prefix: "signon:nonce:",
	}
}

var _ ports.NonceLedger = (*RedisNonceLedger)(nil)

// Remember stores the nonce; a collision means the random source is broken
func (l *RedisNonceLedger) Remember(ctx context.Context, nonce, address string, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, l.prefix+nonce, strings.ToLower(address), ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store nonce: %w", err)
	}
	if !ok {
		return fmt.Errorf("nonce collision")
	}
	return nil
}

// Consume deletes the nonce with GETDEL so two concurrent logins cannot both win
func (l *RedisNonceLedger) Consume(ctx context.Context, nonce, address string) (bool, error) {
	owner, err := l.client.GetDel(ctx, l.prefix+nonce).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return owner == strings.ToLower(address), nil
}
