package ports

import (
	"context"
	"time"
)

// Store interface for token invalidation
type Store interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}

// NonceLedger tracks issued challenge nonces so each can be redeemed once
type NonceLedger interface {
	// Remember records a freshly issued nonce for address until ttl elapses
	Remember(ctx context.Context, nonce, address string, ttl time.Duration) error
	// Consume atomically removes the nonce and reports whether it was issued for address
	Consume(ctx context.Context, nonce, address string) (bool, error)
}

// RateLimiter bounds attempts per client key; a rejection is a *core.RateLimitError
type RateLimiter interface {
	Check(ctx context.Context, clientKey string) error
}
