package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/layer-3/signon/ports"
)

// sweepEvery is how many writes pass between full sweeps of expired entries
const sweepEvery = 256

// Clock returns the current time; tests substitute a fake one
type Clock func() time.Time

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	invalidatedTokens map[string]time.Time
	mu                sync.RWMutex
	now               Clock
	writes            uint64
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an in-memory store driven by now
func NewMemoryStoreWithClock(now Clock) *MemoryStore {
	return &MemoryStore{
		invalidatedTokens: make(map[string]time.Time),
		now:               now,
	}
}

var _ ports.Store = (*MemoryStore)(nil)

// InvalidateToken marks a token as invalidated until expiry elapses
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.writes++
	if s.writes%sweepEvery == 0 {
		for id, until := range s.invalidatedTokens {
			if !now.Before(until) {
				delete(s.invalidatedTokens, id)
			}
		}
	}
	s.invalidatedTokens[tokenID] = now.Add(expiry)

	return nil
}

// Len reports how many revocations are tracked
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.invalidatedTokens)
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}

	return s.now().Before(expiryTime), nil
}

type nonceEntry struct {
	address   string
	expiresAt time.Time
}

// MemoryNonceLedger is a mutex-guarded NonceLedger for single-instance deployments
type MemoryNonceLedger struct {
	mu      sync.Mutex
	entries map[string]nonceEntry
	now     Clock
	writes  uint64
}

// NewMemoryNonceLedger creates an empty ledger
func NewMemoryNonceLedger(now Clock) *MemoryNonceLedger {
	if now == nil {
		now = time.Now
	}
	return &MemoryNonceLedger{
		entries: make(map[string]nonceEntry),
		now:     now,
	}
}

var _ ports.NonceLedger = (*MemoryNonceLedger)(nil)

// Remember records a nonce; expired ones are swept every sweepEvery calls
func (l *MemoryNonceLedger) Remember(ctx context.Context, nonce, address string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.writes++
	if l.writes%sweepEvery == 0 {
		for n, e := range l.entries {
			if !now.Before(e.expiresAt) {
				delete(l.entries, n)
			}
		}
	}
	l.entries[nonce] = nonceEntry{address: address, expiresAt: now.Add(ttl)}

	return nil
}

// Consume removes the nonce; it succeeds only once and only for the issuing address
func (l *MemoryNonceLedger) Consume(ctx context.Context, nonce, address string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[nonce]
	if !ok {
		return false, nil
	}
	delete(l.entries, nonce)

	if !l.now().Before(e.expiresAt) {
		return false, nil
	}
	return strings.EqualFold(e.address, address), nil
}

// Len reports how many nonces are tracked
func (l *MemoryNonceLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
