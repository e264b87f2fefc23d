// Package identity holds IdentityStore implementations.
package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/ports"
)

// MemoryStore keeps identities in a map keyed by lowercased address
type MemoryStore struct {
	mu         sync.RWMutex
	identities map[string]core.Identity
	now        func() time.Time
}

// NewMemoryStore creates an empty in-memory identity store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[string]core.Identity),
		now:        time.Now,
	}
}

var _ ports.IdentityStore = (*MemoryStore)(nil)

// FindByAddress returns a copy of the stored identity
func (s *MemoryStore) FindByAddress(ctx context.Context, address string) (*core.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[strings.ToLower(address)]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}

// Create inserts identity, filling ID and timestamps when unset
func (s *MemoryStore) Create(ctx context.Context, identity *core.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(identity.Address)
	if _, ok := s.identities[key]; ok {
		return core.ErrIdentityExists
	}

	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	if identity.UpdatedAt.IsZero() {
		identity.UpdatedAt = identity.CreatedAt
	}

	s.identities[key] = *identity
	return nil
}

// Update applies the non-nil profile fields
func (s *MemoryStore) Update(ctx context.Context, address string, profile core.Profile) (*core.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(address)
	identity, ok := s.identities[key]
	if !ok {
		return nil, core.ErrIdentityNotFound
	}

	profile.Apply(&identity)
	identity.UpdatedAt = s.now().UTC()
	s.identities[key] = identity
	return &identity, nil
}

// Len reports the number of stored identities
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities)
}
