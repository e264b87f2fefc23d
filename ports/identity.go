package ports

import (
	"context"

	"github.com/layer-3/signon/core"
)

// IdentityStore persists identities keyed by address. Lookups ignore address case.
type IdentityStore interface {
	// FindByAddress returns nil, nil when no identity exists
	FindByAddress(ctx context.Context, address string) (*core.Identity, error)
	// Create inserts identity or fails with core.ErrIdentityExists, never writing partially
	Create(ctx context.Context, identity *core.Identity) error
	// Update applies profile to the identity for address and returns the stored result
	Update(ctx context.Context, address string, profile core.Profile) (*core.Identity, error)
}
