package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/signon/core"
)

type ctxKey int

const identityKey ctxKey = iota

// SessionIdentity is the verified caller attached to authenticated requests
type SessionIdentity struct {
	Address   string
	ChainID   *uint64
	TokenID   string
	ExpiresAt time.Time
}

func newSessionIdentity(session *core.Session) *SessionIdentity {
	return &SessionIdentity{
		Address:   session.Address,
		ChainID:   session.ChainID,
		TokenID:   session.ID,
		ExpiresAt: session.ExpiresAt,
	}
}

// WithIdentity returns a copy of ctx carrying identity
func WithIdentity(ctx context.Context, identity *SessionIdentity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the identity attached by the auth middleware
func IdentityFrom(ctx context.Context) (*SessionIdentity, bool) {
	identity, ok := ctx.Value(identityKey).(*SessionIdentity)
	return identity, ok && identity != nil
}

// CurrentIdentity reads the identity from the gin request
func CurrentIdentity(c *gin.Context) (*SessionIdentity, bool) {
	return IdentityFrom(c.Request.Context())
}
