package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/ports"
)

// SessionTokenService issues and verifies session tokens
type SessionTokenService struct {
	tokenizer ports.Tokenizer
	ttl       time.Duration
	now       func() time.Time
}

// NewSessionTokenService issues tokens valid for ttl
func NewSessionTokenService(tokenizer ports.Tokenizer, ttl time.Duration, now func() time.Time) *SessionTokenService {
	if now == nil {
		now = time.Now
	}
	return &SessionTokenService{tokenizer: tokenizer, ttl: ttl, now: now}
}

// TTL is the lifetime of issued tokens
func (s *SessionTokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a session for a verified identity. The subject is always the recovered address.
func (s *SessionTokenService) Issue(identity *core.VerifiedIdentity) (string, *core.Session, error) {
	now := s.now().UTC().Truncate(time.Second)
	session := &core.Session{
		ID:        uuid.NewString(),
		Address:   identity.Address,
		ChainID:   identity.ChainID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create session token: %w", err)
	}
	return token, session, nil
}

// Verify parses token and returns the session it carries
func (s *SessionTokenService) Verify(token string) (*core.Session, error) {
	if token == "" {
		return nil, core.ErrMissingToken
	}
	return s.tokenizer.TokenToSession(token)
}
