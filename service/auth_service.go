package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/ports"
)

// Config holds the tunables of the authentication flow
type Config struct {
	Domain               string
	URI                  string
	Statement            string
	Resources            []string
	ChallengeTTL         time.Duration
	SessionTTL           time.Duration
	IdentityStoreTimeout time.Duration
	RevokeOnLogout       bool
	Now                  func() time.Time
}

// LoginResult is everything a successful login hands back to the caller
type LoginResult struct {
	Token     string
	Session   *core.Session
	Identity  *core.Identity
	IsNewUser bool
}

// AuthService handles authentication business logic
type AuthService struct {
	issuer     *PayloadIssuer
	verifier   *SignatureVerifier
	sessions   *SessionTokenService
	identities *IdentityProvisioner
	store      ports.Store
	eventPub   ports.EventPublisher

	revokeOnLogout bool
	now            func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	cfg Config,
	tokenizer ports.Tokenizer,
	store ports.Store,
	ledger ports.NonceLedger,
	identityStore ports.IdentityStore,
	eventPub ports.EventPublisher,
) *AuthService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &AuthService{
		issuer: NewPayloadIssuer(IssuerConfig{
			Domain:       cfg.Domain,
			URI:          cfg.URI,
			Statement:    cfg.Statement,
			Resources:    cfg.Resources,
			ChallengeTTL: cfg.ChallengeTTL,
		}, ledger, now),
		verifier:       NewSignatureVerifier(cfg.Domain, ledger, now),
		sessions:       NewSessionTokenService(tokenizer, cfg.SessionTTL, now),
		identities:     NewIdentityProvisioner(identityStore, eventPub, cfg.IdentityStoreTimeout),
		store:          store,
		eventPub:       eventPub,
		revokeOnLogout: cfg.RevokeOnLogout,
		now:            now,
	}
}

// SessionTTL is the lifetime of issued session tokens
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessions.TTL()
}

// Challenge issues a login payload for address
func (s *AuthService) Challenge(ctx context.Context, address string, chainID *uint64) (*core.LoginPayload, error) {
	return s.issuer.Issue(ctx, address, chainID)
}

// Login verifies the signed payload, provisions the identity and opens a session
func (s *AuthService) Login(ctx context.Context, payload *core.LoginPayload, signature string) (*LoginResult, error) {
	verified, err := s.verifier.Verify(ctx, payload, signature)
	if err != nil {
		return nil, err
	}

	identity, isNew, err := s.identities.GetOrCreate(ctx, verified.Address, nil)
	if err != nil {
		return nil, err
	}

	token, session, err := s.sessions.Issue(verified)
	if err != nil {
		return nil, err
	}

	if err := s.eventPub.PublishLogin(ctx, session, isNew); err != nil {
		log.Warn().Err(err).Str("address", session.Address).Msg("failed to publish login event")
	}

	return &LoginResult{
		Token:     token,
		Session:   session,
		Identity:  identity,
		IsNewUser: isNew,
	}, nil
}

// ValidateToken verifies the token and checks it has not been revoked
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.sessions.Verify(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.store.IsTokenInvalidated(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if revoked {
		return nil, core.ErrTokenRevoked
	}

	return session, nil
}

// Logout revokes the session carried by token. Invalid or expired tokens are ignored
// since they already grant nothing.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	session, err := s.sessions.Verify(token)
	if err != nil {
		return nil
	}

	// The cookie is cleared regardless; a failed revocation leaves the token valid until expiry
	if s.revokeOnLogout {
		remaining := session.ExpiresAt.Sub(s.now())
		if err := s.store.InvalidateToken(ctx, session.ID, remaining); err != nil {
			log.Error().Err(err).Str("address", session.Address).Str("token_id", session.ID).Msg("failed to revoke token on logout")
		}
	}

	// Other instances learn about the logout from the event; the revocation entry is authoritative
	if err := s.eventPub.PublishLogout(ctx, session.Address, session.ID); err != nil {
		log.Warn().Err(err).Str("address", session.Address).Msg("failed to publish logout event")
	}

	return nil
}

// Identity returns the stored identity for address
func (s *AuthService) Identity(ctx context.Context, address string) (*core.Identity, error) {
	identity, err := s.identities.Find(ctx, address)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, core.ErrIdentityNotFound
	}
	return identity, nil
}

// Register completes the profile of the authenticated address, creating the identity
// with profile as defaults when it does not exist yet
func (s *AuthService) Register(ctx context.Context, address string, profile core.Profile) (*core.Identity, error) {
	identity, isNew, err := s.identities.GetOrCreate(ctx, address, &profile)
	if err != nil {
		return nil, err
	}
	if isNew || profile.IsEmpty() {
		return identity, nil
	}
	return s.identities.Update(ctx, address, profile)
}

// Wait blocks until background event publishing has drained
func (s *AuthService) Wait() {
	s.identities.Wait()
}
