package service

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/signon/adapters/ethsig"
	"github.com/layer-3/signon/adapters/identity"
	"github.com/layer-3/signon/adapters/store"
	"github.com/layer-3/signon/adapters/tokenizer"
	"github.com/layer-3/signon/core"
)

type authFixture struct {
	clock   *fakeClock
	svc     *AuthService
	pub     *recordingPublisher
	key     *ecdsa.PrivateKey
	address string
}

func newAuthFixture(t *testing.T, revoke bool) *authFixture {
	t.Helper()
	clock := newFakeClock()
	signKey, err := tokenizer.GenerateSigningKey()
	require.NoError(t, err)

	pub := &recordingPublisher{}
	svc := NewAuthService(
		Config{
			Domain:               "app.example.com",
			URI:                  "https://app.example.com",
			ChallengeTTL:         10 * time.Minute,
			SessionTTL:           24 * time.Hour,
			IdentityStoreTimeout: time.Second,
			RevokeOnLogout:       revoke,
			Now:                  clock.Now,
		},
		tokenizer.NewJWTTokenizer(signKey, tokenizer.WithClock(clock.Now)),
		store.NewMemoryStoreWithClock(clock.Now),
		store.NewMemoryNonceLedger(clock.Now),
		identity.NewMemoryStore(),
		pub,
	)
	t.Cleanup(svc.Wait)

	key, address := newWallet(t)
	return &authFixture{clock: clock, svc: svc, pub: pub, key: key, address: address}
}

func (f *authFixture) login(t *testing.T) *LoginResult {
	t.Helper()
	ctx := context.Background()
	payload, err := f.svc.Challenge(ctx, f.address, nil)
	require.NoError(t, err)
	sig, err := ethsig.Sign(payload.Message(), f.key)
	require.NoError(t, err)
	result, err := f.svc.Login(ctx, payload, sig)
	require.NoError(t, err)
	return result
}

func TestAuthService_LoginFlow(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()

	first := f.login(t)
	assert.True(t, first.IsNewUser)
	assert.Equal(t, f.address, first.Session.Address)
	assert.Equal(t, f.address, first.Identity.Address)
	assert.Equal(t, 24*time.Hour, first.Session.ExpiresAt.Sub(first.Session.IssuedAt))

	session, err := f.svc.ValidateToken(ctx, first.Token)
	require.NoError(t, err)
	assert.Equal(t, first.Session.ID, session.ID)

	second := f.login(t)
	assert.False(t, second.IsNewUser)
	assert.Equal(t, first.Identity.ID, second.Identity.ID)

	f.pub.mu.Lock()
	assert.Equal(t, []bool{true, false}, f.pub.newUsers)
	f.pub.mu.Unlock()
}

func TestAuthService_LoginRejectsReplay(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()

	payload, err := f.svc.Challenge(ctx, f.address, nil)
	require.NoError(t, err)
	sig, err := ethsig.Sign(payload.Message(), f.key)
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, payload, sig)
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, payload, sig)
	assert.ErrorIs(t, err, core.ErrReplayedNonce)
}

func TestAuthService_LogoutRevokes(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()
	result := f.login(t)

	require.NoError(t, f.svc.Logout(ctx, result.Token))
	_, err := f.svc.ValidateToken(ctx, result.Token)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	f.pub.mu.Lock()
	assert.Equal(t, []string{result.Session.ID}, f.pub.logouts)
	f.pub.mu.Unlock()

	// Other sessions of the same address stay valid
	other := f.login(t)
	_, err = f.svc.ValidateToken(ctx, other.Token)
	assert.NoError(t, err)
}

func TestAuthService_LogoutWithoutRevocation(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	result := f.login(t)

	require.NoError(t, f.svc.Logout(ctx, result.Token))
	_, err := f.svc.ValidateToken(ctx, result.Token)
	assert.NoError(t, err)
}

func TestAuthService_LogoutIgnoresBadTokens(t *testing.T) {
	f := newAuthFixture(t, true)
	assert.NoError(t, f.svc.Logout(context.Background(), ""))
	assert.NoError(t, f.svc.Logout(context.Background(), "garbage"))
}

func TestAuthService_ValidateExpired(t *testing.T) {
	f := newAuthFixture(t, true)
	result := f.login(t)

	f.clock.Advance(24 * time.Hour)
	_, err := f.svc.ValidateToken(context.Background(), result.Token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestAuthService_Register(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()

	// Register before any login creates the identity with the given profile
	name := "carol"
	created, err := f.svc.Register(ctx, f.address, core.Profile{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "carol", created.DisplayName)

	result := f.login(t)
	assert.False(t, result.IsNewUser)

	email := "carol@example.com"
	updated, err := f.svc.Register(ctx, f.address, core.Profile{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "carol", updated.DisplayName)
	assert.Equal(t, "carol@example.com", updated.Email)

	unchanged, err := f.svc.Register(ctx, f.address, core.Profile{})
	require.NoError(t, err)
	assert.Equal(t, updated.UpdatedAt, unchanged.UpdatedAt)

	got, err := f.svc.Identity(ctx, f.address)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestAuthService_IdentityNotFound(t *testing.T) {
	f := newAuthFixture(t, true)
	_, err := f.svc.Identity(context.Background(), f.address)
	assert.ErrorIs(t, err, core.ErrIdentityNotFound)
}
