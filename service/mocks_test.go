package service

import (
	"context"
	"crypto/ecdsa"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/signon/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// mockIdentityStore is a function-field mock; unset functions panic when called
type mockIdentityStore struct {
	findFn   func(ctx context.Context, address string) (*core.Identity, error)
	createFn func(ctx context.Context, identity *core.Identity) error
	updateFn func(ctx context.Context, address string, profile core.Profile) (*core.Identity, error)
}

func (m *mockIdentityStore) FindByAddress(ctx context.Context, address string) (*core.Identity, error) {
	return m.findFn(ctx, address)
}

func (m *mockIdentityStore) Create(ctx context.Context, identity *core.Identity) error {
	return m.createFn(ctx, identity)
}

func (m *mockIdentityStore) Update(ctx context.Context, address string, profile core.Profile) (*core.Identity, error) {
	return m.updateFn(ctx, address, profile)
}

// recordingPublisher remembers every event it receives
type recordingPublisher struct {
	mu       sync.Mutex
	logins   []*core.Session
	newUsers []bool
	logouts  []string
	created  []*core.Identity
	updated  []*core.Identity
	err      error
}

func (p *recordingPublisher) PublishLogin(_ context.Context, session *core.Session, isNewUser bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logins = append(p.logins, session)
	p.newUsers = append(p.newUsers, isNewUser)
	return p.err
}

func (p *recordingPublisher) PublishLogout(_ context.Context, _ string, tokenID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts = append(p.logouts, tokenID)
	return p.err
}

func (p *recordingPublisher) PublishIdentityCreated(_ context.Context, identity *core.Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, identity)
	return p.err
}

func (p *recordingPublisher) PublishIdentityUpdated(_ context.Context, identity *core.Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updated = append(p.updated, identity)
	return p.err
}

func (p *recordingPublisher) createdCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.created)
}

func newWallet(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}
