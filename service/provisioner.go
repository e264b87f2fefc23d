package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/ports"
)

const publishTimeout = 5 * time.Second

// IdentityProvisioner resolves the identity behind an address, creating it on first login
type IdentityProvisioner struct {
	store    ports.IdentityStore
	eventPub ports.EventPublisher
	timeout  time.Duration

	pending sync.WaitGroup
}

// NewIdentityProvisioner bounds every store call by timeout
func NewIdentityProvisioner(store ports.IdentityStore, eventPub ports.EventPublisher, timeout time.Duration) *IdentityProvisioner {
	return &IdentityProvisioner{store: store, eventPub: eventPub, timeout: timeout}
}

// GetOrCreate returns the identity for address. isNew is true only for the call that created it.
// Losing a creation race to another request is reported as an existing identity.
func (p *IdentityProvisioner) GetOrCreate(ctx context.Context, address string, defaults *core.Profile) (*core.Identity, bool, error) {
	existing, err := p.Find(ctx, address)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	checksummed := core.ChecksumAddress(address)
	identity := &core.Identity{
		ID:      uuid.NewString(),
		Address: checksummed,
	}
	if defaults != nil {
		defaults.Apply(identity)
	}
	if identity.DisplayName == "" {
		identity.DisplayName = core.ShortAddress(checksummed)
	}

	err = p.withTimeout(ctx, func(ctx context.Context) error {
		return p.store.Create(ctx, identity)
	})
	if errors.Is(err, core.ErrIdentityExists) {
		existing, err := p.Find(ctx, address)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("%w: identity vanished after conflict", core.ErrIdentityStore)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, storeError("create", err)
	}

	p.publish("identity.created", func(ctx context.Context) error {
		return p.eventPub.PublishIdentityCreated(ctx, identity)
	})

	return identity, true, nil
}

// Find looks the identity up, retrying a failed read once
func (p *IdentityProvisioner) Find(ctx context.Context, address string) (*core.Identity, error) {
	var identity *core.Identity
	find := func(ctx context.Context) error {
		var err error
		identity, err = p.store.FindByAddress(ctx, address)
		return err
	}

	err := p.withTimeout(ctx, find)
	if err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Str("address", address).Msg("identity lookup failed, retrying")
		err = p.withTimeout(ctx, find)
	}
	if err != nil {
		return nil, storeError("find", err)
	}
	return identity, nil
}

// Update applies profile to an existing identity and announces the change
func (p *IdentityProvisioner) Update(ctx context.Context, address string, profile core.Profile) (*core.Identity, error) {
	var identity *core.Identity
	err := p.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		identity, err = p.store.Update(ctx, address, profile)
		return err
	})
	if errors.Is(err, core.ErrIdentityNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, storeError("update", err)
	}

	p.publish("identity.updated", func(ctx context.Context) error {
		return p.eventPub.PublishIdentityUpdated(ctx, identity)
	})
	return identity, nil
}

// Wait blocks until every in-flight event publish has finished
func (p *IdentityProvisioner) Wait() {
	p.pending.Wait()
}

func (p *IdentityProvisioner) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return fn(ctx)
}

// publish runs fn in the background; a failed event never fails the request
func (p *IdentityProvisioner) publish(event string, fn func(ctx context.Context) error) {
	if p.eventPub == nil {
		return
	}
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Error().Err(err).Str("event", event).Msg("failed to publish event")
		}
	}()
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrIdentityStore, op, err)
}
