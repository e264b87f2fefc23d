package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/ports"
)

// nonceBytes gives 256 bits of entropy per challenge
const nonceBytes = 32

// IssuerConfig is the static part of every login payload
type IssuerConfig struct {
	Domain       string
	URI          string
	Statement    string
	Resources    []string
	ChallengeTTL time.Duration
}

// PayloadIssuer creates login payloads and records their nonces
type PayloadIssuer struct {
	cfg    IssuerConfig
	ledger ports.NonceLedger
	now    func() time.Time
}

// NewPayloadIssuer creates an issuer; a nil clock means time.Now
func NewPayloadIssuer(cfg IssuerConfig, ledger ports.NonceLedger, now func() time.Time) *PayloadIssuer {
	if now == nil {
		now = time.Now
	}
	return &PayloadIssuer{cfg: cfg, ledger: ledger, now: now}
}

// Issue builds a fresh payload for address
func (i *PayloadIssuer) Issue(ctx context.Context, address string, chainID *uint64) (*core.LoginPayload, error) {
	if !core.IsAddress(address) {
		return nil, core.ErrInvalidAddress
	}

	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}

	now := i.now().UTC().Truncate(time.Second)
	payload := &core.LoginPayload{
		Domain:         i.cfg.Domain,
		Address:        core.ChecksumAddress(address),
		ChainID:        chainID,
		Nonce:          nonce,
		IssuedAt:       now,
		ExpirationTime: now.Add(i.cfg.ChallengeTTL),
		Statement:      i.cfg.Statement,
		URI:            i.cfg.URI,
		Version:        core.PayloadVersion,
		Resources:      i.cfg.Resources,
	}

	if err := i.ledger.Remember(ctx, nonce, payload.Address, i.cfg.ChallengeTTL); err != nil {
		return nil, fmt.Errorf("failed to record nonce: %w", err)
	}

	return payload, nil
}

func newNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
