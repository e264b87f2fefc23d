package service

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/signon/adapters/ethsig"
	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/ports"
)

// SignatureVerifier checks a signed login payload and redeems its nonce
type SignatureVerifier struct {
	domain string
	ledger ports.NonceLedger
	now    func() time.Time
}

// NewSignatureVerifier accepts payloads issued for domain
func NewSignatureVerifier(domain string, ledger ports.NonceLedger, now func() time.Time) *SignatureVerifier {
	if now == nil {
		now = time.Now
	}
	return &SignatureVerifier{domain: domain, ledger: ledger, now: now}
}

// Verify returns the recovered identity or one of the signature-family errors.
// The nonce is only consumed once every other check has passed.
func (v *SignatureVerifier) Verify(ctx context.Context, payload *core.LoginPayload, signature string) (*core.VerifiedIdentity, error) {
	if payload == nil {
		return nil, core.ErrInvalidPayload
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	signer, err := ethsig.Recover(payload.Message(), signature)
	if err != nil {
		return nil, err
	}
	address := signer.Hex()
	if !core.SameAddress(address, payload.Address) {
		return nil, fmt.Errorf("recovered %s: %w", address, core.ErrSignatureInvalid)
	}

	now := v.now()
	if !now.Before(payload.ExpirationTime) {
		return nil, core.ErrPayloadExpired
	}
	if now.Before(payload.IssuedAt) || (payload.NotBefore != nil && now.Before(*payload.NotBefore)) {
		return nil, core.ErrPayloadNotYetValid
	}

	if payload.Domain != v.domain {
		return nil, core.ErrDomainMismatch
	}

	ok, err := v.ledger.Consume(ctx, payload.Nonce, address)
	if err != nil {
		return nil, fmt.Errorf("failed to consume nonce: %w", err)
	}
	if !ok {
		return nil, core.ErrReplayedNonce
	}

	return &core.VerifiedIdentity{Address: address, ChainID: payload.ChainID}, nil
}
