// Package ethsig signs and recovers EIP-191 personal messages.
package ethsig

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/signon/core"
)

const signatureLength = 65

// Recover returns the address that produced signatureHex over message.
// Wallets emit v as 27/28, go-ethereum expects 0/1; both are accepted.
func Recover(message, signatureHex string) (common.Address, error) {
	sig, err := hexutil.Decode(signatureHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", core.ErrSignatureInvalid)
	}
	if len(sig) != signatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes: %w", signatureLength, core.ErrSignatureInvalid)
	}

	// Copy before normalising v so the caller's bytes stay untouched
	normalized := make([]byte, signatureLength)
	copy(normalized, sig)
	switch v := normalized[crypto.RecoveryIDOffset]; v {
	case 0, 1:
	case 27, 28:
		normalized[crypto.RecoveryIDOffset] = v - 27
	default:
		return common.Address{}, fmt.Errorf("unexpected recovery id %d: %w", v, core.ErrSignatureInvalid)
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", core.ErrSignatureInvalid)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// Sign produces a wallet-style (v = 27/28) personal-message signature
func Sign(message string, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// Address derives the account address of key
func Address(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
