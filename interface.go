// Package signon is a Go client for the signon wallet login API.
package signon

import (
	"context"

	"github.com/layer-3/signon/core"
)

// Client represents the public interface for interacting with the signon service
type Client interface {
	// Challenge fetches a login payload for address
	Challenge(ctx context.Context, address string, chainID *uint64) (*core.LoginPayload, error)

	// Login fetches a challenge, signs it with signer and starts a session
	Login(ctx context.Context, signer Signer, chainID *uint64) (*LoginResult, error)

	// Status reports whether the current session is valid
	Status(ctx context.Context) (*Status, error)

	// Register stores optional profile fields for the logged in address
	Register(ctx context.Context, profile core.Profile) (*core.Identity, error)

	// Me returns the identity of the logged in address
	Me(ctx context.Context) (*core.Identity, error)

	// Logout ends the current session
	Logout(ctx context.Context) error
}

// Signer produces personal-message signatures for one address
type Signer interface {
	Address() string
	SignMessage(message string) (string, error)
}
