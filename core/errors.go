package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrInvalidAddress  = fmt.Errorf("%w: invalid ethereum address", ErrValidation)
	ErrInvalidChainID  = fmt.Errorf("%w: invalid chain id", ErrValidation)
	ErrInvalidPayload  = fmt.Errorf("%w: malformed login payload", ErrValidation)
	ErrInvalidProfile  = fmt.Errorf("%w: invalid profile fields", ErrValidation)
	ErrMissingPathAddr = fmt.Errorf("%w: missing address path parameter", ErrValidation)

	// Signature verification failures share one client-facing message
	ErrSignatureInvalid   = errors.New("invalid signature")
	ErrPayloadExpired     = errors.New("login payload has expired")
	ErrPayloadNotYetValid = errors.New("login payload is not yet valid")
	ErrDomainMismatch     = errors.New("login payload domain mismatch")
	ErrReplayedNonce      = errors.New("nonce already used or unknown")

	ErrTokenInvalid  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token has expired")
	ErrTokenRevoked  = errors.New("token has been revoked")
	ErrMissingToken  = errors.New("missing session token")
	ErrNotOwner      = errors.New("identity does not own this resource")
	ErrIdentityStore = errors.New("identity store unavailable")

	// ErrIdentityExists is returned by stores when the address is already taken
	ErrIdentityExists = errors.New("identity already exists")
	// ErrIdentityNotFound is returned by stores on update of an unknown address
	ErrIdentityNotFound = errors.New("identity not found")
)

// RateLimitError is returned when a client exceeds its attempt budget
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfterSeconds())
}

// RetryAfterSeconds rounds the wait up to whole seconds, never below one
func (e *RateLimitError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// IsSignatureError reports whether err belongs to the login verification family
func IsSignatureError(err error) bool {
	return errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, ErrPayloadExpired) ||
		errors.Is(err, ErrPayloadNotYetValid) ||
		errors.Is(err, ErrDomainMismatch) ||
		errors.Is(err, ErrReplayedNonce)
}

// IsTokenError reports whether err belongs to the session token family
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrMissingToken)
}
