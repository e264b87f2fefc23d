package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with the login context
type SessionClaims struct {
	jwt.RegisteredClaims
	Context SessionContext `json:"ctx"`
}

// SessionContext carries login details that are not registered claims
type SessionContext struct {
	ChainID *uint64 `json:"chainId,omitempty"`
}
