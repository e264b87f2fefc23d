package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/ports"
)

const AudienceSession = "session:access"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	now     func() time.Time
}

// Option customises a JWTTokenizer
type Option func(*JWTTokenizer)

// WithClock replaces the wall clock used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(j *JWTTokenizer) { j.now = now }
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, opts ...Option) ports.Tokenizer {
	j := &JWTTokenizer{signKey: signKey, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// LoadSigningKey reads a PEM encoded P-256 private key
func LoadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	return key, nil
}

// GenerateSigningKey creates an ephemeral P-256 key; tokens die with the process
func GenerateSigningKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// SessionToToken converts a Session to a signed JWT
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Address,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		Context: SessionContext{ChainID: session.ChainID},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToSession verifies a JWT and returns the session it describes
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return &j.signKey.PublicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithAudience(AudienceSession),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", core.ErrTokenInvalid, err)
	}

	if !token.Valid {
		return nil, core.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", core.ErrTokenInvalid)
	}

	if claims.ID == "" || claims.IssuedAt == nil || !core.IsAddress(claims.Subject) {
		return nil, fmt.Errorf("%w: incomplete claims", core.ErrTokenInvalid)
	}

	return &core.Session{
		ID:        claims.ID,
		Address:   claims.Subject,
		ChainID:   claims.Context.ChainID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
