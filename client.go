package signon

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/layer-3/signon/adapters/ethsig"
	"github.com/layer-3/signon/core"
)

// LoginResult is the body returned by a successful login
type LoginResult struct {
	Token     string         `json:"token"`
	Address   string         `json:"address"`
	User      *core.Identity `json:"user"`
	IsNewUser bool           `json:"isNewUser"`
}

// Status is the body returned by the status endpoint
type Status struct {
	IsAuthenticated bool    `json:"isAuthenticated"`
	Address         string  `json:"address,omitempty"`
	ChainID         *uint64 `json:"chainId,omitempty"`
}

// KeySigner signs with an in-process private key
type KeySigner struct {
	key *ecdsa.PrivateKey
}

// NewKeySigner wraps key as a Signer
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key}
}

// Address returns the checksummed address of the key
func (s *KeySigner) Address() string {
	return ethsig.Address(s.key).Hex()
}

// SignMessage signs message the way wallets do for personal_sign
func (s *KeySigner) SignMessage(message string) (string, error) {
	return ethsig.Sign(message, s.key)
}

// Option configures an HTTPClient
type Option func(*HTTPClient)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// WithToken resumes an existing session
func WithToken(token string) Option {
	return func(c *HTTPClient) {
		c.token = token
	}
}

// HTTPClient talks to the signon HTTP API and keeps the session token in memory
type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

var _ Client = (*HTTPClient)(nil)

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current session token, empty before login
func (c *HTTPClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Challenge fetches a login payload for address
func (c *HTTPClient) Challenge(ctx context.Context, address string, chainID *uint64) (*core.LoginPayload, error) {
	query := url.Values{"address": {address}}
	if chainID != nil {
		query.Set("chainId", strconv.FormatUint(*chainID, 10))
	}

	var payload core.LoginPayload
	if err := c.do(ctx, http.MethodGet, "/auth/login?"+query.Encode(), nil, &payload, false); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Login fetches a challenge, signs it with signer and starts a session
func (c *HTTPClient) Login(ctx context.Context, signer Signer, chainID *uint64) (*LoginResult, error) {
	payload, err := c.Challenge(ctx, signer.Address(), chainID)
	if err != nil {
		return nil, err
	}

	signature, err := signer.SignMessage(payload.Message())
	if err != nil {
		return nil, err
	}

	body := struct {
		Payload   *core.LoginPayload `json:"payload"`
		Signature string             `json:"signature"`
	}{payload, signature}

	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &result, false); err != nil {
		return nil, err
	}

	c.setToken(result.Token)
	return &result, nil
}

// Status reports whether the current session is valid
func (c *HTTPClient) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "/auth/status", nil, &status, false); err != nil {
		return nil, err
	}
	return &status, nil
}

// Register stores optional profile fields for the logged in address
func (c *HTTPClient) Register(ctx context.Context, profile core.Profile) (*core.Identity, error) {
	var identity core.Identity
	if err := c.do(ctx, http.MethodPost, "/auth/register", profile, &identity, true); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Me returns the identity of the logged in address
func (c *HTTPClient) Me(ctx context.Context) (*core.Identity, error) {
	var identity core.Identity
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &identity, true); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Logout ends the current session. The local token is dropped even when the call fails.
func (c *HTTPClient) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, false)
	c.setToken("")
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any, authRequired bool) error {
	token := c.Token()
	if authRequired && token == "" {
		return ErrNotLoggedIn
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error      string `json:"error"`
		RetryAfter int    `json:"retryAfter"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    body.Error,
		RetryAfter: body.RetryAfter,
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	if apiErr.RetryAfter == 0 {
		apiErr.RetryAfter, _ = strconv.Atoi(resp.Header.Get("Retry-After"))
	}
	return apiErr
}
