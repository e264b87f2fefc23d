package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload() LoginPayload {
	chainID := uint64(11155111)
	issued := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	return LoginPayload{
		Domain:         "app.example.com",
		Address:        "0x1234567890123456789012345678901234567890",
		ChainID:        &chainID,
		Nonce:          "a1b2c3",
		IssuedAt:       issued,
		ExpirationTime: issued.Add(10 * time.Minute),
		URI:            "https://app.example.com",
		Version:        PayloadVersion,
	}
}

func TestMessage_Layout(t *testing.T) {
	p := testPayload()
	p.Statement = "Sign in to Example"

	want := "app.example.com wants you to sign in with your Ethereum account:\n" +
		"0x1234567890123456789012345678901234567890\n\n" +
		"Sign in to Example\n\n" +
		"URI: https://app.example.com\n" +
		"Version: 1\n" +
		"Chain ID: 11155111\n" +
		"Nonce: a1b2c3\n" +
		"Issued At: 2026-10-17T12:00:00Z\n" +
		"Expiration Time: 2026-10-17T12:10:00Z"

	assert.Equal(t, want, p.Message())
}

func TestMessage_OptionalFields(t *testing.T) {
	p := testPayload()
	p.ChainID = nil
	nb := p.IssuedAt.Add(time.Minute)
	p.NotBefore = &nb
	p.Resources = []string{"https://app.example.com/terms", "ipfs://bafy"}

	msg := p.Message()
	assert.Contains(t, msg, "0x1234567890123456789012345678901234567890\n\n\nURI:")
	assert.NotContains(t, msg, "Chain ID")
	assert.Contains(t, msg, "\nNot Before: 2026-10-17T12:01:00Z")
	assert.Contains(t, msg, "\nResources:\n- https://app.example.com/terms\n- ipfs://bafy")
}

func TestMessage_ChangesWithEveryField(t *testing.T) {
	base := testPayload().Message()

	mutations := map[string]func(p *LoginPayload){
		"chainId": func(p *LoginPayload) { c := uint64(1); p.ChainID = &c },
		"nonce":   func(p *LoginPayload) { p.Nonce = "other" },
		"expiry":  func(p *LoginPayload) { p.ExpirationTime = p.ExpirationTime.Add(time.Second) },
		"domain":  func(p *LoginPayload) { p.Domain = "evil.example.com" },
		"uri":     func(p *LoginPayload) { p.URI = "https://evil.example.com" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			p := testPayload()
			mutate(&p)
			assert.NotEqual(t, base, p.Message())
		})
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, testPayload().Validate())

	p := testPayload()
	p.Address = "1234567890123456789012345678901234567890"
	assert.ErrorIs(t, p.Validate(), ErrInvalidAddress)

	p = testPayload()
	p.Version = "2"
	assert.ErrorIs(t, p.Validate(), ErrInvalidPayload)

	p = testPayload()
	p.ExpirationTime = p.IssuedAt
	assert.ErrorIs(t, p.Validate(), ErrValidation)
}

func TestAddressHelpers(t *testing.T) {
	assert.True(t, IsAddress("0x1234567890123456789012345678901234567890"))
	assert.False(t, IsAddress("0x12345"))
	assert.False(t, IsAddress("0xZZ34567890123456789012345678901234567890"))
	assert.False(t, IsAddress(""))

	assert.True(t, SameAddress("0xABCDEF0000000000000000000000000000000000", "0xabcdef0000000000000000000000000000000000"))
	assert.Equal(t, "0x1234...7890", ShortAddress("0x1234567890123456789012345678901234567890"))
}

func TestRateLimitError_RetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, (&RateLimitError{RetryAfter: 0}).RetryAfterSeconds())
	assert.Equal(t, 2, (&RateLimitError{RetryAfter: 1500 * time.Millisecond}).RetryAfterSeconds())
	assert.Equal(t, 60, (&RateLimitError{RetryAfter: time.Minute}).RetryAfterSeconds())
}

func TestParseChainID(t *testing.T) {
	id, err := ParseChainID("")
	assert.NoError(t, err)
	assert.Nil(t, id)

	id, err = ParseChainID("137")
	assert.NoError(t, err)
	if assert.NotNil(t, id) {
		assert.Equal(t, uint64(137), *id)
	}

	for _, raw := range []string{"-1", "abc", "1.5", "0x1"} {
		_, err := ParseChainID(raw)
		assert.ErrorIs(t, err, ErrInvalidChainID, raw)
		assert.ErrorIs(t, err, ErrValidation, raw)
	}
}
