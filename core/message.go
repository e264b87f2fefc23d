package core

import (
	"strconv"
	"strings"
	"time"
)

// Message renders the payload in EIP-4361 form. The output is what wallets sign,
// so field order and line breaks must not change.
func (p LoginPayload) Message() string {
	var b strings.Builder

	b.WriteString(p.Domain)
	b.WriteString(" wants you to sign in with your Ethereum account:\n")
	b.WriteString(p.Address)
	b.WriteString("\n\n")
	if p.Statement != "" {
		b.WriteString(p.Statement)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("URI: " + p.URI + "\n")
	b.WriteString("Version: " + p.Version + "\n")
	if p.ChainID != nil {
		b.WriteString("Chain ID: " + strconv.FormatUint(*p.ChainID, 10) + "\n")
	}
	b.WriteString("Nonce: " + p.Nonce + "\n")
	b.WriteString("Issued At: " + formatTime(p.IssuedAt) + "\n")
	b.WriteString("Expiration Time: " + formatTime(p.ExpirationTime))
	if p.NotBefore != nil {
		b.WriteString("\nNot Before: " + formatTime(*p.NotBefore))
	}
	if len(p.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range p.Resources {
			b.WriteString("\n- " + r)
		}
	}

	return b.String()
}

// Validate checks that the payload is structurally complete
func (p LoginPayload) Validate() error {
	switch {
	case p.Domain == "", p.URI == "", p.Nonce == "":
		return ErrInvalidPayload
	case p.Version != PayloadVersion:
		return ErrInvalidPayload
	case p.IssuedAt.IsZero(), p.ExpirationTime.IsZero():
		return ErrInvalidPayload
	case !p.ExpirationTime.After(p.IssuedAt):
		return ErrInvalidPayload
	}
	if !IsAddress(p.Address) {
		return ErrInvalidAddress
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
