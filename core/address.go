package core

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address
func IsAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	return common.IsHexAddress(s)
}

// ChecksumAddress returns the EIP-55 form of a valid address
func ChecksumAddress(s string) string {
	return common.HexToAddress(s).Hex()
}

// SameAddress compares two addresses ignoring case
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ShortAddress is the display name given to identities created without one
func ShortAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// ParseChainID parses an optional decimal chain id; empty input yields nil
func ParseChainID(raw string) (*uint64, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, ErrInvalidChainID
	}
	return &id, nil
}
