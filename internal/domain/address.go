// internal/domain/address.go
package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsAccountAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAccountAddress(s string) bool {
	return (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) && common.IsHexAddress(s)
}

// NormalizeOwner returns the canonical key for an account identifier.
// Hex addresses collapse to their checksummed form so that "0xabc..." and
// "0xABC..." name the same account; other identifiers are kept verbatim.
func NormalizeOwner(owner string) string {
	owner = strings.TrimSpace(owner)
	if IsAccountAddress(owner) {
		return common.HexToAddress(owner).Hex()
	}
	return owner
}
