package eth

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

const addressLen = 42 // 0x + 40 hex chars

// IsValidAddress reports whether address is 0x followed by 40 hex characters
// and, when mixed case, carries a correct EIP-55 checksum.
func IsValidAddress(address string) bool {
	return ValidateAddress(address) == nil
}

// isHexAddress checks the format only.
func isHexAddress(address string) bool {
	if len(address) != addressLen || !strings.HasPrefix(address, "0x") {
		return false
	}
	_, err := hex.DecodeString(address[2:])
	return err == nil
}

// ToChecksumAddress converts an address to EIP-55 checksum format.
// Malformed input is returned unchanged.
func ToChecksumAddress(address string) string {
	if !isHexAddress(address) {
		return address
	}

	lower := strings.ToLower(address[2:])
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(lower))
	digest := hex.EncodeToString(hasher.Sum(nil))

	var b strings.Builder
	b.Grow(addressLen)
	b.WriteString("0x")
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		// Letters whose hash nibble is >= 8 are uppercased.
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			c -= 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

// ValidateAddress validates format and, for mixed-case input, the EIP-55 checksum.
// All-lowercase and all-uppercase addresses carry no checksum and are accepted.
func ValidateAddress(address string) error {
	if !isHexAddress(address) {
		return rpcerr.WithDetails(rpcerr.ErrInvalidAddress, map[string]string{"address": address})
	}

	body := address[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return nil
	}
	if expected := ToChecksumAddress(address); expected != address {
		return rpcerr.WithDetails(rpcerr.ErrInvalidAddress, map[string]string{
			"address":  address,
			"checksum": expected,
		})
	}
	return nil
}
