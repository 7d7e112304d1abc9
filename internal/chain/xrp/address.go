package xrp

import (
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	// rippleAlphabet is the base58 alphabet used by the XRP Ledger.
	rippleAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

	// bitcoinAlphabet is the alphabet the base58 package decodes.
	bitcoinAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

	// versionAccountID prefixes classic addresses (they start with r).
	versionAccountID = 0x00

	// versionSeed prefixes secp256k1 family seeds (they start with s).
	versionSeed = 0x21

	accountIDLen = 20
	seedLen      = 16
)

// ed25519SeedPrefix is the three byte prefix of ed25519 seeds (sEd...).
var ed25519SeedPrefix = []byte{0x01, 0xE1, 0x4B}

var (
	// ErrInvalidCharacter indicates a character outside the ripple alphabet.
	ErrInvalidCharacter = errors.New("invalid base58 character")

	// ErrInvalidVersion indicates an unexpected version prefix.
	ErrInvalidVersion = errors.New("invalid version prefix")

	// ErrInvalidLength indicates the payload has the wrong length.
	ErrInvalidLength = errors.New("invalid payload length")

	// rippleToBitcoin maps the ripple alphabet onto the bitcoin alphabet by position.
	//nolint:gochecknoglobals // Translation table built once
	rippleToBitcoin = strings.NewReplacer(pairs(rippleAlphabet, bitcoinAlphabet)...)

	//nolint:gochecknoglobals // Translation table built once
	bitcoinToRipple = strings.NewReplacer(pairs(bitcoinAlphabet, rippleAlphabet)...)
)

func pairs(from, to string) []string {
	out := make([]string, 0, 2*len(from))
	for i := range from {
		out = append(out, from[i:i+1], to[i:i+1])
	}
	return out
}

// decodeCheck decodes a ripple base58check string into its version and payload.
// The checksum is the first four bytes of a double SHA-256.
func decodeCheck(s string) ([]byte, byte, error) {
	for _, c := range s {
		if !strings.ContainsRune(rippleAlphabet, c) {
			return nil, 0, ErrInvalidCharacter
		}
	}
	return base58.CheckDecode(rippleToBitcoin.Replace(s))
}

// DecodeAddress returns the 20-byte account ID behind a classic address.
func DecodeAddress(address string) ([]byte, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	payload, _, err := decodeCheck(address)
	return payload, err
}

// EncodeAddress renders a 20-byte account ID as a classic address.
func EncodeAddress(accountID []byte) (string, error) {
	if len(accountID) != accountIDLen {
		return "", ErrInvalidLength
	}
	return bitcoinToRipple.Replace(base58.CheckEncode(accountID, versionAccountID)), nil
}

// IsValidAddress checks if a classic XRP address is valid (format and checksum).
func IsValidAddress(address string) bool {
	return ValidateAddress(address) == nil
}

// ValidateAddress validates a classic XRP address with full checksum verification.
func ValidateAddress(address string) error {
	if len(address) < 25 || len(address) > 35 || address[0] != 'r' {
		return ErrInvalidLength
	}
	payload, version, err := decodeCheck(address)
	if err != nil {
		return err
	}
	if version != versionAccountID {
		return ErrInvalidVersion
	}
	if len(payload) != accountIDLen {
		return ErrInvalidLength
	}
	return nil
}

// ValidateSecret checks that a family seed is well formed.
// Both secp256k1 (s...) and ed25519 (sEd...) seeds are accepted.
func ValidateSecret(secret string) error {
	if secret == "" || secret[0] != 's' {
		return ErrInvalidVersion
	}
	payload, version, err := decodeCheck(secret)
	if err != nil {
		return err
	}
	switch {
	case version == versionSeed && len(payload) == seedLen:
		return nil
	case version == ed25519SeedPrefix[0] &&
		len(payload) == len(ed25519SeedPrefix)-1+seedLen &&
		payload[0] == ed25519SeedPrefix[1] && payload[1] == ed25519SeedPrefix[2]:
		return nil
	default:
		return ErrInvalidVersion
	}
}
