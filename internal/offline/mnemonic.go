package offline

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/tyler-smith/go-bip39"

	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// MaxTypoDistance is the largest edit distance offered as a word suggestion.
const MaxTypoDistance = 2

// ErrInvalidMnemonic indicates the phrase failed BIP39 validation.
var ErrInvalidMnemonic = &rpcerr.RPCError{
	Code:     "INVALID_MNEMONIC",
	Message:  "invalid mnemonic phrase",
	ExitCode: rpcerr.ExitInput,
}

var (
	whitespaceRegex   = regexp.MustCompile(`\s+`)
	numberedListRegex = regexp.MustCompile(`(?m)^\s*\d+[\.\)\:]\s*`)
	bulletListRegex   = regexp.MustCompile(`(?m)^\s*[-*•]\s*`)
)

// NormalizeMnemonic lowercases the phrase, strips list numbering and bullets,
// turns commas into spaces and collapses whitespace.
func NormalizeMnemonic(input string) string {
	input = strings.ToLower(input)
	input = numberedListRegex.ReplaceAllString(input, " ")
	input = bulletListRegex.ReplaceAllString(input, " ")
	input = strings.ReplaceAll(input, ",", " ")
	input = whitespaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// ValidateMnemonic checks word count, words and checksum. Misspelled words
// are reported with the closest BIP39 word as a suggestion.
func ValidateMnemonic(mnemonic string) error {
	normalized := NormalizeMnemonic(mnemonic)
	words := strings.Fields(normalized)
	switch len(words) {
	case 12, 15, 18, 21, 24:
	default:
		return rpcerr.WithDetails(ErrInvalidMnemonic, map[string]string{
			"words": fmt.Sprint(len(words)),
		})
	}

	var hints []string
	for i, w := range words {
		if _, ok := bip39.GetWordIndex(w); ok {
			continue
		}
		hint := fmt.Sprintf("word %d: '%s'", i+1, w)
		if s := SuggestWord(w); s != "" {
			hint += fmt.Sprintf(" - did you mean '%s'?", s)
		}
		hints = append(hints, hint)
	}
	if len(hints) > 0 {
		return rpcerr.WithSuggestion(ErrInvalidMnemonic, strings.Join(hints, "\n"))
	}

	if _, err := bip39.MnemonicToByteArray(normalized); err != nil {
		return rpcerr.WithCause(ErrInvalidMnemonic, err)
	}
	return nil
}

// SuggestWord returns the closest BIP39 word, or "" if none is within MaxTypoDistance.
func SuggestWord(input string) string {
	input = strings.ToLower(input)
	minDist := math.MaxInt
	var suggestion string

	for _, word := range bip39.GetWordList() {
		dist := levenshtein.ComputeDistance(input, word)
		if dist == 0 {
			return word
		}
		if dist < minDist {
			minDist = dist
			suggestion = word
		}
	}

	if minDist <= MaxTypoDistance {
		return suggestion
	}
	return ""
}

// mnemonicToSeed validates the phrase and returns the 64-byte BIP39 seed.
// The caller zeroes the seed.
func mnemonicToSeed(mnemonic, passphrase string) ([]byte, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}
	return bip39.NewSeed(NormalizeMnemonic(mnemonic), passphrase), nil
}
