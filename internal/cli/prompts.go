package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mrz1836/cryptorpc/internal/config"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// Prompt hooks, replaced in tests.
//
//nolint:gochecknoglobals // swapped by tests
var (
	promptPasswordFn = promptPassword
	promptConfirmFn  = promptConfirmation
	isTerminalFn     = func() bool { return term.IsTerminal(stdinFd()) }
)

func stdinFd() int {
	return int(os.Stdin.Fd()) //nolint:gosec // G115: Fd() returns uintptr, safe conversion for term
}

// promptPassword prompts for a secret with hidden input.
// The caller is responsible for zeroing the returned bytes after use.
func promptPassword(prompt string) ([]byte, error) {
	out(os.Stderr, "%s", prompt)

	password, err := term.ReadPassword(stdinFd())
	outln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("reading secret: %w", err)
	}

	return password, nil
}

// promptConfirmation asks the user to confirm a payment summary.
func promptConfirmation(summary string) bool {
	out(os.Stderr, "%s\nSend? [y/N]: ", summary)

	var response string
	if _, err := fmt.Scanln(&response); err != nil {
		return false
	}

	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// resolveSecret returns the signing secret from --secret, then
// CRYPTORPC_SECRET, then an interactive prompt. The caller zeroes the result.
func resolveSecret(flag, currency string) ([]byte, error) {
	if flag != "" {
		return []byte(flag), nil
	}
	if v := os.Getenv(config.EnvSecret); v != "" {
		return []byte(v), nil
	}
	if !isTerminalFn() {
		return nil, rpcerr.WithSuggestion(
			rpcerr.WithDetails(rpcerr.ErrCredential, map[string]string{"reason": "no secret provided"}),
			fmt.Sprintf("pass --secret or set %s", config.EnvSecret),
		)
	}

	secret, err := promptPasswordFn(fmt.Sprintf("Enter %s signing secret: ", currency))
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, rpcerr.WithDetails(rpcerr.ErrCredential, map[string]string{"reason": "empty secret"})
	}
	return secret, nil
}
