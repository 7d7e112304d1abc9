// Package errors provides structured error handling for cryptorpc.
// It defines the error taxonomy shared by every chain adapter, exit codes,
// and helpers for adding context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes used by the CLI and mapped to HTTP statuses by the API.
const (
	ExitSuccess  = 0 // Successful execution
	ExitGeneral  = 1 // General/unknown error
	ExitInput    = 2 // Invalid input
	ExitAuth     = 3 // Credential rejected
	ExitNotFound = 4 // Resource not found
)

// RPCError is the structured error type for cryptorpc.
type RPCError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for the caller
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *RPCError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *RPCError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for RPCError. Two RPCErrors match when their codes match.
func (e *RPCError) Is(target error) bool {
	var t *RPCError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &RPCError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	// ErrUnknownCurrency is returned when no adapter is configured for a currency.
	ErrUnknownCurrency = &RPCError{
		Code:     "UNKNOWN_CURRENCY",
		Message:  "no adapter configured for currency",
		ExitCode: ExitInput,
	}

	// ErrTransport covers connectivity failures talking to a node. Never retried.
	ErrTransport = &RPCError{
		Code:     "TRANSPORT_ERROR",
		Message:  "node communication failed",
		ExitCode: ExitGeneral,
	}

	ErrNotFound = &RPCError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	ErrInvalidAddress = &RPCError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	// ErrSubmissionRejected is returned when the node refuses a payment.
	ErrSubmissionRejected = &RPCError{
		Code:     "SUBMISSION_REJECTED",
		Message:  "transaction rejected by node",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &RPCError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrInvalidAmount = &RPCError{
		Code:     "INVALID_AMOUNT",
		Message:  "invalid amount",
		ExitCode: ExitInput,
	}

	ErrInvalidResponse = &RPCError{
		Code:     "INVALID_RESPONSE",
		Message:  "unexpected node response",
		ExitCode: ExitGeneral,
	}

	ErrNotSupported = &RPCError{
		Code:     "NOT_SUPPORTED",
		Message:  "operation not supported for this chain",
		ExitCode: ExitInput,
	}

	// ErrCredential is returned when a secret cannot unlock signing capability.
	ErrCredential = &RPCError{
		Code:     "CREDENTIAL_REJECTED",
		Message:  "credential rejected",
		ExitCode: ExitAuth,
	}

	ErrSessionClosed = &RPCError{
		Code:     "SESSION_CLOSED",
		Message:  "credential session already closed",
		ExitCode: ExitGeneral,
	}

	ErrNodeError = &RPCError{
		Code:     "NODE_ERROR",
		Message:  "node returned an error",
		ExitCode: ExitGeneral,
	}

	ErrConfigNotFound = &RPCError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &RPCError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new RPCError with the given code and message.
func New(code, message string) *RPCError {
	return &RPCError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var re *RPCError
	if errors.As(err, &re) {
		return &RPCError{
			Code:       re.Code,
			Message:    fmt.Sprintf("%s: %s", msg, re.Message),
			Details:    re.Details,
			Suggestion: re.Suggestion,
			Cause:      err,
			ExitCode:   re.ExitCode,
		}
	}

	return &RPCError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause attaches an underlying cause to a sentinel, keeping its code.
func WithCause(sentinel *RPCError, cause error) error {
	return &RPCError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		Suggestion: sentinel.Suggestion,
		Cause:      cause,
		ExitCode:   sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var re *RPCError
	if errors.As(err, &re) {
		return &RPCError{
			Code:       re.Code,
			Message:    re.Message,
			Details:    details,
			Suggestion: re.Suggestion,
			Cause:      re.Cause,
			ExitCode:   re.ExitCode,
		}
	}

	return &RPCError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var re *RPCError
	if errors.As(err, &re) {
		return &RPCError{
			Code:       re.Code,
			Message:    re.Message,
			Details:    re.Details,
			Suggestion: suggestion,
			Cause:      re.Cause,
			ExitCode:   re.ExitCode,
		}
	}

	return &RPCError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var re *RPCError
	if errors.As(err, &re) {
		return re.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var re *RPCError
	if errors.As(err, &re) {
		return re.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
