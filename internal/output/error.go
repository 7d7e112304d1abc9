package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// ErrorOutput represents a structured error for JSON output.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// DetailFor flattens err into an ErrorDetail. Non-RPCError values become
// GENERAL_ERROR with the full error text. Details stay out of Message.
func DetailFor(err error) ErrorDetail {
	var re *rpcerr.RPCError
	if errors.As(err, &re) {
		msg := re.Message
		if re.Cause != nil {
			msg += ": " + re.Cause.Error()
		}
		return ErrorDetail{
			Code:       re.Code,
			Message:    msg,
			Details:    re.Details,
			Suggestion: re.Suggestion,
			ExitCode:   re.ExitCode,
		}
	}
	return ErrorDetail{
		Code:     rpcerr.ErrGeneral.Code,
		Message:  err.Error(),
		ExitCode: rpcerr.ExitGeneral,
	}
}

// FormatError formats an error for display.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ErrorOutput{Error: DetailFor(err)})
	}
	return formatErrorText(w, err)
}

// formatErrorText outputs error in text format. Details print in key order.
func formatErrorText(w io.Writer, err error) error {
	var sb strings.Builder
	d := DetailFor(err)
	sb.WriteString(fmt.Sprintf("Error: %s\n", d.Message))

	if len(d.Details) > 0 {
		keys := make([]string, 0, len(d.Details))
		for k := range d.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\nDetails:\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, d.Details[k]))
		}
	}

	if d.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("\nSuggestion: %s\n", d.Suggestion))
	}

	_, writeErr := io.WriteString(w, sb.String())
	return writeErr
}
