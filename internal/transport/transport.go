// Package transport provides the node transport collaborators consumed by
// chain adapters: a request/response capability over HTTP JSON-RPC or a
// rippled-style WebSocket command stream, plus rate limiting and metrics decorators.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/mrz1836/cryptorpc/internal/metrics"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// Transport submits a request to a node and awaits its response.
// Connectivity failures wrap errors.ErrTransport; node-reported errors are *NodeError.
type Transport interface {
	// Request performs one round trip and returns the raw result payload.
	Request(ctx context.Context, method string, params any) (json.RawMessage, error)

	// Close releases the underlying connection.
	Close() error
}

// Dialect selects the request/response envelope spoken by the node.
type Dialect string

// Supported dialects.
const (
	// DialectJSONRPC is JSON-RPC 2.0 with positional params (Ethereum, bitcoind).
	DialectJSONRPC Dialect = "jsonrpc"
	// DialectRippled is the rippled command API (single params object).
	DialectRippled Dialect = "rippled"
)

// NodeError is an error reported by the node itself rather than the connection.
type NodeError struct {
	Code    int    // Numeric error code, when the node provides one
	Name    string // Symbolic error name (rippled "txnNotFound", etc.)
	Message string // Human-readable message
}

func (e *NodeError) Error() string {
	switch {
	case e.Name != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Name, e.Message)
	case e.Name != "":
		return e.Name
	default:
		return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
	}
}

// AsNodeError extracts a *NodeError from err.
func AsNodeError(err error) (*NodeError, bool) {
	var ne *NodeError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

// ErrUnsupportedScheme indicates the endpoint scheme has no transport.
var ErrUnsupportedScheme = &rpcerr.RPCError{
	Code:     "UNSUPPORTED_SCHEME",
	Message:  "unsupported transport scheme",
	ExitCode: rpcerr.ExitInput,
}

// Options configures Dial.
type Options struct {
	Endpoint  string
	Dialect   Dialect
	Label     string // Metrics/log label, usually the currency symbol
	RateLimit float64
	RateBurst int
	Recorder  metrics.Recorder
	Logger    *zap.Logger
}

// Dial builds the transport for an endpoint, picking WebSocket or HTTP by
// scheme and wrapping it with rate limiting and instrumentation.
// WebSocket connections are established lazily on the first request.
func Dial(opts Options) (Transport, error) {
	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, rpcerr.WithDetails(rpcerr.WithCause(ErrUnsupportedScheme, err), map[string]string{
			"endpoint": opts.Endpoint,
		})
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var base Transport
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		if opts.Dialect != DialectRippled {
			return nil, rpcerr.WithDetails(ErrUnsupportedScheme, map[string]string{
				"scheme":  u.Scheme,
				"dialect": string(opts.Dialect),
			})
		}
		base = NewWSClient(opts.Endpoint, &WSOptions{Logger: logger})
	case "http", "https":
		base = NewHTTPClient(opts.Endpoint, &HTTPOptions{Dialect: opts.Dialect})
	default:
		return nil, rpcerr.WithDetails(ErrUnsupportedScheme, map[string]string{
			"scheme": u.Scheme,
		})
	}

	t := base
	if opts.RateLimit > 0 {
		t = WithRateLimit(t, NewRateLimiter(opts.RateLimit, max(opts.RateBurst, 1)), opts.Label)
	}
	if opts.Recorder != nil {
		t = WithMetrics(t, opts.Recorder, opts.Label)
	}
	return t, nil
}
