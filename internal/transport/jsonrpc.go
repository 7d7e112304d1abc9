package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

const (
	// defaultHTTPTimeout bounds a single HTTP round trip.
	defaultHTTPTimeout = 30 * time.Second

	// maxResponseBody caps how much of a response body is read.
	maxResponseBody int64 = 16 << 20
)

// HTTPOptions contains optional configuration for the HTTP client.
type HTTPOptions struct {
	// Dialect selects the envelope; defaults to DialectJSONRPC.
	Dialect Dialect
	// Transport overrides the default HTTP transport.
	Transport http.RoundTripper
	// Timeout overrides the default per-request timeout.
	Timeout time.Duration
}

// HTTPClient is a minimal JSON-RPC client over HTTP POST.
// Basic auth credentials embedded in the URL are sent by net/http.
type HTTPClient struct {
	url        string
	dialect    Dialect
	httpClient *http.Client
	idCounter  atomic.Uint64
}

// NewHTTPClient creates a new HTTP JSON-RPC client.
func NewHTTPClient(url string, opts *HTTPOptions) *HTTPClient {
	c := &HTTPClient{
		url:        url,
		dialect:    DialectJSONRPC,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	if opts != nil {
		if opts.Dialect != "" {
			c.dialect = opts.Dialect
		}
		if opts.Transport != nil {
			c.httpClient.Transport = opts.Transport
		}
		if opts.Timeout > 0 {
			c.httpClient.Timeout = opts.Timeout
		}
	}
	return c
}

// jsonrpcRequest represents a JSON-RPC 2.0 request.
type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      uint64 `json:"id"`
}

// jsonrpcResponse represents a JSON-RPC response. bitcoind also fills
// "error" with null on success, which decodes to a nil pointer.
type jsonrpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// rippledHTTPResponse represents a rippled JSON-RPC response, which reports
// errors inside the result object.
type rippledHTTPResponse struct {
	Result json.RawMessage `json:"result"`
}

// Request performs a JSON-RPC call.
func (c *HTTPClient) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := c.encode(method, params)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, rpcerr.WithCause(rpcerr.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, rpcerr.WithCause(rpcerr.ErrTransport, err)
	}
	// Body.Close error is intentionally ignored as it only fails if the
	// connection is already broken, and there's no recovery action.
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, rpcerr.WithCause(rpcerr.ErrTransport, err)
	}

	// bitcoind answers node errors with 404/500 and a JSON body, so the
	// status code alone does not decide.
	if httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden ||
		(httpResp.StatusCode >= 300 && len(bytes.TrimSpace(respBody)) == 0) {
		return nil, rpcerr.WithDetails(rpcerr.ErrTransport, map[string]string{
			"status": fmt.Sprintf("%d", httpResp.StatusCode),
		})
	}

	if c.dialect == DialectRippled {
		return decodeRippledHTTP(respBody)
	}
	return decodeJSONRPC(respBody)
}

// Close closes idle connections.
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) encode(method string, params any) ([]byte, error) {
	if c.dialect == DialectRippled {
		if params == nil {
			params = map[string]any{}
		}
		return json.Marshal(struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}{Method: method, Params: []any{params}})
	}

	if params == nil {
		params = []any{}
	}
	return json.Marshal(jsonrpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.idCounter.Add(1),
	})
}

func decodeJSONRPC(body []byte) (json.RawMessage, error) {
	var resp jsonrpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, rpcerr.WithCause(rpcerr.ErrInvalidResponse, err)
	}
	if resp.Error != nil {
		return nil, &NodeError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp.Result, nil
}

func decodeRippledHTTP(body []byte) (json.RawMessage, error) {
	var resp rippledHTTPResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, rpcerr.WithCause(rpcerr.ErrInvalidResponse, err)
	}
	if err := rippledStatusError(resp.Result); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// rippledStatus is the status/error block rippled attaches to results.
type rippledStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// rippledStatusError returns a *NodeError when a rippled payload reports an error.
func rippledStatusError(payload json.RawMessage) error {
	if len(payload) == 0 {
		return rpcerr.WithDetails(rpcerr.ErrInvalidResponse, map[string]string{"reason": "empty result"})
	}
	var st rippledStatus
	if err := json.Unmarshal(payload, &st); err != nil {
		return rpcerr.WithCause(rpcerr.ErrInvalidResponse, err)
	}
	if st.Status == "error" || st.Error != "" {
		return &NodeError{Code: st.ErrorCode, Name: st.Error, Message: st.ErrorMessage}
	}
	return nil
}

// Compile-time interface check
var _ Transport = (*HTTPClient)(nil)
