package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

const defaultHandshakeTimeout = 10 * time.Second

// errConnectionClosed is reported to requests still pending when the
// read loop ends.
var errConnectionClosed = errors.New("websocket connection closed")

// WSOptions contains optional configuration for the WebSocket client.
type WSOptions struct {
	Logger           *zap.Logger
	HandshakeTimeout time.Duration
}

// WSClient speaks the rippled command protocol over a WebSocket.
// Requests carry an id and are matched to responses by a read loop, so
// several requests may be in flight on one connection. The connection is
// dialed on first use and redialed on the next request after it drops.
type WSClient struct {
	url    string
	dialer *websocket.Dialer
	logger *zap.Logger

	mu      sync.Mutex // guards conn, pending, nextID, closed
	writeMu sync.Mutex // serializes writes to conn
	conn    *websocket.Conn
	pending map[uint64]chan wsResponse
	nextID  uint64
	closed  bool
}

// wsResponse is a rippled command response.
type wsResponse struct {
	ID     uint64          `json:"id"`
	Type   string          `json:"type"`
	Result json.RawMessage `json:"result"`
	rippledStatus

	err error // set locally when the connection fails
}

// NewWSClient creates a WebSocket client for url.
func NewWSClient(url string, opts *WSOptions) *WSClient {
	c := &WSClient{
		url:     url,
		dialer:  &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		logger:  zap.NewNop(),
		pending: make(map[uint64]chan wsResponse),
	}
	if opts != nil {
		if opts.Logger != nil {
			c.logger = opts.Logger
		}
		if opts.HandshakeTimeout > 0 {
			c.dialer.HandshakeTimeout = opts.HandshakeTimeout
		}
	}
	return c
}

// Request sends a command and waits for its response.
func (c *WSClient) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	frame, err := commandFrame(method, params)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	conn, id, ch, err := c.register(ctx)
	if err != nil {
		return nil, err
	}
	frame["id"] = mustRaw(id)

	c.writeMu.Lock()
	err = conn.WriteJSON(frame)
	c.writeMu.Unlock()
	if err != nil {
		c.unregister(id)
		return nil, rpcerr.WithCause(rpcerr.ErrTransport, err)
	}

	select {
	case resp := <-ch:
		if resp.err != nil {
			return nil, rpcerr.WithCause(rpcerr.ErrTransport, resp.err)
		}
		if resp.Status == "error" || resp.Error != "" {
			return nil, &NodeError{Code: resp.ErrorCode, Name: resp.Error, Message: resp.ErrorMessage}
		}
		// Some rippled versions report command errors inside result.
		if err := rippledStatusError(resp.Result); err != nil {
			return nil, err
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.unregister(id)
		return nil, rpcerr.WithCause(rpcerr.ErrTransport, ctx.Err())
	}
}

// Close closes the connection and fails pending requests.
func (c *WSClient) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

// register ensures a live connection and reserves a response slot.
func (c *WSClient) register(ctx context.Context) (*websocket.Conn, uint64, chan wsResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, 0, nil, rpcerr.WithCause(rpcerr.ErrTransport, errConnectionClosed)
	}
	if c.conn == nil {
		conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, 0, nil, rpcerr.WithCause(rpcerr.ErrTransport, err)
		}
		c.logger.Debug("websocket connected", zap.String("url", c.url))
		c.conn = conn
		go c.readLoop(conn)
	}

	c.nextID++
	ch := make(chan wsResponse, 1)
	c.pending[c.nextID] = ch
	return c.conn, c.nextID, ch, nil
}

func (c *WSClient) unregister(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop delivers responses until the connection fails.
func (c *WSClient) readLoop(conn *websocket.Conn) {
	for {
		var resp wsResponse
		if err := conn.ReadJSON(&resp); err != nil {
			c.drop(conn, err)
			return
		}
		if resp.Type != "" && resp.Type != "response" {
			// Stream messages (ledgerClosed, transaction) are not requested here.
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

// drop forgets a failed connection and fails all pending requests.
func (c *WSClient) drop(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	pending := c.pending
	c.pending = make(map[uint64]chan wsResponse)
	closed := c.closed
	c.mu.Unlock()

	_ = conn.Close()
	if !closed {
		c.logger.Debug("websocket dropped", zap.String("url", c.url), zap.Error(cause))
	}

	for _, ch := range pending {
		ch <- wsResponse{err: fmt.Errorf("%w: %w", errConnectionClosed, cause)}
	}
}

// commandFrame flattens params into a rippled command object.
func commandFrame(method string, params any) (map[string]json.RawMessage, error) {
	frame := make(map[string]json.RawMessage)
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("params must be a JSON object: %w", err)
		}
	}
	frame["command"] = mustRaw(method)
	return frame, nil
}

func mustRaw(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

// Compile-time interface check
var _ Transport = (*WSClient)(nil)
