// Package gateway is the currency-keyed facade over the configured chain
// adapters. Every verb resolves the adapter for a currency symbol and
// delegates; sends are bracketed by a credential session.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/mrz1836/cryptorpc/internal/chain"
	"github.com/mrz1836/cryptorpc/internal/chain/btc"
	"github.com/mrz1836/cryptorpc/internal/chain/eth"
	"github.com/mrz1836/cryptorpc/internal/chain/xrp"
	"github.com/mrz1836/cryptorpc/internal/dispatch"
	"github.com/mrz1836/cryptorpc/internal/events"
	"github.com/mrz1836/cryptorpc/internal/metrics"
	"github.com/mrz1836/cryptorpc/internal/transport"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// maxSuggestionDistance is the largest edit distance offered as "did you mean".
const maxSuggestionDistance = 2

// route is one configured currency.
type route struct {
	adapter    chain.Adapter
	dispatcher *dispatch.Dispatcher
	bus        *events.Bus
}

// Gateway routes unified verbs to the adapter configured for a currency.
type Gateway struct {
	routes      map[string]*route
	logger      *zap.Logger
	recorder    metrics.Recorder
	factory     chain.Factory
	eventBuffer int
	lockTimeout time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger handed to transports, sessions and dispatchers.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithMetrics sets the recorder for node round trips and payment outcomes.
func WithMetrics(r metrics.Recorder) Option {
	return func(g *Gateway) {
		if r != nil {
			g.recorder = r
		}
	}
}

// WithFactory replaces the adapter registry used by New.
func WithFactory(f chain.Factory) Option {
	return func(g *Gateway) {
		if f != nil {
			g.factory = f
		}
	}
}

// WithEventBuffer sets the channel capacity of subscriptions made with Events.
func WithEventBuffer(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.eventBuffer = n
		}
	}
}

// WithLockTimeout bounds the credential relock after a send.
func WithLockTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.lockTimeout = d
	}
}

// DefaultFactory returns a registry with every built-in adapter.
func DefaultFactory() *chain.ConfigurableFactory {
	f := chain.NewConfigurableFactory()
	f.Register(chain.XRP, xrp.Creator)
	f.Register(chain.ETH, eth.Creator)
	f.Register(chain.BTC, btc.Creator)
	return f
}

func newGateway(opts []Option) *Gateway {
	g := &Gateway{
		routes:      make(map[string]*route),
		logger:      zap.NewNop(),
		recorder:    metrics.Noop{},
		eventBuffer: events.DefaultBuffer,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.factory == nil {
		g.factory = DefaultFactory()
	}
	return g
}

// New dials a transport and builds an adapter for each config.
// Currency symbols must be unique, ignoring case.
func New(cfgs []chain.Config, opts ...Option) (*Gateway, error) {
	g := newGateway(opts)

	for _, cfg := range cfgs {
		if err := g.checkCurrency(cfg.Currency); err != nil {
			_ = g.Close()
			return nil, err
		}
		if !g.factory.IsSupported(cfg.Chain) {
			_ = g.Close()
			return nil, rpcerr.WithDetails(chain.ErrUnsupportedChain, map[string]string{
				"chain":    cfg.Chain.String(),
				"currency": cfg.Currency,
			})
		}

		dialect := transport.DialectJSONRPC
		if cfg.Chain == chain.XRP {
			dialect = transport.DialectRippled
		}
		t, err := transport.Dial(transport.Options{
			Endpoint:  cfg.DialEndpoint(),
			Dialect:   dialect,
			Label:     cfg.Currency,
			RateLimit: cfg.RateLimit,
			RateBurst: cfg.RateBurst,
			Recorder:  g.recorder,
			Logger:    g.logger,
		})
		if err != nil {
			_ = g.Close()
			return nil, err
		}

		adapter, err := g.factory.NewAdapter(cfg, t)
		if err != nil {
			_ = t.Close()
			_ = g.Close()
			return nil, err
		}
		g.add(adapter)
		g.logger.Debug("adapter configured",
			zap.String("currency", cfg.Currency),
			zap.Stringer("chain", cfg.Chain),
			zap.String("endpoint", cfg.Endpoint()))
	}
	return g, nil
}

// NewWithAdapters builds a gateway over already constructed adapters.
func NewWithAdapters(adapters []chain.Adapter, opts ...Option) (*Gateway, error) {
	g := newGateway(opts)
	for _, a := range adapters {
		if err := g.checkCurrency(a.Currency()); err != nil {
			return nil, err
		}
		g.add(a)
	}
	return g, nil
}

func (g *Gateway) checkCurrency(currency string) error {
	if currency == "" {
		return rpcerr.WithDetails(rpcerr.ErrConfigInvalid, map[string]string{"reason": "empty currency"})
	}
	if _, dup := g.routes[strings.ToUpper(currency)]; dup {
		return rpcerr.WithDetails(rpcerr.ErrConfigInvalid, map[string]string{
			"reason":   "duplicate currency",
			"currency": currency,
		})
	}
	return nil
}

func (g *Gateway) add(a chain.Adapter) {
	bus := events.NewBus()
	g.routes[strings.ToUpper(a.Currency())] = &route{
		adapter: a,
		bus:     bus,
		dispatcher: dispatch.New(a, bus,
			dispatch.WithLogger(g.logger),
			dispatch.WithMetrics(g.recorder),
			dispatch.WithLockTimeout(g.lockTimeout)),
	}
}

func (g *Gateway) route(currency string) (*route, error) {
	if r, ok := g.routes[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return r, nil
	}
	err := rpcerr.WithDetails(rpcerr.ErrUnknownCurrency, map[string]string{"currency": currency})
	if s := g.suggest(currency); s != "" {
		err = rpcerr.WithSuggestion(err, "did you mean "+s+"?")
	}
	return nil, err
}

// suggest returns the configured currency closest to the input, if close enough.
func (g *Gateway) suggest(input string) string {
	input = strings.ToUpper(strings.TrimSpace(input))
	minDist := math.MaxInt
	var suggestion string
	for _, c := range g.Currencies() {
		if dist := levenshtein.ComputeDistance(input, c); dist < minDist {
			minDist = dist
			suggestion = c
		}
	}
	if minDist <= maxSuggestionDistance {
		return suggestion
	}
	return ""
}

// Get returns the adapter for a currency, or ErrUnknownCurrency.
func (g *Gateway) Get(currency string) (chain.Adapter, error) {
	r, err := g.route(currency)
	if err != nil {
		return nil, err
	}
	return r.adapter, nil
}

// Currencies returns the configured currency symbols, sorted.
func (g *Gateway) Currencies() []string {
	out := make([]string, 0, len(g.routes))
	for c := range g.routes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Events subscribes to payment progress for a currency. The subscription
// stays open until cancel is called or the gateway is closed.
func (g *Gateway) Events(currency string) (<-chan events.Event, func(), error) {
	r, err := g.route(currency)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := r.bus.Subscribe(g.eventBuffer)
	return ch, cancel, nil
}

// Close closes every event bus and every adapter transport.
func (g *Gateway) Close() error {
	var errs []error
	for _, r := range g.routes {
		r.bus.Close()
		if c, ok := r.adapter.(chain.ClientCloser); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// GetTip returns the latest known block header.
func (g *Gateway) GetTip(ctx context.Context, currency string) (*chain.Tip, error) {
	r, err := g.route(currency)
	if err != nil {
		return nil, err
	}
	return r.adapter.GetTip(ctx)
}

// GetBestBlockHash returns the hash of the tip.
func (g *Gateway) GetBestBlockHash(ctx context.Context, currency string) (string, error) {
	tip, err := g.GetTip(ctx, currency)
	if err != nil {
		return "", err
	}
	return tip.Hash, nil
}

// GetBlock returns a block by hash or height.
func (g *Gateway) GetBlock(ctx context.Context, currency string, id chain.BlockID) (*chain.Block, error) {
	r, err := g.route(currency)
	if err != nil {
		return nil, err
	}
	if id.IsZero() {
		return nil, rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"reason": "block hash or height required"})
	}
	return r.adapter.GetBlock(ctx, id)
}

// GetTransaction returns a transaction by hash.
func (g *Gateway) GetTransaction(ctx context.Context, currency, txid string) (*chain.Transaction, error) {
	r, err := g.route(currency)
	if err != nil {
		return nil, err
	}
	return r.adapter.GetTransaction(ctx, txid)
}

// GetConfirmations returns how many blocks, inclusive, contain or follow the
// transaction's block. A transaction not yet in a block has 0.
func (g *Gateway) GetConfirmations(ctx context.Context, currency, txid string) (uint64, error) {
	r, err := g.route(currency)
	if err != nil {
		return 0, err
	}
	tx, err := r.adapter.GetTransaction(ctx, txid)
	if err != nil {
		return 0, err
	}
	if tx.BlockHeight == nil {
		return 0, nil
	}
	tip, err := r.adapter.GetTip(ctx)
	if err != nil {
		return 0, err
	}
	return chain.Confirmations(tip.Height, tx.BlockHeight), nil
}

// GetBalance returns an address balance in the chain's smallest unit.
func (g *Gateway) GetBalance(ctx context.Context, currency, address string) (*big.Int, error) {
	r, err := g.route(currency)
	if err != nil {
		return nil, err
	}
	return r.adapter.GetBalance(ctx, address)
}

// ValidateAddress reports whether address is structurally valid for the currency.
func (g *Gateway) ValidateAddress(currency, address string) (bool, error) {
	r, err := g.route(currency)
	if err != nil {
		return false, err
	}
	return r.adapter.ValidateAddress(address), nil
}

// EstimateFee returns the node's current fee quote.
func (g *Gateway) EstimateFee(ctx context.Context, currency string) (string, error) {
	r, err := g.route(currency)
	if err != nil {
		return "", err
	}
	return r.adapter.EstimateFee(ctx)
}

// SendToAddress is UnlockAndSendToAddress under its shorter name.
func (g *Gateway) SendToAddress(ctx context.Context, currency string, p chain.PaymentRequest, secret []byte, source string) (string, error) {
	return g.UnlockAndSendToAddress(ctx, currency, p, secret, source)
}

// UnlockAndSendToAddress opens a session, sends one payment and closes the
// session. The send error wins over a relock error. Sends on one currency
// never overlap, whether single or batched.
func (g *Gateway) UnlockAndSendToAddress(ctx context.Context, currency string, p chain.PaymentRequest, secret []byte, source string) (string, error) {
	r, err := g.route(currency)
	if err != nil {
		return "", err
	}
	return r.dispatcher.Send(ctx, p, secret, source)
}

// UnlockAndSendToAddressMany sends a batch under one session. See
// dispatch.Dispatcher.SendMany for the result contract.
func (g *Gateway) UnlockAndSendToAddressMany(ctx context.Context, currency string, payments []chain.PaymentRequest, secret []byte, source string) ([]chain.PaymentResult, error) {
	r, err := g.route(currency)
	if err != nil {
		return nil, err
	}
	return r.dispatcher.SendMany(ctx, payments, secret, source)
}

// SubmitSignedTransaction forwards an externally signed transaction verbatim.
func (g *Gateway) SubmitSignedTransaction(ctx context.Context, currency, signedTx string) (string, error) {
	r, err := g.route(currency)
	if err != nil {
		return "", err
	}
	return r.adapter.SubmitSignedTransaction(ctx, signedTx)
}

// Request forwards one node method over the currency's transport and returns
// the raw result. Errors reported by the node come back as ErrNodeError with
// the node's code and name in Details.
func (g *Gateway) Request(ctx context.Context, currency, method string, params any) (json.RawMessage, error) {
	r, err := g.route(currency)
	if err != nil {
		return nil, err
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"reason": "method required"})
	}
	rr, ok := r.adapter.(chain.RawRequester)
	if !ok {
		return nil, rpcerr.WithDetails(rpcerr.ErrNotSupported, map[string]string{
			"currency": currency,
			"reason":   "adapter has no raw transport",
		})
	}

	result, err := rr.Request(ctx, method, params)
	if ne, isNode := transport.AsNodeError(err); isNode {
		details := map[string]string{"method": method, "code": strconv.Itoa(ne.Code)}
		if ne.Name != "" {
			details["name"] = ne.Name
		}
		return nil, rpcerr.WithDetails(rpcerr.WithCause(rpcerr.ErrNodeError, ne), details)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
