// Package dispatch executes batches of payments against one adapter under a
// single credential session.
package dispatch

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mrz1836/cryptorpc/internal/chain"
	"github.com/mrz1836/cryptorpc/internal/events"
	"github.com/mrz1836/cryptorpc/internal/metrics"
	"github.com/mrz1836/cryptorpc/internal/session"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// ErrNotSubmitted marks payments skipped because the batch context ended first.
var ErrNotSubmitted = &rpcerr.RPCError{
	Code:     "NOT_SUBMITTED",
	Message:  "payment not submitted",
	ExitCode: rpcerr.ExitGeneral,
}

// Payer is the adapter surface a batch needs.
type Payer interface {
	chain.Identifier
	chain.Locker
	chain.Sender
}

// Dispatcher sends payments for one adapter and publishes one event per
// batch payment. Sends are serialized: a node-side unlock is shared account
// state, so one session's relock must not land inside another's sends.
type Dispatcher struct {
	payer       Payer
	bus         *events.Bus
	recorder    metrics.Recorder
	logger      *zap.Logger
	lockTimeout time.Duration

	mu      sync.Mutex
	batches atomic.Uint64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the recorder that observes payment outcomes.
func WithMetrics(r metrics.Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithLockTimeout bounds the relock at the end of a batch.
func WithLockTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		d.lockTimeout = t
	}
}

// New creates a dispatcher. A nil bus gets a private one nobody listens to.
func New(payer Payer, bus *events.Bus, opts ...Option) *Dispatcher {
	if bus == nil {
		bus = events.NewBus()
	}
	d := &Dispatcher{
		payer:    payer,
		bus:      bus,
		recorder: metrics.Noop{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Bus returns the bus events are published on.
func (d *Dispatcher) Bus() *events.Bus {
	return d.bus
}

func (d *Dispatcher) open(ctx context.Context, secret []byte, source string) (*session.Session, error) {
	return session.Open(ctx, d.payer, secret, source,
		session.WithLogger(d.logger),
		session.WithLockTimeout(d.lockTimeout))
}

func (d *Dispatcher) close(ctx context.Context, sess *session.Session) error {
	err := sess.Close(ctx)
	if err != nil {
		d.logger.Warn("relock failed", zap.String("currency", d.payer.Currency()), zap.Error(err))
	}
	return err
}

// Send unlocks, sends one payment and relocks. The send error wins over a
// relock error. A payment whose request could not be parsed fails before
// the unlock. No event is published.
func (d *Dispatcher) Send(ctx context.Context, p chain.PaymentRequest, secret []byte, source string) (txid string, err error) {
	if err := checkRequest(p); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sess, err := d.open(ctx, secret, source)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := d.close(ctx, sess); cerr != nil && err == nil {
			txid, err = "", cerr
		}
	}()

	currency := d.payer.Currency()
	txid, err = d.sendOne(ctx, sess, p)
	d.recorder.ObservePayment(currency, err == nil)
	if err != nil {
		return "", err
	}
	d.logger.Debug("payment submitted",
		zap.String("currency", currency),
		zap.String("address", p.Address),
		zap.Stringer("amount", p.Amount),
		zap.String("txid", txid))
	return txid, nil
}

// SendMany unlocks once, sends every payment in order and relocks.
//
// The returned slice always has one entry per payment, in input order, each
// carrying either a transaction hash or the error that payment hit. A failed
// payment never stops the batch, and neither does a request that could not
// be parsed. The only batch-level error is a failed unlock, in which case
// nothing is sent and the results are nil. Events are published before
// SendMany returns and carry a batch number unique to this dispatcher.
func (d *Dispatcher) SendMany(ctx context.Context, payments []chain.PaymentRequest, secret []byte, source string) ([]chain.PaymentResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sess, err := d.open(ctx, secret, source)
	if err != nil {
		return nil, err
	}
	defer func() { _ = d.close(ctx, sess) }()

	return d.run(ctx, d.batches.Add(1), sess, payments), nil
}

func (d *Dispatcher) run(ctx context.Context, batch uint64, sess *session.Session, payments []chain.PaymentRequest) []chain.PaymentResult {
	currency := d.payer.Currency()
	results := make([]chain.PaymentResult, len(payments))

	d.logger.Debug("batch started",
		zap.String("currency", currency),
		zap.Uint64("batch", batch),
		zap.Int("payments", len(payments)),
		zap.Int("subscribers", d.bus.Subscribers()))

	for i, p := range payments {
		res := chain.PaymentResult{Address: p.Address, Amount: p.Amount}
		res.TxID, res.Err = d.sendOne(ctx, sess, p)
		results[i] = res
		d.report(batch, i, currency, res)
	}

	return results
}

func (d *Dispatcher) sendOne(ctx context.Context, sess *session.Session, p chain.PaymentRequest) (string, error) {
	if err := checkRequest(p); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", rpcerr.WithCause(ErrNotSubmitted, err)
	}
	cred, err := sess.Credential()
	if err != nil {
		return "", err
	}
	return d.payer.Send(ctx, p.Address, p.Amount, cred)
}

// checkRequest fails requests that never parsed or carry no amount.
func checkRequest(p chain.PaymentRequest) error {
	if p.Invalid != nil {
		return p.Invalid
	}
	if p.Amount == nil {
		return rpcerr.WithDetails(rpcerr.ErrInvalidAmount, map[string]string{"address": p.Address})
	}
	return nil
}

func (d *Dispatcher) report(batch uint64, i int, currency string, res chain.PaymentResult) {
	ev := events.Event{
		Kind:     events.KindSuccess,
		Currency: currency,
		Batch:    batch,
		Index:    i,
		Address:  res.Address,
		Amount:   copyAmount(res.Amount),
		TxID:     res.TxID,
		Err:      res.Err,
	}
	fields := []zap.Field{
		zap.String("currency", currency),
		zap.Uint64("batch", batch),
		zap.Int("index", i),
		zap.String("address", res.Address),
		zap.Stringer("amount", ev.Amount),
	}

	if !res.OK() {
		ev.Kind = events.KindFailure
		d.logger.Warn("payment failed", append(fields, zap.Error(res.Err))...)
	} else {
		d.logger.Debug("payment submitted", append(fields, zap.String("txid", res.TxID))...)
	}

	d.recorder.ObservePayment(currency, res.OK())
	d.bus.Publish(ev)
}

func copyAmount(a *big.Int) *big.Int {
	if a == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a)
}
