package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mrz1836/cryptorpc/internal/metrics"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// limited waits for a rate limiter token before each request.
type limited struct {
	next    Transport
	limiter *RateLimiter
	key     string
}

// WithRateLimit wraps t so every request first waits on limiter under key.
func WithRateLimit(t Transport, limiter *RateLimiter, key string) Transport {
	return &limited{next: t, limiter: limiter, key: key}
}

func (l *limited) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := l.limiter.Wait(ctx, l.key); err != nil {
		return nil, rpcerr.WithCause(rpcerr.ErrTransport, err)
	}
	return l.next.Request(ctx, method, params)
}

func (l *limited) Close() error { return l.next.Close() }

// instrumented records each round trip on a metrics.Recorder.
type instrumented struct {
	next     Transport
	recorder metrics.Recorder
	label    string
}

// WithMetrics wraps t so every request is observed by rec under label.
func WithMetrics(t Transport, rec metrics.Recorder, label string) Transport {
	return &instrumented{next: t, recorder: rec, label: label}
}

func (i *instrumented) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	start := time.Now()
	result, err := i.next.Request(ctx, method, params)
	i.recorder.ObserveRPC(i.label, method, time.Since(start), err)
	return result, err
}

func (i *instrumented) Close() error { return i.next.Close() }
