// Package session brackets a signing credential for the span of one send or
// batch send: the secret is copied into locked memory, the adapter unlocks it,
// and Close relocks and zeroes it exactly once.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mrz1836/cryptorpc/internal/chain"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// DefaultLockTimeout bounds the relock round trip on Close.
const DefaultLockTimeout = 10 * time.Second

// Session owns one credential between Open and Close.
type Session struct {
	locker      chain.Locker
	secret      *SecureBytes
	cred        *chain.Credential
	logger      *zap.Logger
	lockTimeout time.Duration

	closeOnce sync.Once
	closed    atomic.Bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLockTimeout overrides DefaultLockTimeout.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// Open copies secret into locked memory and asks locker to unlock it.
// The caller may wipe its own copy as soon as Open returns. On failure the
// secure copy is destroyed and no session exists.
func Open(ctx context.Context, locker chain.Locker, secret []byte, source string, opts ...Option) (*Session, error) {
	if len(secret) == 0 {
		return nil, rpcerr.WithDetails(rpcerr.ErrCredential, map[string]string{"reason": "empty secret"})
	}

	s := &Session{
		locker:      locker,
		secret:      NewSecureBytes(secret),
		logger:      zap.NewNop(),
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cred = &chain.Credential{Secret: s.secret.Bytes(), SourceAddress: source}

	if err := locker.Unlock(ctx, s.cred); err != nil {
		s.destroy()
		s.closed.Store(true)
		return nil, err
	}
	s.logger.Debug("credential unlocked",
		zap.String("source", source),
		zap.Bool("mlocked", s.secret.IsLocked()))
	return s, nil
}

// Credential returns the unlocked credential, or ErrSessionClosed after Close.
func (s *Session) Credential() (*chain.Credential, error) {
	if s.closed.Load() {
		return nil, rpcerr.ErrSessionClosed
	}
	return s.cred, nil
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Close relocks the credential and zeroes the secret. Only the first call
// does anything; later calls return nil. The secret is zeroed even when the
// relock fails, and the relock still runs if ctx is already canceled.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		lockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.lockTimeout)
		defer cancel()

		err = s.locker.Lock(lockCtx, s.cred)
		s.destroy()
		s.closed.Store(true)

		if err != nil {
			s.logger.Warn("credential relock failed", zap.Error(err))
		} else {
			s.logger.Debug("credential locked")
		}
	})
	return err
}

func (s *Session) destroy() {
	s.secret.Destroy()
	if s.cred != nil {
		s.cred.Secret = nil
	}
}
