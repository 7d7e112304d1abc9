// Package api exposes the gateway verbs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrz1836/cryptorpc/internal/chain"
	"github.com/mrz1836/cryptorpc/internal/output"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// Gateway is the facade surface served over HTTP.
type Gateway interface {
	GetTip(ctx context.Context, currency string) (*chain.Tip, error)
	GetBestBlockHash(ctx context.Context, currency string) (string, error)
	GetBlock(ctx context.Context, currency string, id chain.BlockID) (*chain.Block, error)
	GetTransaction(ctx context.Context, currency, txid string) (*chain.Transaction, error)
	GetConfirmations(ctx context.Context, currency, txid string) (uint64, error)
	GetBalance(ctx context.Context, currency, address string) (*big.Int, error)
	ValidateAddress(currency, address string) (bool, error)
	EstimateFee(ctx context.Context, currency string) (string, error)
	UnlockAndSendToAddress(ctx context.Context, currency string, p chain.PaymentRequest, secret []byte, source string) (string, error)
	UnlockAndSendToAddressMany(ctx context.Context, currency string, payments []chain.PaymentRequest, secret []byte, source string) ([]chain.PaymentResult, error)
	SubmitSignedTransaction(ctx context.Context, currency, signedTx string) (string, error)
	Request(ctx context.Context, currency, method string, params any) (json.RawMessage, error)
	Currencies() []string
}

var ginMode sync.Once

// Server routes HTTP requests to a Gateway.
type Server struct {
	gateway Gateway
	logger  *zap.Logger
	metrics http.Handler
	engine  *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// New builds the router.
func New(g Gateway, opts ...Option) *Server {
	s := &Server{gateway: g, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	ginMode.Do(func() { gin.SetMode(gin.ReleaseMode) })
	e := gin.New()
	e.Use(gin.Recovery(), s.accessLog())

	e.GET("/currencies", s.currencies)
	v1 := e.Group("/v1/:currency")
	v1.GET("/tip", s.tip)
	v1.GET("/besthash", s.bestHash)
	v1.GET("/fee", s.fee)
	v1.GET("/block/:id", s.block)
	v1.GET("/balance/:address", s.balance)
	v1.GET("/tx/:txid", s.transaction)
	v1.GET("/tx/:txid/confirmations", s.confirmations)
	v1.GET("/address/:address/valid", s.validate)
	v1.POST("/send", s.send)
	v1.POST("/send-many", s.sendMany)
	v1.POST("/submit", s.submit)
	v1.POST("/rpc", s.rpc)

	if s.metrics != nil {
		e.GET("/metrics", gin.WrapH(s.metrics))
	}

	s.engine = e
	return s
}

// Handler returns the http.Handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("api listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

// statusFor maps an error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case rpcerr.Is(err, rpcerr.ErrTransport):
		return http.StatusBadGateway
	case rpcerr.Is(err, rpcerr.ErrSubmissionRejected), rpcerr.Is(err, rpcerr.ErrNodeError):
		return http.StatusUnprocessableEntity
	}
	switch rpcerr.ExitCode(err) {
	case rpcerr.ExitInput:
		return http.StatusBadRequest
	case rpcerr.ExitAuth:
		return http.StatusUnauthorized
	case rpcerr.ExitNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.String("route", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, output.ErrorOutput{Error: output.DetailFor(err)})
}
