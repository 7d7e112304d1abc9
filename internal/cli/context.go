package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrz1836/cryptorpc/internal/config"
	"github.com/mrz1836/cryptorpc/internal/gateway"
	"github.com/mrz1836/cryptorpc/internal/metrics"
	"github.com/mrz1836/cryptorpc/internal/output"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// FacadeOpener builds the gateway for a configuration.
type FacadeOpener func(cfg *config.Config, logger *zap.Logger, rec metrics.Recorder) (Facade, error)

//nolint:gochecknoglobals // replaced in tests
var facadeOpener FacadeOpener = openGateway

// openGateway dials every configured chain.
func openGateway(cfg *config.Config, logger *zap.Logger, rec metrics.Recorder) (Facade, error) {
	g, err := gateway.New(cfg.Chains,
		gateway.WithLogger(logger),
		gateway.WithMetrics(rec),
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Config    *config.Config
	Logger    *zap.Logger
	Formatter *output.Formatter
	Recorder  metrics.Recorder

	opener FacadeOpener
	once   sync.Once
	facade Facade
	err    error
}

// NewCommandContext creates a context with the given dependencies.
func NewCommandContext(cfg *config.Config, logger *zap.Logger, formatter *output.Formatter) *CommandContext {
	return &CommandContext{
		Config:    cfg,
		Logger:    logger,
		Formatter: formatter,
		Recorder:  metrics.Noop{},
		opener:    facadeOpener,
	}
}

// WithRecorder sets the metrics recorder handed to the gateway.
func (c *CommandContext) WithRecorder(r metrics.Recorder) *CommandContext {
	if r != nil {
		c.Recorder = r
	}
	return c
}

// WithOpener replaces how the gateway is built.
func (c *CommandContext) WithOpener(o FacadeOpener) *CommandContext {
	c.opener = o
	return c
}

// Facade connects to the configured nodes on first use.
func (c *CommandContext) Facade() (Facade, error) {
	c.once.Do(func() {
		if len(c.Config.Chains) == 0 {
			c.err = rpcerr.WithSuggestion(rpcerr.ErrConfigInvalid, "add at least one entry under chains: in config.yaml")
			return
		}
		c.facade, c.err = c.opener(c.Config, c.Logger, c.Recorder)
	})
	return c.facade, c.err
}

// Close releases the gateway if one was opened.
func (c *CommandContext) Close() error {
	if c.facade == nil {
		return nil
	}
	return c.facade.Close()
}

// Currency resolves the currency to route to: the --currency flag, or the
// only configured chain.
func (c *CommandContext) Currency(flag string) (string, error) {
	if flag != "" {
		return strings.ToUpper(flag), nil
	}
	if len(c.Config.Chains) == 1 {
		return strings.ToUpper(c.Config.Chains[0].Currency), nil
	}
	names := make([]string, 0, len(c.Config.Chains))
	for _, ch := range c.Config.Chains {
		names = append(names, ch.Currency)
	}
	return "", rpcerr.WithSuggestion(
		rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"configured": strings.Join(names, ", ")}),
		"pass --currency to choose a chain",
	)
}

// nodeContext bounds the node calls of one command. An interrupt cancels it
// as well: payments not yet handed to the node come back as not submitted,
// and the account is still relocked.
func nodeContext(cmd *cobra.Command, limit time.Duration) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stopSignals := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, limit)
	return ctx, func() {
		cancel()
		stopSignals()
	}
}
