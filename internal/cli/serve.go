package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrz1836/cryptorpc/internal/api"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	serveListen  string
	serveMetrics bool
)

// serveCmd runs the HTTP API.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the gateway over HTTP",
	Long: `Serve every configured currency over a JSON HTTP API until interrupted.
Routes live under /v1/<currency>/. With metrics enabled, Prometheus
collectors are exposed at /metrics.

Signing secrets travel in request bodies. Bind to loopback or put the
listener behind TLS.`,
	Example: `  cryptorpc serve
  cryptorpc serve --listen 127.0.0.1:8645 --metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	serveCmd.GroupID = groupService
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: server.listen from config)")
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", false, "expose Prometheus metrics at /metrics")
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr := cmdCtx.Config.Server.Listen
	if serveListen != "" {
		addr = serveListen
	}

	if serveMetrics && prom == nil {
		enableMetrics()
	}

	f, err := cmdCtx.Facade()
	if err != nil {
		return err
	}

	opts := []api.Option{api.WithLogger(cmdCtx.Logger)}
	if prom != nil {
		opts = append(opts, api.WithMetricsHandler(prom.Handler()))
	}
	srv := api.New(f, opts...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	outln(cmd.ErrOrStderr(), "listening on", addr)
	err = srv.ListenAndServe(ctx, addr)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if err != nil {
		cmdCtx.Logger.Error("api server stopped", zap.Error(err))
	}
	return err
}
