// Package cli implements the cryptorpc command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrz1836/cryptorpc/internal/config"
	"github.com/mrz1836/cryptorpc/internal/metrics"
	"github.com/mrz1836/cryptorpc/internal/output"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// Command group IDs.
const (
	groupQuery    = "query"
	groupPayments = "payments"
	groupService  = "service"
	groupConfig   = "config"
)

var (
	// Global flags
	homeDir      string
	configFile   string
	outputFormat string
	currencyFlag string
	verbose      bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *zap.Logger
	formatter *output.Formatter
	prom      *metrics.Prometheus
	cmdCtx    *CommandContext

	buildInfo  BuildInfo
	enrichHelp sync.Once
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func formatVersion(info BuildInfo) string {
	v, c, d := info.Version, info.Commit, info.Date
	if v == "" {
		v = "dev"
	}
	if c == "" {
		c = "unknown"
	}
	if d == "" {
		d = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cryptorpc",
	Short: "One RPC surface for XRP, Ethereum and Bitcoin nodes",
	Long: `cryptorpc talks to rippled, Ethereum and Bitcoin Core nodes through one
set of verbs: chain tip, blocks, transactions, confirmations, balances,
address validation, fee estimates and payments.

Nodes are configured per currency in ~/.cryptorpc/config.yaml. Signing
secrets are held in locked memory for a single send or batch and wiped
before the command returns.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initGlobals(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// versionCmd prints build information.
var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print version information",
	Long:    `Print the cryptorpc version, commit and build date.`,
	Example: `  cryptorpc version`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		outln(cmd.OutOrStdout(), "cryptorpc", formatVersion(buildInfo))
		return nil
	},
}

// Execute runs the root command with the given build stamp.
func Execute(info BuildInfo) error {
	buildInfo = info
	enrichHelp.Do(func() {
		walkCommands(rootCmd, func(c *cobra.Command) {
			if c != rootCmd {
				enrichParentLong(c)
			}
		})
	})

	err := rootCmd.Execute()
	if err != nil {
		if formatter != nil {
			_ = output.FormatError(os.Stderr, err, formatter.Format())
		} else {
			_ = output.FormatError(os.Stderr, err, output.FormatText)
		}
		cleanup()
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return rpcerr.ExitCode(err)
}

// initGlobals loads configuration and builds the logger, formatter and
// metrics recorder shared by every command.
func initGlobals(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		return rpcerr.WithCause(rpcerr.ErrConfigInvalid, err)
	}

	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	path := configFile
	if path == "" {
		path = config.Path(home)
	}

	var err error
	cfg, err = config.Load(path)
	switch {
	case err == nil:
	case rpcerr.Is(err, rpcerr.ErrConfigNotFound) && configFile == "":
		cfg = config.Defaults()
		cfg.Home = home
		config.ApplyEnvironment(cfg)
	default:
		return err
	}

	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != "auto" {
		cfg.Output.DefaultFormat = outputFormat
	}

	logFile := cfg.Logging.File
	if logFile == "" {
		logFile = filepath.Join(config.ExpandHome(cfg.Home), "cryptorpc.log")
	}
	logger, err = config.NewLogger(cfg.Logging.Level, logFile)
	if err != nil {
		logger = config.NullLogger()
	}

	formatter = output.NewFormatter(output.ParseFormat(cfg.Output.DefaultFormat), cmd.OutOrStdout())
	cmdCtx = NewCommandContext(cfg, logger, formatter)

	prom = nil
	if cfg.Metrics.Enabled {
		enableMetrics()
	}
	return nil
}

// enableMetrics switches the recorder to Prometheus. It must run before the
// gateway is opened.
func enableMetrics() {
	prom = metrics.NewPrometheus()
	cmdCtx.WithRecorder(prom)
}

// cleanup releases resources.
func cleanup() {
	if cmdCtx != nil {
		if err := cmdCtx.Close(); err != nil && logger != nil {
			logger.Warn("closing node connections", zap.Error(err))
		}
		cmdCtx = nil
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

// Config returns the global configuration.
func Config() *config.Config {
	return cfg
}

// Logger returns the global logger.
func Logger() *zap.Logger {
	return logger
}

// Formatter returns the global output formatter.
func Formatter() *output.Formatter {
	return formatter
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupQuery, Title: "Chain Queries:"},
		&cobra.Group{ID: groupPayments, Title: "Payments:"},
		&cobra.Group{ID: groupService, Title: "Service:"},
		&cobra.Group{ID: groupConfig, Title: "Configuration:"},
	)

	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "cryptorpc data directory (default: ~/.cryptorpc)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: <home>/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().StringVarP(&currencyFlag, "currency", "c", "", "currency to route to (default: the only configured chain)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	versionCmd.GroupID = groupConfig
	rootCmd.AddCommand(versionCmd)
	rootCmd.SetHelpCommandGroupID(groupConfig)
	rootCmd.SetCompletionCommandGroupID(groupConfig)
}
