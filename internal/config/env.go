package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mrz1836/go-sanitize"

	"github.com/mrz1836/cryptorpc/internal/chain"
)

// Environment variable names.
const (
	EnvHome         = "CRYPTORPC_HOME"
	EnvLogLevel     = "CRYPTORPC_LOG_LEVEL"
	EnvListen       = "CRYPTORPC_LISTEN"
	EnvOutputFormat = "CRYPTORPC_OUTPUT_FORMAT"
	EnvMetrics      = "CRYPTORPC_METRICS"
	EnvSecret       = "CRYPTORPC_SECRET"   // #nosec G101 -- false positive, this is a const name not a credential
	EnvMnemonic     = "CRYPTORPC_MNEMONIC" // #nosec G101 -- false positive, this is a const name not a credential
)

// Per-chain overrides are CRYPTORPC_<CURRENCY>_<SUFFIX>.
const (
	envPrefix         = "CRYPTORPC_"
	envSuffixEndpoint = "_ENDPOINT"
	envSuffixUsername = "_USERNAME"
	envSuffixPassword = "_PASSWORD" // #nosec G101 -- false positive, this is a const name not a credential
)

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables already set. Missing files are
// skipped; with no arguments ./.env is tried.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnvironment applies environment variable overrides to the configuration.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(EnvListen); v != "" {
		cfg.Server.Listen = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvMetrics); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}

	for i := range cfg.Chains {
		applyChainEnvironment(&cfg.Chains[i])
	}
}

func applyChainEnvironment(ch *chain.Config) {
	prefix := envPrefix + strings.ToUpper(ch.Currency)

	if v := os.Getenv(prefix + envSuffixEndpoint); v != "" {
		if u, err := url.Parse(SanitizeURL(v)); err == nil && u.Scheme != "" && u.Hostname() != "" {
			ch.Protocol = u.Scheme
			ch.Host = u.Hostname()
			ch.Port = 0
			if p, err := strconv.Atoi(u.Port()); err == nil {
				ch.Port = p
			}
			ch.Path = u.Path
		}
	}
	if v := os.Getenv(prefix + envSuffixUsername); v != "" {
		ch.Username = v
	}
	if v := os.Getenv(prefix + envSuffixPassword); v != "" {
		ch.Password = v
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL cleans a URL string by removing invalid characters and trimming whitespace.
// This is useful for cleaning user-provided RPC URLs that may contain copy-paste artifacts.
func SanitizeURL(url string) string {
	return sanitize.URL(strings.TrimSpace(url))
}
