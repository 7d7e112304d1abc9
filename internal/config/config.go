// Package config provides configuration management for cryptorpc.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/cryptorpc/internal/chain"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version int            `yaml:"version"`
	Home    string         `yaml:"home"`
	Chains  []chain.Config `yaml:"chains" validate:"dive"`
	Output  OutputConfig   `yaml:"output"`
	Logging LoggingConfig  `yaml:"logging"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Server  ServerConfig   `yaml:"server"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" validate:"omitempty,oneof=auto text json"`
}

// LoggingConfig defines logging settings. An empty File logs to
// cryptorpc.log under Home.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=off none error warn info debug"`
	File  string `yaml:"file,omitempty"`
}

// MetricsConfig toggles the Prometheus collectors.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig is the HTTP listener for `cryptorpc serve`.
type ServerConfig struct {
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

//nolint:gochecknoglobals // validator caches struct metadata
var validate = validator.New()

// Load reads configuration from the specified file, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	ApplyEnvironment(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadFile reads the file over Defaults with no environment overrides and
// no validation. Use it to edit and Save a file without baking in the
// environment.
func ReadFile(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, rpcerr.WithDetails(rpcerr.ErrConfigNotFound, map[string]string{"path": path})
	}
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, rpcerr.WithCause(rpcerr.ErrConfigInvalid, err)
	}
	return cfg, nil
}

// Save writes configuration to the specified file. The file is replaced
// atomically, so a failed save leaves the previous file intact.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return writeAtomic(path, data, 0o600)
}

// writeAtomic writes data to a temp file beside path, syncs it and renames
// it over path.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting temp file permissions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	//nolint:gosec // G703: path is the operator's config file
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Validate checks struct tags and that no currency is configured twice.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			err := rpcerr.WithDetails(rpcerr.ErrConfigInvalid, map[string]string{
				"field": first.Namespace(),
				"rule":  first.Tag(),
			})
			if first.Field() == "Chain" {
				err = rpcerr.WithSuggestion(err, "supported chains: "+chain.JoinIDs(chain.AllChains()))
			}
			return err
		}
		return rpcerr.WithCause(rpcerr.ErrConfigInvalid, err)
	}

	seen := make(map[string]int, len(c.Chains))
	for i, ch := range c.Chains {
		key := strings.ToUpper(ch.Currency)
		if prev, ok := seen[key]; ok {
			return rpcerr.WithDetails(rpcerr.ErrConfigInvalid, map[string]string{
				"currency": ch.Currency,
				"reason":   fmt.Sprintf("chains[%d] duplicates chains[%d]", i, prev),
			})
		}
		seen[key] = i
	}
	return nil
}

// Chain returns the chain entry for currency, case-insensitively.
func (c *Config) Chain(currency string) (chain.Config, bool) {
	for _, ch := range c.Chains {
		if strings.EqualFold(ch.Currency, currency) {
			return ch, true
		}
	}
	return chain.Config{}, false
}

// Path returns the config file path under home.
func Path(home string) string {
	return filepath.Join(ExpandHome(home), "config.yaml")
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// DefaultHome returns the default cryptorpc home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cryptorpc"
	}
	return filepath.Join(home, ".cryptorpc")
}
