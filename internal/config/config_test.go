package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cryptorpc/internal/chain"
	"github.com/mrz1836/cryptorpc/internal/config"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSave_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := config.Defaults()
	cfg.Chains = append(cfg.Chains, chain.Config{
		Chain:    chain.BTC,
		Currency: "BTC",
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     18443,
		Network:  "regtest",
		Username: "rpcuser",
		Password: "rpcpass",
	})
	cfg.Metrics.Enabled = true

	require.NoError(t, config.Save(cfg, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Version, loaded.Version)
	require.Len(t, loaded.Chains, 2)
	assert.Equal(t, cfg.Chains[1], loaded.Chains[1])
	assert.True(t, loaded.Metrics.Enabled)
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "~/.cryptorpc", cfg.Home)
	require.Len(t, cfg.Chains, 1)
	assert.Equal(t, chain.XRP, cfg.Chains[0].Chain)
	assert.Equal(t, "ws://127.0.0.1:6006", cfg.Chains[0].Endpoint())
	assert.Equal(t, "auto", cfg.Output.DefaultFormat)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, config.DefaultListen, cfg.Server.Listen)
	assert.False(t, cfg.Metrics.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ReplacesDefaultChains(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
version: 1
chains:
  - chain: ETH
    currency: ETH
    protocol: http
    host: localhost
    port: 8545
logging:
  level: debug
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Chains, 1)
	assert.Equal(t, chain.ETH, cfg.Chains[0].Chain)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "auto", cfg.Output.DefaultFormat)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.ErrorIs(t, err, rpcerr.ErrConfigNotFound)
		assert.Equal(t, rpcerr.ExitNotFound, rpcerr.ExitCode(err))
	})

	t.Run("bad yaml", func(t *testing.T) {
		t.Parallel()
		_, err := config.Load(writeConfig(t, "chains: [unterminated"))
		require.ErrorIs(t, err, rpcerr.ErrConfigInvalid)
	})

	t.Run("unsupported chain", func(t *testing.T) {
		t.Parallel()
		_, err := config.Load(writeConfig(t, `
chains:
  - chain: DOGE
    currency: DOGE
    protocol: http
    host: localhost
`))
		require.ErrorIs(t, err, rpcerr.ErrConfigInvalid)
		var re *rpcerr.RPCError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "oneof", re.Details["rule"])
		assert.Equal(t, "supported chains: XRP, ETH, BTC", re.Suggestion)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	xrp := config.Defaults().Chains[0]

	tests := []struct {
		name   string
		mutate func(*config.Config)
		ok     bool
	}{
		{"defaults", func(*config.Config) {}, true},
		{"no chains", func(c *config.Config) { c.Chains = nil }, true},
		{"duplicate currency", func(c *config.Config) {
			dup := xrp
			dup.Currency = "xrp"
			c.Chains = append(c.Chains, dup)
		}, false},
		{"missing host", func(c *config.Config) { c.Chains[0].Host = "" }, false},
		{"bad protocol", func(c *config.Config) { c.Chains[0].Protocol = "ftp" }, false},
		{"bad port", func(c *config.Config) { c.Chains[0].Port = 70000 }, false},
		{"bad output format", func(c *config.Config) { c.Output.DefaultFormat = "yaml" }, false},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "trace" }, false},
		{"bad listen", func(c *config.Config) { c.Server.Listen = "nowhere" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, rpcerr.ErrConfigInvalid)
		})
	}
}

func TestConfigChain(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()

	ch, ok := cfg.Chain("xrp")
	require.True(t, ok)
	assert.Equal(t, "XRP", ch.Currency)

	_, ok = cfg.Chain("ETH")
	assert.False(t, ok)
}

func TestPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("/srv/cryptorpc", "config.yaml"), config.Path("/srv/cryptorpc"))

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cryptorpc", "config.yaml"), config.Path("~/.cryptorpc"))
	assert.Equal(t, filepath.Join(home, ".cryptorpc"), config.DefaultHome())
}

func TestSave_ReplacesExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644)) //nolint:gosec // G306: Test file, relaxed perms OK

	cfg := config.Defaults()
	cfg.Server.Listen = "127.0.0.1:9000"
	require.NoError(t, config.Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := config.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", loaded.Server.Listen)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSave_FailureLeavesOriginalFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o600))

	require.NoError(t, os.Chmod(dir, 0o500)) //nolint:gosec // G302: Test uses intentionally restrictive perms
	defer func() {
		_ = os.Chmod(dir, 0o700) //nolint:gosec // G302: Restoring perms in test cleanup
	}()

	require.Error(t, config.Save(config.Defaults(), path))

	data, err := os.ReadFile(path) //nolint:gosec // G304: Test path from t.TempDir()
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}
