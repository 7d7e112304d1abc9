package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"1", "1", true},
		{"true", "true", true},
		{"TRUE", "TRUE", true},
		{"yes", "yes", true},
		{"YES", "YES", true},
		{"on", "on", true},
		{"ON", "ON", true},
		{"with spaces", "  true  ", true},
		{"0", "0", false},
		{"false", "false", false},
		{"FALSE", "FALSE", false},
		{"no", "no", false},
		{"off", "off", false},
		{"empty", "", false},
		{"random", "random", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result := parseBool(tc.input)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestSanitizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "clean URL",
			input:    "https://s.altnet.rippletest.net:51234/",
			expected: "https://s.altnet.rippletest.net:51234/",
		},
		{
			name:     "with leading/trailing spaces",
			input:    "  ws://127.0.0.1:6006  ",
			expected: "ws://127.0.0.1:6006",
		},
		{
			name:     "localhost",
			input:    "http://localhost:8545",
			expected: "http://localhost:8545",
		},
		{
			name:     "127.0.0.1",
			input:    "http://127.0.0.1:8545",
			expected: "http://127.0.0.1:8545",
		},
		{
			name:     "websocket",
			input:    "wss://mainnet.infura.io/ws",
			expected: "wss://mainnet.infura.io/ws",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result := SanitizeURL(tc.input)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestApplyEnvironment(t *testing.T) {
	t.Setenv(EnvHome, "/srv/cryptorpc")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvListen, " 0.0.0.0:9000 ")
	t.Setenv(EnvOutputFormat, "JSON")
	t.Setenv(EnvMetrics, "yes")

	cfg := Defaults()
	ApplyEnvironment(cfg)

	assert.Equal(t, "/srv/cryptorpc", cfg.Home)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, "json", cfg.Output.DefaultFormat)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestApplyEnvironment_ChainOverrides(t *testing.T) {
	t.Setenv("CRYPTORPC_XRP_ENDPOINT", "  wss://s.altnet.rippletest.net:51233/path ")
	t.Setenv("CRYPTORPC_XRP_USERNAME", "admin")
	t.Setenv("CRYPTORPC_XRP_PASSWORD", "hunter2")

	cfg := Defaults()
	ApplyEnvironment(cfg)

	ch := cfg.Chains[0]
	assert.Equal(t, "wss", ch.Protocol)
	assert.Equal(t, "s.altnet.rippletest.net", ch.Host)
	assert.Equal(t, 51233, ch.Port)
	assert.Equal(t, "/path", ch.Path)
	assert.Equal(t, "admin", ch.Username)
	assert.Equal(t, "hunter2", ch.Password)
	assert.Equal(t, "wss://s.altnet.rippletest.net:51233/path", ch.Endpoint())
}

func TestApplyEnvironment_BadEndpointIgnored(t *testing.T) {
	t.Setenv("CRYPTORPC_XRP_ENDPOINT", "not a url")

	cfg := Defaults()
	ApplyEnvironment(cfg)
	assert.Equal(t, "ws://127.0.0.1:6006", cfg.Chains[0].Endpoint())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CRYPTORPC_LOG_LEVEL=info\nCRYPTORPC_LISTEN=127.0.0.1:7000\n"), 0o600))

	// Already-set variables win over the file.
	t.Setenv(EnvListen, "127.0.0.1:9999")
	t.Setenv(EnvLogLevel, "")
	require.NoError(t, os.Unsetenv(EnvLogLevel))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "info", os.Getenv(EnvLogLevel))
	assert.Equal(t, "127.0.0.1:9999", os.Getenv(EnvListen))
}
