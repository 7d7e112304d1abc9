package config

import "github.com/mrz1836/cryptorpc/internal/chain"

// DefaultListen is the API listener used when none is configured.
const DefaultListen = "127.0.0.1:8645"

// Defaults returns the default configuration: a single XRP chain pointed
// at a local rippled in standalone mode.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.cryptorpc",
		Chains: []chain.Config{
			{
				Chain:    chain.XRP,
				Currency: "XRP",
				Protocol: "ws",
				Host:     "127.0.0.1",
				Port:     6006,
			},
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
		},
		Logging: LoggingConfig{
			Level: "error",
		},
		Server: ServerConfig{
			Listen: DefaultListen,
		},
	}
}
