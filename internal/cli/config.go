package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cryptorpc/internal/chain"
	"github.com/mrz1836/cryptorpc/internal/config"
	"github.com/mrz1836/cryptorpc/internal/output"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify the cryptorpc configuration file.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var (
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration",
		Long: `Create a default configuration file at <home>/config.yaml with a single
XRP chain pointed at a local rippled.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.`,
		Example: `  cryptorpc config init
  cryptorpc config init --force`,
		Args: cobra.NoArgs,
		RunE: runConfigInit,
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long: `Display the effective configuration after environment overrides.
Node passwords are masked.`,
		Example: `  cryptorpc config show
  cryptorpc config show -o json`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}

	configGetCmd = &cobra.Command{
		Use:   "get <path>",
		Short: "Get a configuration value",
		Long: `Get a configuration value by its dot path. Chains are addressed by
currency: chains.<currency>.<field>.`,
		Example: `  cryptorpc config get server.listen
  cryptorpc config get chains.xrp.host`,
		Args: cobra.ExactArgs(1),
		RunE: runConfigGet,
	}

	configSetCmd = &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value by its dot path and save the file. The
result is validated before it is written.`,
		Example: `  cryptorpc config set logging.level debug
  cryptorpc config set chains.xrp.port 51233`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	}
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	configCmd.GroupID = groupConfig
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configGetCmd, configSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	return config.Path(cfg.Home)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configPath()

	if _, err := os.Stat(path); err == nil && !configForce {
		return rpcerr.WithSuggestion(
			rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"path": path}),
			"configuration already exists; use --force to overwrite",
		)
	}

	defaultCfg := config.Defaults()
	defaultCfg.Home = cfg.Home
	if err := config.Save(defaultCfg, path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", path)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - chains: one entry per currency (chain, currency, protocol, host, port)")
	outln(w, "  - server.listen: address for `cryptorpc serve`")
	outln(w, "  - metrics.enabled: expose Prometheus metrics")
	outln(w, "  - logging.level: off, error, warn, info or debug")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	masked := *cfg
	masked.Chains = make([]chain.Config, len(cfg.Chains))
	for i, ch := range cfg.Chains {
		if ch.Password != "" {
			ch.Password = "********"
		}
		masked.Chains[i] = ch
	}

	if formatter.Format() == output.FormatJSON {
		return formatter.Print(masked)
	}
	return displayConfigText(cmd.OutOrStdout(), &masked)
}

func displayConfigText(w io.Writer, c *config.Config) error {
	out(w, "Home:           %s\n", c.Home)
	out(w, "Output format:  %s\n", c.Output.DefaultFormat)
	out(w, "Log level:      %s\n", c.Logging.Level)
	if c.Logging.File != "" {
		out(w, "Log file:       %s\n", c.Logging.File)
	}
	out(w, "Listen:         %s\n", c.Server.Listen)
	out(w, "Metrics:        %t\n", c.Metrics.Enabled)
	outln(w)

	t := output.NewTable("CURRENCY", "CHAIN", "ENDPOINT", "NETWORK", "RATE")
	t.AlignRight(4)
	for _, ch := range c.Chains {
		rate := "-"
		if ch.RateLimit > 0 {
			rate = strconv.FormatFloat(ch.RateLimit, 'f', -1, 64) + "/s"
		}
		network := ch.Network
		if network == "" {
			network = "-"
		}
		t.AddRow(ch.Currency, ch.Chain.String(), ch.Endpoint(), network, rate)
	}
	return t.Render(w)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	value, err := getConfigValue(cfg, args[0])
	if err != nil {
		return err
	}
	outln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path := configPath()
	current, err := config.ReadFile(path)
	if rpcerr.Is(err, rpcerr.ErrConfigNotFound) {
		current, err = config.Defaults(), nil
		current.Home = cfg.Home
	}
	if err != nil {
		return err
	}

	if err := setConfigValue(current, args[0], args[1]); err != nil {
		return err
	}
	if err := current.Validate(); err != nil {
		return err
	}
	if err := config.Save(current, path); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	out(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
	return nil
}

func unknownKey(path string) error {
	return rpcerr.WithSuggestion(
		rpcerr.WithDetails(rpcerr.ErrNotFound, map[string]string{"path": path}),
		fmt.Sprintf("configuration path '%s' not found", path),
	)
}

// getConfigValue retrieves a value from the config using dot notation.
func getConfigValue(c *config.Config, path string) (string, error) {
	parts := strings.Split(strings.ToLower(path), ".")

	switch {
	case len(parts) == 1 && parts[0] == "home":
		return c.Home, nil
	case len(parts) == 2:
		switch parts[0] + "." + parts[1] {
		case "output.default_format":
			return c.Output.DefaultFormat, nil
		case "logging.level":
			return c.Logging.Level, nil
		case "logging.file":
			return c.Logging.File, nil
		case "metrics.enabled":
			return strconv.FormatBool(c.Metrics.Enabled), nil
		case "server.listen":
			return c.Server.Listen, nil
		}
	case len(parts) == 3 && parts[0] == "chains":
		ch, ok := c.Chain(parts[1])
		if !ok {
			break
		}
		return getChainValue(ch, parts[2], path)
	}
	return "", unknownKey(path)
}

func getChainValue(ch chain.Config, key, path string) (string, error) {
	switch key {
	case "chain":
		return ch.Chain.String(), nil
	case "protocol":
		return ch.Protocol, nil
	case "host":
		return ch.Host, nil
	case "port":
		return strconv.Itoa(ch.Port), nil
	case "path":
		return ch.Path, nil
	case "network":
		return ch.Network, nil
	case "address":
		return ch.Address, nil
	case "endpoint":
		return ch.Endpoint(), nil
	case "rate_limit":
		return strconv.FormatFloat(ch.RateLimit, 'f', -1, 64), nil
	}
	return "", unknownKey(path)
}

// setConfigValue sets a value in the config using dot notation.
func setConfigValue(c *config.Config, path, value string) error {
	parts := strings.Split(strings.ToLower(path), ".")

	switch {
	case len(parts) == 1 && parts[0] == "home":
		c.Home = value
		return nil
	case len(parts) == 2:
		switch parts[0] + "." + parts[1] {
		case "output.default_format":
			c.Output.DefaultFormat = strings.ToLower(value)
			return nil
		case "logging.level":
			c.Logging.Level = strings.ToLower(value)
			return nil
		case "logging.file":
			c.Logging.File = value
			return nil
		case "metrics.enabled":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"path": path, "value": value})
			}
			c.Metrics.Enabled = b
			return nil
		case "server.listen":
			c.Server.Listen = value
			return nil
		}
	case len(parts) == 3 && parts[0] == "chains":
		for i := range c.Chains {
			if strings.EqualFold(c.Chains[i].Currency, parts[1]) {
				return setChainValue(&c.Chains[i], parts[2], path, value)
			}
		}
	}
	return unknownKey(path)
}

func setChainValue(ch *chain.Config, key, path, value string) error {
	switch key {
	case "protocol":
		ch.Protocol = strings.ToLower(value)
	case "host":
		ch.Host = config.SanitizeURL(value)
	case "port":
		p, err := strconv.Atoi(value)
		if err != nil {
			return rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"path": path, "value": value})
		}
		ch.Port = p
	case "path":
		ch.Path = value
	case "network":
		ch.Network = strings.ToLower(value)
	case "address":
		ch.Address = value
	case "rate_limit":
		r, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"path": path, "value": value})
		}
		ch.RateLimit = r
	default:
		return unknownKey(path)
	}
	return nil
}
