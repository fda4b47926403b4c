package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for relaybot.
type Config struct {
	General  GeneralConfig   `yaml:"general"`
	Store    StoreConfig     `yaml:"store"`
	Dispatch DispatchConfig  `yaml:"dispatch"`
	RSS      RSSConfig       `yaml:"rss"`
	Networks []NetworkConfig `yaml:"networks"`
}

type GeneralConfig struct {
	LogLevel               string `yaml:"logLevel"`
	DefaultWeatherLocation string `yaml:"defaultWeatherLocation"`
}

type StoreConfig struct {
	DBPath string `yaml:"dbPath"`
}

type DispatchConfig struct {
	CommandPrefix string `yaml:"commandPrefix"`
	BusBuffer     int    `yaml:"busBuffer"`
}

type RSSConfig struct {
	Enabled        bool `yaml:"enabled"`
	RefreshMinutes int  `yaml:"refreshMinutes"`
}

// NetworkConfig describes one chat network connection. Name and Protocol are
// always required; the rest depends on the protocol.
type NetworkConfig struct {
	Name     string   `yaml:"name"`
	Protocol string   `yaml:"protocol"` // "irc" | "telegram" | "discord" | "slack"
	Server   string   `yaml:"server,omitempty"`
	Port     int      `yaml:"port,omitempty"`
	TLS      bool     `yaml:"tls,omitempty"`
	Nick     string   `yaml:"nick,omitempty"`
	Token    string   `yaml:"token,omitempty"`
	AppToken string   `yaml:"appToken,omitempty"` // slack socket mode only
	Channels []string `yaml:"channels,omitempty"`
	Admins   []string `yaml:"admins,omitempty"`
}

// Addr returns the server address with the port applied, defaulting to the
// standard IRC ports when unset (6697 with TLS, 6667 without).
func (n NetworkConfig) Addr() string {
	port := n.Port
	if port == 0 {
		if n.TLS {
			port = 6697
		} else {
			port = 6667
		}
	}
	return fmt.Sprintf("%s:%d", n.Server, port)
}

// DefaultConfigDir returns the default config directory (~/.relaybot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relaybot"
	}
	return filepath.Join(home, ".relaybot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yml")
}

// Defaults returns a config with sensible defaults and no networks.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:               "info",
			DefaultWeatherLocation: "Helsinki",
		},
		Store: StoreConfig{
			DBPath: filepath.Join(DefaultConfigDir(), "relaybot.db"),
		},
		Dispatch: DispatchConfig{
			CommandPrefix: ".",
			BusBuffer:     100,
		},
		RSS: RSSConfig{
			Enabled:        true,
			RefreshMinutes: 5,
		},
	}
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Validate checks that the config can start the whole process. Any invalid
// network is fatal: the bot never starts with a partial network set.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.Dispatch.CommandPrefix == "" {
		errs = append(errs, "dispatch.commandPrefix must not be empty")
	}
	if cfg.RSS.Enabled && cfg.RSS.RefreshMinutes < 1 {
		errs = append(errs, "rss.refreshMinutes must be >= 1")
	}

	if len(cfg.Networks) == 0 {
		errs = append(errs, "at least one network must be configured")
	}

	seen := make(map[string]bool)
	for i, n := range cfg.Networks {
		where := fmt.Sprintf("networks[%d]", i)
		if n.Name == "" {
			errs = append(errs, where+": name is required")
		} else {
			where = fmt.Sprintf("networks[%s]", n.Name)
			if seen[n.Name] {
				errs = append(errs, where+": duplicate network name")
			}
			seen[n.Name] = true
		}

		switch n.Protocol {
		case "irc":
			if n.Server == "" {
				errs = append(errs, where+": server is required for irc networks")
			}
		case "telegram", "discord":
			if n.Token == "" {
				errs = append(errs, where+": token is required for "+n.Protocol+" networks")
			}
		case "slack":
			if n.Token == "" || n.AppToken == "" {
				errs = append(errs, where+": token and appToken are required for slack networks")
			}
		default:
			errs = append(errs, where+": protocol must be one of: irc, telegram, discord, slack")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
