package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// Config is the root settings document for chanrelay.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Telegram TelegramConfig `json:"telegram"`
	Relay    RelayConfig    `json:"relay"`
	Delivery DeliveryConfig `json:"delivery"`
	State    StateConfig    `json:"state"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel      string `json:"logLevel"                env:"CHANRELAY_LOG_LEVEL"`
	LogFormat     string `json:"logFormat"               env:"CHANRELAY_LOG_FORMAT"` // "text" | "json"
	LogFile       string `json:"logFile,omitempty"       env:"CHANRELAY_LOG_FILE"`
	LogMaxSizeMB  int    `json:"logMaxSizeMB,omitempty"`
	LogMaxBackups int    `json:"logMaxBackups,omitempty"`
}

type TelegramConfig struct {
	Token       string `json:"token"                 env:"CHANRELAY_TELEGRAM_TOKEN"`
	APIEndpoint string `json:"apiEndpoint,omitempty" env:"CHANRELAY_TELEGRAM_API_ENDPOINT"` // Bot API endpoint format, %s = token, %s = method
	PollTimeout int    `json:"pollTimeout"`                                                 // long-poll timeout in seconds
	Debug       bool   `json:"debug,omitempty"`
}

type RelayConfig struct {
	ChannelsFile    string   `json:"channelsFile"    env:"CHANRELAY_CHANNELS_FILE"`
	BlockedMentions []string `json:"blockedMentions" env:"CHANRELAY_BLOCKED_MENTIONS"`
	BusSize         int      `json:"busSize"`
	RecentWindow    int      `json:"recentWindow"` // 0 disables content dedup
}

type DeliveryConfig struct {
	TimeoutSeconds int    `json:"timeoutSeconds"`
	UserAgent      string `json:"userAgent,omitempty"`
}

type StateConfig struct {
	DBPath        string `json:"dbPath,omitempty" env:"CHANRELAY_STATE_DB"` // empty keeps state in memory
	RetentionDays int    `json:"retentionDays"`
	PruneSchedule string `json:"pruneSchedule"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"  env:"CHANRELAY_METRICS_ENABLED"`
	Listen   string `json:"listen"   env:"CHANRELAY_METRICS_LISTEN"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.chanrelay).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chanrelay"
	}
	return filepath.Join(home, ".chanrelay")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads the settings file at path, applies environment overrides and validates.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadOrDefault behaves like Load but falls back to Defaults when the file
// does not exist. found reports whether the file was read.
func LoadOrDefault(path string) (cfg *Config, found bool, err error) {
	cfg, err = Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}
	cfg, err = finish(Defaults())
	return cfg, false, err
}

func finish(cfg *Config) (*Config, error) {
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Relay.ChannelsFile = ExpandPath(cfg.Relay.ChannelsFile)
	cfg.State.DBPath = ExpandPath(cfg.State.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset ${VAR}
// without default is left as is.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}
	if cfg.General.LogMaxSizeMB < 0 {
		errs = append(errs, "general.logMaxSizeMB must be >= 0")
	}

	if cfg.Telegram.PollTimeout < 0 || cfg.Telegram.PollTimeout > 300 {
		errs = append(errs, "telegram.pollTimeout must be between 0 and 300")
	}

	if cfg.Relay.ChannelsFile == "" {
		errs = append(errs, "relay.channelsFile is required")
	}
	if cfg.Relay.BusSize < 1 || cfg.Relay.BusSize > 10000 {
		errs = append(errs, "relay.busSize must be between 1 and 10000")
	}
	if cfg.Relay.RecentWindow < 0 {
		errs = append(errs, "relay.recentWindow must be >= 0")
	}

	if cfg.Delivery.TimeoutSeconds < 1 {
		errs = append(errs, "delivery.timeoutSeconds must be >= 1")
	}

	if cfg.State.RetentionDays < 1 {
		errs = append(errs, "state.retentionDays must be >= 1")
	}
	if cfg.State.DBPath != "" {
		if _, err := cron.ParseStandard(cfg.State.PruneSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("state.pruneSchedule: %v", err))
		}
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			errs = append(errs, "metrics.listen is required when metrics are enabled")
		}
		if !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
			errs = append(errs, "metrics.endpoint must start with /")
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
