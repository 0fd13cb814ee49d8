package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "ROLLBAR"

var (
	ErrMissingAccessToken = errors.New("config: access_token is required")
	ErrInvalidLogFormat   = errors.New("config: logging.format must be json or console")
)

type Config struct {
	AccessToken  string        `mapstructure:"access_token"`
	Environment  string        `mapstructure:"environment"`
	CodeVersion  string        `mapstructure:"code_version"`
	Platform     string        `mapstructure:"platform"`
	Blocking     bool          `mapstructure:"blocking"`
	Timeout      time.Duration `mapstructure:"timeout"`
	NotifyLevels []string      `mapstructure:"notify_levels"`
	Logging      LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads configuration from the optional file at path, then lets
// ROLLBAR_* environment variables override it (ROLLBAR_ACCESS_TOKEN,
// ROLLBAR_LOGGING_LEVEL, ...). An empty path reads the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv is Load without a file and without requiring an access token, for
// callers that only want to know whether reporting is configured.
func FromEnv() *Config {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		cfg = Default()
	}
	return &cfg
}

func Default() Config {
	return Config{
		Environment:  "production",
		Platform:     runtime.GOOS,
		Timeout:      30 * time.Second,
		NotifyLevels: []string{"error", "warn"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	// Every key needs a default so AutomaticEnv can see it during Unmarshal.
	v.SetDefault("access_token", "")
	v.SetDefault("environment", d.Environment)
	v.SetDefault("code_version", "")
	v.SetDefault("platform", d.Platform)
	v.SetDefault("blocking", false)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("notify_levels", d.NotifyLevels)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", "")
	v.SetDefault("logging.max_size", 0)
	v.SetDefault("logging.max_backups", 0)
	v.SetDefault("logging.max_age", 0)
	v.SetDefault("logging.compress", false)
}

func validate(cfg *Config) error {
	if cfg.AccessToken == "" {
		return ErrMissingAccessToken
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %s", cfg.Timeout)
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return ErrInvalidLogFormat
	}
	return nil
}

// Enabled reports whether an access token is present.
func (c *Config) Enabled() bool {
	return c != nil && c.AccessToken != ""
}
