// Package config loads the CLI configuration.
//
// Configuration comes from three layers, later wins: compile-time
// defaults, a YAML config file (~/.tutorkit/config.yaml by default),
// and TUT_-prefixed environment variables. Every setting lives on an
// explicit struct so a typo in the file is a parse error, not a
// silently ignored key.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level structure for config.yaml.
type Config struct {
	// DataDir is where the local store blob and offline queue live.
	DataDir string `mapstructure:"data_dir"`

	Remote    RemoteConfig    `mapstructure:"remote"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Log       LogConfig       `mapstructure:"log"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// RemoteConfig identifies the hosted database and the signed-in user.
type RemoteConfig struct {
	// URL is a libsql://, https://, or file DSN. Empty disables sync.
	URL string `mapstructure:"url"`

	// AuthToken authenticates against hosted endpoints.
	AuthToken string `mapstructure:"auth_token"`

	// UserID scopes every remote row. Empty means not signed in.
	UserID string `mapstructure:"user_id"`
}

// SyncConfig tunes queue and cleanup behaviour.
type SyncConfig struct {
	// StalenessWindowHours before an un-bookmarked session is
	// cleanup-eligible.
	StalenessWindowHours int `mapstructure:"staleness_window_hours"`

	// MaxRetries before a queued operation is dropped.
	MaxRetries int `mapstructure:"max_retries"`

	// ProbeIntervalSeconds between daemon connectivity checks.
	ProbeIntervalSeconds int `mapstructure:"probe_interval_seconds"`
}

// ProviderConfig selects the language-model endpoint.
type ProviderConfig struct {
	Name        string  `mapstructure:"name"` // anthropic, openai-compatible
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// LogConfig controls the rotating daemon log.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DashboardConfig configures the WebSocket monitoring server.
type DashboardConfig struct {
	Port int `mapstructure:"port"`
}

// StalenessWindow returns the cleanup window as a duration.
func (c *Config) StalenessWindow() time.Duration {
	return time.Duration(c.Sync.StalenessWindowHours) * time.Hour
}

// ProbeInterval returns the daemon probe interval as a duration.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.Sync.ProbeIntervalSeconds) * time.Second
}

// DefaultDir returns ~/.tutorkit, falling back to the working directory
// when the home directory cannot be resolved.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tutorkit"
	}
	return filepath.Join(home, ".tutorkit")
}

// configKeys lists every key Unmarshal reads. Each one is bound to its
// TUT_ environment variable explicitly: AutomaticEnv alone only surfaces
// env values for keys viper already knows from a default or the file, so
// keys without defaults (secrets like remote.auth_token) would be
// silently dropped.
var configKeys = []string{
	"data_dir",
	"remote.url",
	"remote.auth_token",
	"remote.user_id",
	"sync.staleness_window_hours",
	"sync.max_retries",
	"sync.probe_interval_seconds",
	"provider.name",
	"provider.base_url",
	"provider.api_key",
	"provider.model",
	"provider.max_tokens",
	"provider.temperature",
	"log.file",
	"log.max_size_mb",
	"log.max_backups",
	"log.max_age_days",
	"dashboard.port",
}

func setDefaults(v *viper.Viper, baseDir string) {
	v.SetDefault("data_dir", filepath.Join(baseDir, "data"))
	v.SetDefault("sync.staleness_window_hours", 168)
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.probe_interval_seconds", 30)
	v.SetDefault("provider.name", "anthropic")
	v.SetDefault("provider.max_tokens", 1024)
	v.SetDefault("provider.temperature", 0.7)
	v.SetDefault("log.file", filepath.Join(baseDir, "tut.log"))
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("dashboard.port", 8090)
}

// Load reads configuration from baseDir/config.yaml, the environment,
// and defaults. A missing config file is fine; a malformed one is not.
func Load(baseDir string) (*Config, error) {
	if baseDir == "" {
		baseDir = DefaultDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(baseDir)

	v.SetEnvPrefix("TUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	setDefaults(v, baseDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Write persists cfg to baseDir/config.yaml, creating the directory if
// needed. Used by `tut config init`.
func Write(baseDir string, cfg *Config) error {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.Set("data_dir", cfg.DataDir)
	v.Set("remote.url", cfg.Remote.URL)
	v.Set("remote.auth_token", cfg.Remote.AuthToken)
	v.Set("remote.user_id", cfg.Remote.UserID)
	v.Set("sync.staleness_window_hours", cfg.Sync.StalenessWindowHours)
	v.Set("sync.max_retries", cfg.Sync.MaxRetries)
	v.Set("sync.probe_interval_seconds", cfg.Sync.ProbeIntervalSeconds)
	v.Set("provider.name", cfg.Provider.Name)
	v.Set("provider.base_url", cfg.Provider.BaseURL)
	v.Set("provider.api_key", cfg.Provider.APIKey)
	v.Set("provider.model", cfg.Provider.Model)
	v.Set("provider.max_tokens", cfg.Provider.MaxTokens)
	v.Set("provider.temperature", cfg.Provider.Temperature)
	v.Set("log.file", cfg.Log.File)
	v.Set("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.Set("log.max_backups", cfg.Log.MaxBackups)
	v.Set("log.max_age_days", cfg.Log.MaxAgeDays)
	v.Set("dashboard.port", cfg.Dashboard.Port)

	path := filepath.Join(baseDir, "config.yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
