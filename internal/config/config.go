// Package config loads lintdeck settings from defaults, an optional
// lintdeck.yaml, a .env file and LINTDECK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// CLIConfig configures the Codacy analysis CLI.
type CLIConfig struct {
	Version     string        `mapstructure:"version"`
	DownloadURL string        `mapstructure:"download_url"`
	Wrapper     string        `mapstructure:"wrapper"` // e.g. "wsl -d Ubuntu"
	Timeout     time.Duration `mapstructure:"timeout"` // 0 means no timeout
}

// APIConfig configures the remote analysis platform client.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RepositoryConfig overrides the identity detected from the git remote.
type RepositoryConfig struct {
	Provider     string `mapstructure:"provider"`
	Organization string `mapstructure:"organization"`
	Name         string `mapstructure:"name"`
}

// TrackerConfig holds the pull request polling policy.
type TrackerConfig struct {
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Debounce        time.Duration `mapstructure:"debounce"`
	MaxFiles        int           `mapstructure:"max_files"`
}

// CacheConfig bounds the analysis result cache.
type CacheConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// LoggingConfig defines the logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Config is the top-level configuration struct.
type Config struct {
	CLI        CLIConfig        `mapstructure:"cli"`
	API        APIConfig        `mapstructure:"api"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Tracker    TrackerConfig    `mapstructure:"tracker"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// Defaults registers the default values on v.
func Defaults(v *viper.Viper) {
	v.SetDefault("cli.version", "")
	v.SetDefault("cli.download_url", "https://raw.githubusercontent.com/codacy/codacy-cli-v2/main/codacy-cli.sh")
	v.SetDefault("cli.wrapper", "")
	v.SetDefault("cli.timeout", time.Duration(0))

	v.SetDefault("api.base_url", "https://app.codacy.com/api/v3")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", 30*time.Second)

	v.SetDefault("repository.provider", "")
	v.SetDefault("repository.organization", "")
	v.SetDefault("repository.name", "")

	v.SetDefault("tracker.retry_attempts", 5)
	v.SetDefault("tracker.retry_delay", 2*time.Minute)
	v.SetDefault("tracker.refresh_interval", 60*time.Second)
	v.SetDefault("tracker.debounce", 10*time.Second)
	v.SetDefault("tracker.max_files", 300)

	v.SetDefault("cache.max_entries", 256)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
}

// New returns a viper instance with defaults, env binding and the config
// search path for projectRoot.
func New(projectRoot string) *viper.Viper {
	v := viper.New()
	Defaults(v)

	v.SetConfigName("lintdeck")
	v.SetConfigType("yaml")
	if projectRoot != "" {
		v.AddConfigPath(projectRoot)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "lintdeck"))
	}

	v.SetEnvPrefix("LINTDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env (if present), the optional config file, and decodes v.
func Load(v *viper.Viper, projectRoot string) (*Config, error) {
	if projectRoot != "" {
		_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
	} else {
		_ = godotenv.Load()
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
