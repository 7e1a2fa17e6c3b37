package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Defaults applied by LoadConfig and Default.
const (
	DefaultCollection      = "quick.mdbs"
	DefaultTimeout         = 10 * time.Second
	DefaultConflictRetries = 10
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
)

// DotEnvFile is loaded into the environment by LoadConfig when it exists.
// Variables already set in the environment win.
var DotEnvFile = ".env"

type Config struct {
	URL             string        `yaml:"url"`
	Database        string        `yaml:"database"`
	Collection      string        `yaml:"collection"`
	Timeout         time.Duration `yaml:"timeout"`
	ConflictRetries int           `yaml:"conflict_retries"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	Metrics         bool          `yaml:"metrics"`
}

// Default returns a Config for url with every other field defaulted.
func Default(url string) *Config {
	cfg := &Config{URL: url}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig loads configuration from a YAML file if path is provided,
// otherwise it falls back to environment variables. In both cases QUICKMDB_*
// environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	var cfg Config

	// If path is provided the file must exist
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var err error
	if c.URL == "" {
		err = multierr.Append(err, errors.New("QUICKMDB_URL is required (set via environment or config file)"))
	}
	if c.Timeout < 0 {
		err = multierr.Append(err, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.ConflictRetries < 0 {
		err = multierr.Append(err, fmt.Errorf("conflict_retries must not be negative, got %d", c.ConflictRetries))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	return err
}

func loadDotEnv() error {
	if _, err := os.Stat(DotEnvFile); err != nil {
		return nil
	}
	if err := godotenv.Load(DotEnvFile); err != nil {
		return fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ConflictRetries == 0 {
		cfg.ConflictRetries = DefaultConflictRetries
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
}

// applyEnvOverrides allows environment variables to override YAML config values
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("QUICKMDB_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("QUICKMDB_DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("QUICKMDB_COLLECTION"); v != "" {
		cfg.Collection = v
	}
	if v := os.Getenv("QUICKMDB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("QUICKMDB_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	var err error
	if v := os.Getenv("QUICKMDB_TIMEOUT"); v != "" {
		d, perr := time.ParseDuration(v)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("invalid QUICKMDB_TIMEOUT value: %w", perr))
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("QUICKMDB_CONFLICT_RETRIES"); v != "" {
		n, perr := strconv.Atoi(v)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("invalid QUICKMDB_CONFLICT_RETRIES value: %w", perr))
		}
		cfg.ConflictRetries = n
	}
	if v := os.Getenv("QUICKMDB_METRICS"); v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("invalid QUICKMDB_METRICS value: %w", perr))
		}
		cfg.Metrics = b
	}
	return err
}
