// Package config loads the locker service configuration.
//
// Configuration comes from a single YAML file named by the --config flag or
// the LOCKER_CONFIG environment variable, with LOCKER_* environment variables
// (optionally read from a .env file) overriding individual values.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete service configuration.
type Config struct {
	// Environment gates development-only routes such as direct deposits.
	// Default: production
	Environment Environment `yaml:"environment"`

	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	// Listen is the address the API binds to.
	// Default: :8080
	Listen string `yaml:"listen"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `yaml:"driver"`

	// DSN is passed to the driver unchanged.
	DSN string `yaml:"dsn"`

	// MaxOpenConns caps the pool. sqlite is always forced to 1.
	MaxOpenConns int `yaml:"max_open_conns"`
}

type AuthConfig struct {
	// SignatureMaxAge bounds how far a request timestamp may drift from the
	// server clock in either direction.
	// Default: 5m
	SignatureMaxAge time.Duration `yaml:"signature_max_age"`
}

type LogConfig struct {
	// Level is one of trace, debug, info, warn, error, crit.
	Level string `yaml:"level"`

	// Format is "terminal" or "json".
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Environment: Production,
		HTTP: HTTPConfig{
			Listen: ":8080",
		},
		Database: DatabaseConfig{
			Driver:       "postgres",
			DSN:          "host=localhost user=postgres password=postgres dbname=locker sslmode=disable",
			MaxOpenConns: 10,
		},
		Auth: AuthConfig{
			SignatureMaxAge: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "terminal",
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotenv loads LOCKER_* variables from the given files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotenv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LOCKER_ENVIRONMENT"); v != "" {
		c.Environment = Environment(v)
	}
	if v := os.Getenv("LOCKER_HTTP_LISTEN"); v != "" {
		c.HTTP.Listen = v
	}
	if v := os.Getenv("LOCKER_DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("LOCKER_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("LOCKER_SIGNATURE_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LOCKER_SIGNATURE_MAX_AGE: %w", err)
		}
		c.Auth.SignatureMaxAge = d
	}
	if v := os.Getenv("LOCKER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOCKER_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Environment {
	case Development, Staging, Production:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	if c.HTTP.Listen == "" {
		return errors.New("http.listen is required")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Auth.SignatureMaxAge <= 0 {
		return errors.New("auth.signature_max_age must be positive")
	}
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error", "crit":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "terminal", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
