// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml), with ${VAR} references expanded
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg, err := config.LoadOrEnv("config.yaml")
//	baseURL := cfg.Upstream.BaseURL
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mmynk/settleup/internal/calculator"
)

// Config represents the entire application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Storage       StorageConfig       `yaml:"storage"`
	Engine        EngineConfig        `yaml:"engine"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds the gateway's HTTP settings
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// UpstreamConfig holds the expense server connection settings
type UpstreamConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	RetryMax        int           `yaml:"retry_max"`
	RetryWaitMin    time.Duration `yaml:"retry_wait_min"`
	RetryWaitMax    time.Duration `yaml:"retry_wait_max"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

// StorageConfig holds the snapshot cache settings. An empty path disables the cache.
type StorageConfig struct {
	DatabasePath     string        `yaml:"database_path"`
	KeepSnapshots    int           `yaml:"keep_snapshots"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"` // Minimum gap between snapshot writes
}

// EngineConfig holds calculator settings
type EngineConfig struct {
	Strategy          string `yaml:"strategy"` // fixed_pass or resort
	DedupParticipants bool   `yaml:"dedup_participants"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used for anything a file or the environment leaves unset.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:         "http://localhost:5000",
			Timeout:         5 * time.Second,
			RetryMax:        2,
			RetryWaitMin:    100 * time.Millisecond,
			RetryWaitMax:    time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Storage: StorageConfig{
			DatabasePath:     "./data/settleup.db",
			KeepSnapshots:    5,
			SnapshotInterval: 30 * time.Second,
		},
		Engine: EngineConfig{
			Strategy: string(calculator.FixedPass),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// Load reads and parses the config file. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${UPSTREAM_URL})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	d := Default()
	return &Config{
		Server: ServerConfig{
			Addr:           getEnv("SETTLEUP_ADDR", d.Server.Addr),
			AllowedOrigins: getEnvList("SETTLEUP_ALLOWED_ORIGINS", d.Server.AllowedOrigins),
			ReadTimeout:    getEnvDuration("SETTLEUP_READ_TIMEOUT", d.Server.ReadTimeout),
			WriteTimeout:   getEnvDuration("SETTLEUP_WRITE_TIMEOUT", d.Server.WriteTimeout),
		},
		Upstream: UpstreamConfig{
			BaseURL:         getEnv("SETTLEUP_UPSTREAM_URL", d.Upstream.BaseURL),
			Timeout:         getEnvDuration("SETTLEUP_UPSTREAM_TIMEOUT", d.Upstream.Timeout),
			RetryMax:        getEnvInt("SETTLEUP_UPSTREAM_RETRY_MAX", d.Upstream.RetryMax),
			RetryWaitMin:    getEnvDuration("SETTLEUP_UPSTREAM_RETRY_WAIT_MIN", d.Upstream.RetryWaitMin),
			RetryWaitMax:    getEnvDuration("SETTLEUP_UPSTREAM_RETRY_WAIT_MAX", d.Upstream.RetryWaitMax),
			BreakerFailures: uint32(getEnvInt("SETTLEUP_BREAKER_FAILURES", int(d.Upstream.BreakerFailures))),
			BreakerTimeout:  getEnvDuration("SETTLEUP_BREAKER_TIMEOUT", d.Upstream.BreakerTimeout),
		},
		Storage: StorageConfig{
			DatabasePath:     getEnv("SETTLEUP_DB_PATH", d.Storage.DatabasePath),
			KeepSnapshots:    getEnvInt("SETTLEUP_KEEP_SNAPSHOTS", d.Storage.KeepSnapshots),
			SnapshotInterval: getEnvDuration("SETTLEUP_SNAPSHOT_INTERVAL", d.Storage.SnapshotInterval),
		},
		Engine: EngineConfig{
			Strategy:          getEnv("SETTLEUP_STRATEGY", d.Engine.Strategy),
			DedupParticipants: getEnvBool("SETTLEUP_DEDUP_PARTICIPANTS", d.Engine.DedupParticipants),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", d.Observability.Logging.Level),
				Format: getEnv("LOG_FORMAT", d.Observability.Logging.Format),
			},
		},
	}
}

// LoadOrEnv loads path when it exists and falls back to environment variables otherwise.
// A file that exists but does not parse is an error.
func LoadOrEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return LoadFromEnv(), nil
	}
	return nil, err
}

// Validate checks the values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("upstream.base_url %q must be an absolute URL", c.Upstream.BaseURL))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("upstream.timeout must be positive"))
	}
	if c.Upstream.RetryMax < 0 {
		errs = append(errs, errors.New("upstream.retry_max must not be negative"))
	}
	if c.Upstream.RetryWaitMax < c.Upstream.RetryWaitMin {
		errs = append(errs, errors.New("upstream.retry_wait_max must be at least retry_wait_min"))
	}
	if c.Storage.SnapshotInterval < 0 {
		errs = append(errs, errors.New("storage.snapshot_interval must not be negative"))
	}
	if _, err := calculator.ParseStrategy(c.Engine.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("engine.strategy: %w", err))
	}
	switch strings.ToLower(c.Observability.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("observability.logging.format %q must be text or json", c.Observability.Logging.Format))
	}

	return errors.Join(errs...)
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList reads a comma-separated list
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
