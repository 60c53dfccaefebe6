// Package config holds runtime configuration for the orchestration core:
// concurrency, caching, and process-spawn bounds. The worker catalog
// itself is loaded elsewhere; this package only configures how the core
// executes whatever catalog it is handed.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds configuration for the scheduler, sandbox runner,
// and result cache.
type RuntimeConfig struct {
	// MaxConcurrency caps concurrent worker runs within one tier
	// Default: 4, Range: 1-64
	MaxConcurrency int `yaml:"max_concurrency"`

	// CacheTTLMinutes is how long a cached result stays valid
	// Default: 15, Range: 1-1440
	CacheTTLMinutes int `yaml:"cache_ttl_minutes"`

	// CacheCapacity is the maximum number of cached results
	// Default: 100, Range: 1-10000
	CacheCapacity int `yaml:"cache_capacity"`

	// Launcher is the external worker launcher command
	// Default: "agent"
	Launcher string `yaml:"launcher"`

	// AllowedCommands is the command guard's static allow-list. The
	// launcher is always included.
	// Default: git, mkdir
	AllowedCommands []string `yaml:"allowed_commands"`

	// SpawnRatePerSecond throttles process launches, 0 for unlimited
	// Default: 0, Range: 0-100
	SpawnRatePerSecond float64 `yaml:"spawn_rate_per_second"`

	// MaxOutputBytes caps captured worker output per stream
	// Default: 10485760 (10 MiB), Range: 1024-104857600
	MaxOutputBytes int64 `yaml:"max_output_bytes"`

	// SandboxStaleHours is the age after which finished sandboxes are
	// swept from the registry
	// Default: 24, Range: 1-168
	SandboxStaleHours int `yaml:"sandbox_stale_hours"`
}

// Default returns the default runtime configuration
func Default() RuntimeConfig {
	return RuntimeConfig{
		MaxConcurrency:     4,
		CacheTTLMinutes:    15,
		CacheCapacity:      100,
		Launcher:           "agent",
		AllowedCommands:    []string{"git", "mkdir"},
		SpawnRatePerSecond: 0,
		MaxOutputBytes:     10 * 1024 * 1024,
		SandboxStaleHours:  24,
	}
}

// Validate checks if the configuration has valid values
func (c RuntimeConfig) Validate() error {
	if c.MaxConcurrency < 1 || c.MaxConcurrency > 64 {
		return fmt.Errorf("max_concurrency must be between 1 and 64 (got %d)", c.MaxConcurrency)
	}
	if c.CacheTTLMinutes < 1 || c.CacheTTLMinutes > 1440 {
		return fmt.Errorf("cache_ttl_minutes must be between 1 and 1440 (got %d)", c.CacheTTLMinutes)
	}
	if c.CacheCapacity < 1 || c.CacheCapacity > 10000 {
		return fmt.Errorf("cache_capacity must be between 1 and 10000 (got %d)", c.CacheCapacity)
	}
	if c.Launcher == "" {
		return fmt.Errorf("launcher cannot be empty")
	}
	if c.SpawnRatePerSecond < 0 || c.SpawnRatePerSecond > 100 {
		return fmt.Errorf("spawn_rate_per_second must be between 0 and 100 (got %g)", c.SpawnRatePerSecond)
	}
	if c.MaxOutputBytes < 1024 || c.MaxOutputBytes > 100*1024*1024 {
		return fmt.Errorf("max_output_bytes must be between 1024 and 104857600 (got %d)", c.MaxOutputBytes)
	}
	if c.SandboxStaleHours < 1 || c.SandboxStaleHours > 168 {
		return fmt.Errorf("sandbox_stale_hours must be between 1 and 168 (got %d)", c.SandboxStaleHours)
	}
	return nil
}

// AllCommands returns the allow-list with the launcher included
func (c RuntimeConfig) AllCommands() []string {
	for _, cmd := range c.AllowedCommands {
		if cmd == c.Launcher {
			return c.AllowedCommands
		}
	}
	return append(append([]string{}, c.AllowedCommands...), c.Launcher)
}

// Load reads configuration from an optional YAML file, applies
// environment overrides, and validates the result. An empty path means
// defaults plus environment only.
//
// Environment variables:
//   - REVUE_MAX_CONCURRENCY: concurrent runs per tier (default: 4)
//   - REVUE_CACHE_TTL_MINUTES: cache entry lifetime (default: 15)
//   - REVUE_CACHE_CAPACITY: cache entry limit (default: 100)
//   - REVUE_LAUNCHER: worker launcher command (default: agent)
//   - REVUE_SPAWN_RATE: process launches per second, 0 unlimited (default: 0)
//   - REVUE_MAX_OUTPUT_BYTES: output cap per stream (default: 10485760)
//   - REVUE_SANDBOX_STALE_HOURS: sandbox sweep age (default: 24)
func Load(path string) (RuntimeConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := parseEnvInt("REVUE_MAX_CONCURRENCY", &cfg.MaxConcurrency); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("REVUE_CACHE_TTL_MINUTES", &cfg.CacheTTLMinutes); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("REVUE_CACHE_CAPACITY", &cfg.CacheCapacity); err != nil {
		return cfg, err
	}
	if err := parseEnvString("REVUE_LAUNCHER", &cfg.Launcher); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("REVUE_SPAWN_RATE", &cfg.SpawnRatePerSecond); err != nil {
		return cfg, err
	}
	if err := parseEnvInt64("REVUE_MAX_OUTPUT_BYTES", &cfg.MaxOutputBytes); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("REVUE_SANDBOX_STALE_HOURS", &cfg.SandboxStaleHours); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid runtime configuration: %w", err)
	}
	return cfg, nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt64 parses an int64 from an environment variable
func parseEnvInt64(key string, dest *int64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	*dest = value
	return nil
}
