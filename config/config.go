// Package config loads runtime settings: defaults, then an optional YAML
// file, then RESPNO_* environment variables. Command-line flags are applied
// last by the commands themselves.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverJSON   = "json"
	DriverMemory = "memory"
)

type Config struct {
	Addr  string      `yaml:"addr"`
	Store StoreConfig `yaml:"store"`

	// RedisURL enables cross-process project locks. Empty means in-process.
	RedisURL string        `yaml:"redis_url"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
	LockWait time.Duration `yaml:"lock_wait"`

	// SweepInterval of 0 disables the background consistency sweep.
	SweepInterval        time.Duration `yaml:"sweep_interval"`
	MigrationConcurrency int           `yaml:"migration_concurrency"`

	IdentitySheet string   `yaml:"identity_sheet"`
	LogMode       string   `yaml:"log_mode"`
	CORSOrigins   []string `yaml:"cors_origins"`
}

type StoreConfig struct {
	Driver  string `yaml:"driver"`
	Path    string `yaml:"path"`
	DataDir string `yaml:"data_dir"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Addr: ":8080",
		Store: StoreConfig{
			Driver:  DriverSQLite,
			Path:    "./data/respno.db",
			DataDir: "./data/projects",
		},
		LockTTL:              30 * time.Second,
		LockWait:             5 * time.Second,
		MigrationConcurrency: 4,
		IdentitySheet:        "Demographics",
		LogMode:              "dev",
		CORSOrigins:          []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Load returns Default overlaid with the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) string) {
	c.Addr = getenv(lookup, "RESPNO_ADDR", c.Addr)
	c.Store.Driver = getenv(lookup, "RESPNO_STORE", c.Store.Driver)
	c.Store.Path = getenv(lookup, "RESPNO_DB_PATH", c.Store.Path)
	c.Store.DataDir = getenv(lookup, "RESPNO_DATA_DIR", c.Store.DataDir)
	c.RedisURL = getenv(lookup, "RESPNO_REDIS_URL", c.RedisURL)
	c.LockTTL = getenvDuration(lookup, "RESPNO_LOCK_TTL", c.LockTTL)
	c.LockWait = getenvDuration(lookup, "RESPNO_LOCK_WAIT", c.LockWait)
	c.SweepInterval = getenvDuration(lookup, "RESPNO_SWEEP_INTERVAL", c.SweepInterval)
	c.MigrationConcurrency = getenvInt(lookup, "RESPNO_MIGRATION_CONCURRENCY", c.MigrationConcurrency)
	c.IdentitySheet = getenv(lookup, "RESPNO_IDENTITY_SHEET", c.IdentitySheet)
	c.LogMode = getenv(lookup, "RESPNO_LOG_MODE", c.LogMode)
	if v := lookup("RESPNO_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case DriverJSON:
		if c.Store.DataDir == "" {
			return fmt.Errorf("store.data_dir is required for the json driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q (want sqlite, json or memory)", c.Store.Driver)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("lock_ttl must be positive")
	}
	if c.MigrationConcurrency < 1 {
		return fmt.Errorf("migration_concurrency must be at least 1")
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep_interval must not be negative")
	}
	return nil
}

func getenv(lookup func(string) string, key, fallback string) string {
	value := lookup(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(lookup func(string) string, key string, fallback int) int {
	value := lookup(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(lookup func(string) string, key string, fallback time.Duration) time.Duration {
	value := lookup(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
