// Package config defines the taskbook configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Default storage locations, chosen by backend when storage.path is unset.
const (
	DefaultJSONPath   = "./data/tasks.json"
	DefaultSQLitePath = "./data/tasks.db"
)

// Config is the top-level configuration.
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Storage  StorageConfig `yaml:"storage"`
	LogLevel string        `yaml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"` // listen address, e.g. ":8080"
}

// StorageConfig selects and locates the persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "json" or "sqlite"
	Path    string `yaml:"path"` // defaults by backend, see DefaultPath
	Driver  string `yaml:"driver,omitempty"` // sqlite only: "sqlite3" or "sqlite"
}

// DefaultConfig returns a config with sensible defaults. Storage.Path is
// left empty so ApplyDefaults can pick it once the backend is known.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Storage: StorageConfig{
			Backend: BackendJSON,
		},
		LogLevel: "info",
	}
}

// DefaultPath returns the storage location used for backend when none is configured.
func DefaultPath(backend string) string {
	if backend == BackendSQLite {
		return DefaultSQLitePath
	}
	return DefaultJSONPath
}

// ApplyDefaults fills settings that depend on other settings. Call it after
// the file, environment and flag overrides have been applied.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = DefaultPath(c.Storage.Backend)
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables when they are set.
func (c *Config) ApplyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	c.Storage.Backend = getEnv("TASKS_BACKEND", c.Storage.Backend)
	c.Storage.Path = getEnv("DB_PATH", c.Storage.Path)
	c.Storage.Driver = getEnv("SQLITE_DRIVER", c.Storage.Driver)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate checks that the configuration can be used to open a backend.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendJSON:
		if c.Storage.Driver != "" {
			return fmt.Errorf("storage.driver is only valid for the %s backend", BackendSQLite)
		}
	case BackendSQLite:
		switch c.Storage.Driver {
		case "", "sqlite3", "sqlite":
		default:
			return fmt.Errorf("unknown sqlite driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// ParseLevel maps a log_level string to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
