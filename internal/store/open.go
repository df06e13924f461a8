package store

import (
	"fmt"
	"os"
	"path/filepath"

	"taskbook/internal/config"
)

// Open creates the backend selected by cfg.
func Open(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendJSON:
		return NewJSONStore(cfg.Path)
	case config.BackendSQLite:
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		return NewSQLiteStore(cfg.Path, WithDriver(cfg.Driver))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
