package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"branchclock-hq/branchclock/pkg/config"
)

// Open creates the backend selected by cfg.Driver.
func Open(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "", "sqlite", "sqlite3":
		if dir := filepath.Dir(cfg.Path); cfg.Path != ":memory:" && dir != "" {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create storage directory: %w", err)
			}
		}
		return NewSQLiteStore(SQLiteConfig{
			Driver:      cfg.Driver,
			Path:        cfg.Path,
			BusyTimeout: cfg.BusyTimeout,
			Logger:      logger,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
