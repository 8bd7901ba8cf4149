package store

import (
	"context"
	"fmt"

	"hemo-board/internal/config"
	"hemo-board/internal/logger"
)

// Open returns the Backend selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (Backend, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "sqlite", "":
		return OpenSQLite(ctx, cfg.Path, SQLiteOptions{PollInterval: cfg.PollInterval(), Logger: log})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
