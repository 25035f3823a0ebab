package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"tokenSync/internal/config"
	"tokenSync/internal/storage"
	"tokenSync/internal/storage/postgres"
	"tokenSync/internal/storage/sqlite"
)

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		if cfg.PGDSN == "" {
			return nil, fmt.Errorf("pg-dsn is required for the postgres driver")
		}
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite-path is required for the sqlite driver")
		}
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}
