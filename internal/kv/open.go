package kv

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gulf-store/internal/cache"
	"gulf-store/migrations"
)

// Config selects and configures the backend.
type Config struct {
	Driver string
	DSN    string
	Redis  cache.Config
}

// Open builds the backend named by cfg.Driver, applies SQL migrations when
// relevant, and returns a ready Store. Call Close on shutdown.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) (*Store, error) {
	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(backend, logger, opts...), nil
}

func openBackend(ctx context.Context, cfg Config, logger *slog.Logger) (Backend, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory":
		logger.Warn("using in-memory store, data will not survive a restart")
		return NewMemory(), nil
	case "redis":
		client := cache.New(cfg.Redis, logger)
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return nil, err
		}
		return NewRedis(client), nil
	}

	dialect, err := DialectByName(driver)
	if err != nil {
		return nil, err
	}
	backend, err := OpenSQL(ctx, dialect, cfg.DSN, logger)
	if err != nil {
		return nil, err
	}
	files, err := migrations.For(dialect.Name)
	if err != nil {
		backend.Close()
		return nil, err
	}
	if err := backend.RunMigrations(ctx, files); err != nil {
		backend.Close()
		return nil, fmt.Errorf("migrate %s store: %w", dialect.Name, err)
	}
	return backend, nil
}
