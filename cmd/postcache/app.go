package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hypergopher/postcache"
	"github.com/hypergopher/postcache/bboltstore"
	"github.com/hypergopher/postcache/config"
	"github.com/hypergopher/postcache/sqlitestore"
)

// app holds what every command needs: the configuration, the logger, the durable store and the cache
// in front of it.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	cache  *postcache.CachedPostStore
	closer io.Closer
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.LogLevel)

	data, closer, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cache := postcache.NewCachedPostStore(data, postcache.Options{
		FullText: cfg.FullText,
		Logger:   logger,
	})

	return &app{cfg: cfg, logger: logger, cache: cache, closer: closer}, nil
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func openStore(ctx context.Context, cfg config.Config) (postcache.DataAccess, io.Closer, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		store, err := sqlitestore.Open(ctx, cfg.StoragePath)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening sqlite store: %w", err)
		}
		return store, store, nil

	case config.DriverBBolt:
		store, err := bboltstore.Open(cfg.StoragePath)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening bbolt store: %w", err)
		}
		return store, store, nil

	default:
		return postcache.NewMemoryStore(), nil, nil
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
