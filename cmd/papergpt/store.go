package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kalambet/papergpt/internal/config"
	"github.com/kalambet/papergpt/internal/settings"
	"github.com/kalambet/papergpt/internal/storage"
)

func storageConfig(cfg config.Config) storage.Config {
	return storage.Config{
		Backend:     cfg.Storage.Backend,
		DataDir:     cfg.Storage.DataDir,
		RedisURL:    cfg.Storage.RedisURL,
		RedisPrefix: cfg.Storage.RedisPrefix,
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// openSettings opens the configured store for a one-shot command. Tests
// replace it with an in-memory store.
var openSettings = func() (*settings.Accessor, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Storage.Backend == storage.BackendMemory {
		return nil, nil, fmt.Errorf("storage.backend is %q; those settings live only inside `papergpt serve`", storage.BackendMemory)
	}

	store, err := storage.Open(storageConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}
	logger := newLogger(cfg).With("component", "settings")
	return settings.NewAccessor(store, settings.DefaultUserConfig(), settings.WithLogger(logger)), store, nil
}

// withSettings runs fn against a freshly opened accessor and closes the store afterwards.
func withSettings(fn func(acc *settings.Accessor) error) error {
	acc, closer, err := openSettings()
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			printWarning("closing storage: %v", err)
		}
	}()
	return fn(acc)
}
