package storage

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/kalambet/papergpt/internal/settings"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Backends lists every name Open accepts.
var Backends = []string{BackendMemory, BackendFile, BackendSQLite, BackendRedis}

type Config struct {
	Backend     string
	DataDir     string
	RedisURL    string
	RedisPrefix string
}

// Backend is a settings store that holds resources until closed.
type Backend interface {
	settings.Store
	io.Closer
}

// Open returns the backend named by cfg.Backend.
func Open(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(settingsFilePath(cfg.DataDir)), nil
	case BackendSQLite:
		s, err := OpenSQLite(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("storage backend set to redis but redis URL is empty")
		}
		return NewRedisStore(cfg.RedisURL, cfg.RedisPrefix), nil
	}
	return nil, fmt.Errorf("%w: %q (valid: %v)", ErrUnknownBackend, cfg.Backend, Backends)
}

// Location describes where the backend named by cfg keeps its data: a file
// path, the redis URL with key prefix, or "" for memory.
func Location(cfg Config) string {
	switch cfg.Backend {
	case BackendFile:
		return settingsFilePath(cfg.DataDir)
	case BackendSQLite:
		return sqlitePath(cfg.DataDir)
	case BackendRedis:
		return fmt.Sprintf("%s (prefix %q)", cfg.RedisURL, cfg.RedisPrefix)
	}
	return ""
}

func settingsFilePath(dataDir string) string {
	return filepath.Join(dataDir, "settings.json")
}

func sqlitePath(dataDir string) string {
	return filepath.Join(dataDir, "papergpt.db")
}
