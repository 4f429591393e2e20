// Package registry remembers which local files have been uploaded and the
// remote File each one became, so an unchanged file is not sent twice.
// Supports a local JSON file, Redis for shared deployments and SQLite.
package registry

import (
	"context"
	"fmt"
	"time"

	"geminikit/internal/core"
)

// Type constants for registry backends
const (
	TypeLocal  = "local"
	TypeRedis  = "redis"
	TypeSQLite = "sqlite"
)

// Record is one uploaded file.
type Record struct {
	// Key is the content fingerprint of the local file
	Key        string    `json:"key"`
	Path       string    `json:"path"`
	File       core.File `json:"file"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Registry stores upload records by key.
// Implementations must be safe for concurrent use.
type Registry interface {
	// Get returns the record for key.
	// Returns nil, nil if there is none.
	Get(ctx context.Context, key string) (*Record, error)

	// Put stores rec, replacing any record with the same key.
	Put(ctx context.Context, rec *Record) error

	// Delete removes the record for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the registry.
	Close() error
}

// Config holds registry configuration
type Config struct {
	// Type specifies the backend: "local", "redis" or "sqlite"
	Type string

	Local  LocalConfig
	Redis  RedisConfig
	SQLite SQLiteConfig
}

// New creates a Registry for the configured backend.
func New(ctx context.Context, cfg Config) (Registry, error) {
	switch cfg.Type {
	case TypeLocal:
		return NewLocalRegistry(cfg.Local.Path), nil
	case TypeRedis:
		return NewRedisRegistry(ctx, cfg.Redis)
	case TypeSQLite:
		return NewSQLiteRegistry(ctx, cfg.SQLite)
	default:
		return nil, fmt.Errorf("unknown registry type: %s (valid: local, redis, sqlite)", cfg.Type)
	}
}

func validateRecord(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("record is required")
	}
	if rec.Key == "" {
		return fmt.Errorf("record key is required")
	}
	return nil
}
