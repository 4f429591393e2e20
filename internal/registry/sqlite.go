package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DefaultSQLitePath is the default database file.
const DefaultSQLitePath = ".cache/geminikit/registry.db"

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	// Path is the database file path (default: DefaultSQLitePath)
	Path string
}

// SQLiteRegistry stores records in a SQLite table.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry opens the database and creates the table if needed.
func NewSQLiteRegistry(ctx context.Context, cfg SQLiteConfig) (*SQLiteRegistry, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultSQLitePath
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	dsn := cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite only allows one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS uploaded_files (
			key TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			uploaded_at INTEGER NOT NULL,
			data TEXT NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create uploaded_files table: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_uploaded_files_name ON uploaded_files(name)"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create uploaded_files name index: %w", err)
	}

	return &SQLiteRegistry{db: db}, nil
}

// Get returns the record for key.
func (r *SQLiteRegistry) Get(ctx context.Context, key string) (*Record, error) {
	var (
		path       string
		uploadedAt int64
		payload    string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT path, uploaded_at, data FROM uploaded_files WHERE key = ?", key,
	).Scan(&path, &uploadedAt, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query record: %w", err)
	}

	rec := &Record{
		Key:        key,
		Path:       path,
		UploadedAt: time.UnixMilli(uploadedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(payload), &rec.File); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// Put inserts or replaces rec.
func (r *SQLiteRegistry) Put(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	payload, err := json.Marshal(rec.File)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO uploaded_files (key, path, name, uploaded_at, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			path = excluded.path,
			name = excluded.name,
			uploaded_at = excluded.uploaded_at,
			data = excluded.data
	`, rec.Key, rec.Path, rec.File.Name, rec.UploadedAt.UnixMilli(), string(payload))
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Delete removes the record for key.
func (r *SQLiteRegistry) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM uploaded_files WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Close closes the database.
func (r *SQLiteRegistry) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
