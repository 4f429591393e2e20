package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultLocalPath is where the local registry keeps its records.
const DefaultLocalPath = ".cache/geminikit/uploads.json"

// LocalRegistry keeps all records in a single JSON file.
// This is suitable for a single process on one machine.
type LocalRegistry struct {
	mu       sync.RWMutex
	filePath string
}

// LocalConfig holds local file registry configuration.
type LocalConfig struct {
	// Path is the JSON file (default: DefaultLocalPath)
	Path string
}

// NewLocalRegistry creates a registry backed by filePath.
func NewLocalRegistry(filePath string) *LocalRegistry {
	if filePath == "" {
		filePath = DefaultLocalPath
	}
	return &LocalRegistry{filePath: filePath}
}

// Get returns the record for key from the file.
func (r *LocalRegistry) Get(_ context.Context, key string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}
	rec, ok := records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Put stores rec and rewrites the file.
func (r *LocalRegistry) Put(_ context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	records[rec.Key] = *rec
	return r.save(records)
}

// Delete removes key and rewrites the file.
func (r *LocalRegistry) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := records[key]; !ok {
		return nil
	}
	delete(records, key)
	return r.save(records)
}

// Close is a no-op for the local registry.
func (r *LocalRegistry) Close() error {
	return nil
}

func (r *LocalRegistry) load() (map[string]Record, error) {
	records := make(map[string]Record)

	data, err := os.ReadFile(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil // No registry file yet, not an error
		}
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	if len(data) == 0 {
		return records, nil
	}

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}
	return records, nil
}

func (r *LocalRegistry) save(records map[string]Record) error {
	dir := filepath.Dir(r.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	// Write atomically using temp file + rename
	tmpFile := r.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	if err := os.Rename(tmpFile, r.filePath); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to rename registry file: %w", err)
	}
	return nil
}
