package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"

	"geminikit/internal/core"
	"geminikit/internal/registry"
)

const (
	// DefaultFileLifetime is how long the API keeps an uploaded file when the
	// File carries no expiration time.
	DefaultFileLifetime = 48 * time.Hour

	// ReuseMargin is the minimum lifetime a recorded file must have left to be reused.
	ReuseMargin = time.Hour
)

// Uploader turns a local file into a remote File.
type Uploader interface {
	Upload(ctx context.Context, path string, meta *core.File) (*core.File, error)
}

// Checker reads the current state of a remote file.
type Checker interface {
	Get(ctx context.Context, name string) (*core.File, error)
}

// Deduplicator skips uploads of content that was already uploaded and has not expired.
type Deduplicator struct {
	uploader Uploader
	registry registry.Registry
	checker  Checker
	fs       FileSystem
	logger   *slog.Logger
	now      func() time.Time
}

// NewDeduplicator wraps uploader with a registry lookup.
// When checker is non-nil a recorded file is confirmed remotely before it is reused.
func NewDeduplicator(uploader Uploader, reg registry.Registry, checker Checker, fsys FileSystem, logger *slog.Logger) *Deduplicator {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{
		uploader: uploader,
		registry: reg,
		checker:  checker,
		fs:       fsys,
		logger:   logger,
		now:      time.Now,
	}
}

// Upload returns the recorded File for path's content when it is still usable,
// otherwise uploads the file and records the result.
// A record is only reused when meta asks for no display name or for the one it
// was uploaded with. Records of files the server no longer has are dropped.
// Registry failures are logged and never fail the upload.
func (d *Deduplicator) Upload(ctx context.Context, path string, meta *core.File) (*core.File, error) {
	key, err := Fingerprint(d.fs, path)
	if err != nil {
		return nil, err
	}

	rec, err := d.registry.Get(ctx, key)
	if err != nil {
		d.logger.Warn("registry lookup failed", "key", key, "error", err)
	}
	if rec != nil && d.reusable(rec, meta) {
		if file, ok := d.confirm(ctx, rec); ok {
			d.logger.Info("reusing uploaded file", "path", path, "name", file.Name, "key", key)
			return file, nil
		}
	}

	file, err := d.uploader.Upload(ctx, path, meta)
	if err != nil {
		return nil, err
	}

	if err := d.registry.Put(ctx, &registry.Record{
		Key:        key,
		Path:       path,
		File:       *file,
		UploadedAt: d.now().UTC(),
	}); err != nil {
		d.logger.Warn("failed to record upload", "key", key, "error", err)
	}
	return file, nil
}

func (d *Deduplicator) reusable(rec *registry.Record, meta *core.File) bool {
	if rec.File.Name == "" || rec.File.State == core.FileStateFailed {
		return false
	}
	if meta != nil && meta.DisplayName != "" && meta.DisplayName != rec.File.DisplayName {
		return false
	}
	expires, err := time.Parse(time.RFC3339Nano, rec.File.ExpirationTime)
	if err != nil {
		expires = rec.UploadedAt.Add(DefaultFileLifetime)
	}
	return d.now().Add(ReuseMargin).Before(expires)
}

// confirm asks the server for the recorded file. Files that are gone or failed
// have their record removed.
func (d *Deduplicator) confirm(ctx context.Context, rec *registry.Record) (*core.File, bool) {
	if d.checker == nil {
		file := rec.File
		return &file, true
	}

	remote, err := d.checker.Get(ctx, rec.File.Name)
	switch {
	case err != nil && isGone(err):
		d.logger.Info("recorded file no longer exists", "name", rec.File.Name, "key", rec.Key)
		d.forget(ctx, rec.Key)
		return nil, false
	case err != nil:
		d.logger.Warn("failed to confirm recorded file", "name", rec.File.Name, "error", err)
		return nil, false
	case remote.State == core.FileStateFailed:
		d.logger.Info("recorded file failed processing", "name", rec.File.Name, "key", rec.Key)
		d.forget(ctx, rec.Key)
		return nil, false
	}

	refreshed := *rec
	refreshed.File = *remote
	if err := d.registry.Put(ctx, &refreshed); err != nil {
		d.logger.Warn("failed to refresh upload record", "key", rec.Key, "error", err)
	}
	return remote, true
}

func (d *Deduplicator) forget(ctx context.Context, key string) {
	if err := d.registry.Delete(ctx, key); err != nil {
		d.logger.Warn("failed to drop upload record", "key", key, "error", err)
	}
}

// isGone reports whether the API said the file does not exist.
// Files that were deleted or never belonged to the key answer 403 PERMISSION_DENIED.
func isGone(err error) bool {
	switch core.StatusCodeOf(err) {
	case http.StatusNotFound, http.StatusForbidden:
		return true
	}
	return false
}

// Fingerprint identifies a file by the xxhash of its content and its size.
func Fingerprint(fsys FileSystem, path string) (string, error) {
	f, err := openForRead(fsys, path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := xxhash.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", core.NewFileUnreadableError("failed to hash file", err)
	}
	return fmt.Sprintf("%016x-%d", h.Sum64(), n), nil
}
