package resources

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"geminikit/internal/core"
	"geminikit/internal/pkg/apiclient"
)

// DefaultPollInterval is the WaitActive polling interval when none is given.
const DefaultPollInterval = 2 * time.Second

// Files manages uploaded files.
type Files struct {
	api    Doer
	logger *slog.Logger
}

// NewFiles creates a Files resource. A nil logger uses slog.Default().
func NewFiles(api Doer, logger *slog.Logger) *Files {
	if logger == nil {
		logger = slog.Default()
	}
	return &Files{api: api, logger: logger}
}

// Get returns the metadata of a file. name is "files/{id}" or a bare id.
func (f *Files) Get(ctx context.Context, name string) (*core.File, error) {
	name, err := resourceName("files", name)
	if err != nil {
		return nil, err
	}

	var file core.File
	if err := f.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Endpoint: name}, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// List returns one page of the project's files.
func (f *Files) List(ctx context.Context, opts ListOptions) (*core.ListFilesResponse, error) {
	var resp core.ListFilesResponse
	err := f.api.Do(ctx, apiclient.Request{
		Method:   http.MethodGet,
		Endpoint: "files",
		Query:    opts.query(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete deletes a file.
func (f *Files) Delete(ctx context.Context, name string) error {
	name, err := resourceName("files", name)
	if err != nil {
		return err
	}
	return f.api.Do(ctx, apiclient.Request{Method: http.MethodDelete, Endpoint: name}, nil)
}

// WaitActive polls Get until the file is no longer PROCESSING.
// A file that ends up FAILED is returned together with an api_error.
func (f *Files) WaitActive(ctx context.Context, name string, interval time.Duration) (*core.File, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		file, err := f.Get(ctx, name)
		if err != nil {
			return nil, err
		}

		switch file.State {
		case core.FileStateProcessing:
			f.logger.Debug("waiting for file processing", "name", file.Name, "interval", interval)
		case core.FileStateFailed:
			return file, processingError(file)
		default:
			return file, nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func processingError(file *core.File) *core.Error {
	e := &core.Error{
		Type:    core.ErrorTypeAPI,
		Message: "file processing failed: " + file.Name,
	}
	if file.Error != nil {
		e.Message += ": " + file.Error.Message
		e.APIStatus = file.Error.Status
	}
	return e
}
