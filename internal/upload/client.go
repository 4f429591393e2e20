// Package upload implements the resumable media upload protocol: a file is
// announced with a metadata-only start request, then streamed to the returned
// session URL in sequential chunks, the last of which finalizes the File.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"geminikit/internal/core"
	"geminikit/internal/pkg/apiclient"
)

// DefaultUploadURL is the media upload endpoint.
const DefaultUploadURL = "https://generativelanguage.googleapis.com/upload/v1beta/files"

// Protocol headers and commands.
const (
	HeaderProtocol      = "X-Goog-Upload-Protocol"
	HeaderCommand       = "X-Goog-Upload-Command"
	HeaderOffset        = "X-Goog-Upload-Offset"
	HeaderUploadURL     = "X-Goog-Upload-URL"
	HeaderContentLength = "X-Goog-Upload-Header-Content-Length"
	HeaderContentType   = "X-Goog-Upload-Header-Content-Type"

	ProtocolResumable = "resumable"
	CommandStart      = "start"
	CommandUpload     = "upload"
	CommandFinalize   = "upload, finalize"
)

// Transport sends one request and returns whatever the server answered.
type Transport interface {
	DoRaw(ctx context.Context, req apiclient.Request) (*apiclient.Response, error)
}

// Config holds the upload endpoint settings
type Config struct {
	// UploadURL is the initiation endpoint (default: DefaultUploadURL)
	UploadURL string
	// APIKey is sent as ?key= on the initiation request only
	APIKey string
	// ChunkSize bounds every chunk (default: DefaultChunkSize)
	ChunkSize int64
}

// Option customizes a Client
type Option func(*Client)

// WithFileSystem replaces the host filesystem, e.g. with a fake in tests.
func WithFileSystem(fsys FileSystem) Option {
	return func(c *Client) { c.fs = fsys }
}

// WithInspector replaces the size/MIME detection.
func WithInspector(i Inspector) Option {
	return func(c *Client) { c.inspector = i }
}

// WithHooks attaches upload observers.
func WithHooks(h Hooks) Option {
	return func(c *Client) { c.hooks = h }
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client drives files through the resumable upload protocol.
// It keeps no per-upload state, so concurrent Upload calls for different files are safe.
type Client struct {
	transport Transport
	config    Config
	fs        FileSystem
	inspector Inspector
	hooks     Hooks
	logger    *slog.Logger
}

// New creates an upload client
func New(transport Transport, config Config, opts ...Option) *Client {
	if config.UploadURL == "" {
		config.UploadURL = DefaultUploadURL
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	c := &Client{
		transport: transport,
		config:    config,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fs == nil {
		c.fs = OSFileSystem{}
	}
	if c.inspector == nil {
		c.inspector = FSInspector{FS: c.fs}
	}
	if c.hooks == nil {
		c.hooks = noopHooks{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// ChunkSize returns the configured chunk size.
func (c *Client) ChunkSize() int64 {
	return c.config.ChunkSize
}

// Upload sends the file at path and returns the finalized remote File.
//
// meta may carry a display name. Its size and MIME type are ignored: both are
// always taken from the local file. meta itself is never modified.
//
// Nothing is retried. On failure the session is abandoned; calling Upload
// again starts a new session from byte zero.
func (c *Client) Upload(ctx context.Context, path string, meta *core.File) (*core.File, error) {
	started := time.Now()
	uploadID := core.GetRequestID(ctx)
	if uploadID == "" {
		uploadID = uuid.NewString()
		ctx = core.WithRequestID(ctx, uploadID)
	}
	logger := c.logger.With("upload_id", uploadID, "path", path)

	file, err := c.upload(ctx, logger, path, meta)
	elapsed := time.Since(started)
	c.hooks.UploadFinished(err, elapsed)
	if err != nil {
		logger.Warn("upload failed", "error", err, "duration", elapsed)
		return nil, err
	}

	logger.Info("upload finalized",
		"name", file.Name,
		"size", units.HumanSize(float64(file.SizeBytes)),
		"duration", elapsed,
	)
	return file, nil
}

func (c *Client) upload(ctx context.Context, logger *slog.Logger, path string, meta *core.File) (*core.File, error) {
	info, err := c.inspector.Inspect(path)
	if err != nil {
		return nil, err
	}

	var desc core.File
	if meta != nil {
		desc = *meta
	}
	desc.SizeBytes = info.Size
	desc.MimeType = info.MimeType

	c.hooks.UploadStarted(info)
	logger.Debug("starting upload",
		"size", units.HumanSize(float64(info.Size)),
		"mime_type", info.MimeType,
		"chunk_size", units.BytesSize(float64(c.config.ChunkSize)),
	)

	session, err := c.initiate(ctx, desc)
	if err != nil {
		return nil, err
	}

	f, err := openForRead(c.fs, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("failed to close file", "error", closeErr)
		}
	}()

	return c.sendChunks(ctx, logger, session, NewChunkReader(f, info.Size, c.config.ChunkSize))
}

type startRequest struct {
	File startFile `json:"file"`
}

type startFile struct {
	DisplayName string `json:"display_name,omitempty"`
}

// initiate announces the upload and returns the session the server allocated.
func (c *Client) initiate(ctx context.Context, desc core.File) (Session, error) {
	req := apiclient.Request{
		Method: http.MethodPost,
		URL:    c.config.UploadURL,
		Headers: map[string]string{
			HeaderProtocol:      ProtocolResumable,
			HeaderCommand:       CommandStart,
			HeaderContentLength: strconv.FormatInt(desc.SizeBytes, 10),
			HeaderContentType:   desc.MimeType,
		},
		Body: startRequest{File: startFile{DisplayName: desc.DisplayName}},
	}
	if c.config.APIKey != "" {
		req.Query = url.Values{"key": {c.config.APIKey}}
	}

	resp, err := c.transport.DoRaw(ctx, req)
	if err != nil {
		return Session{}, core.NewSessionInitiationError("failed to initiate upload", 0, nil, err)
	}
	if !resp.IsSuccess() {
		return Session{}, core.NewSessionInitiationError("upload initiation rejected", resp.StatusCode, resp.Body, nil)
	}

	session, err := NewSession(resp.Header.Get(HeaderUploadURL), desc.SizeBytes)
	if err != nil {
		return Session{}, core.NewSessionInitiationError("failed to get upload URL from initial request", resp.StatusCode, resp.Body, err)
	}
	return session, nil
}

// sendChunks streams the file to the session URL one chunk at a time.
// The session only advances after the server acknowledged a chunk.
func (c *Client) sendChunks(ctx context.Context, logger *slog.Logger, session Session, reader *ChunkReader) (*core.File, error) {
	for {
		chunk, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = core.NewChunkReadError(reader.Offset(), io.ErrUnexpectedEOF)
			}
			abandon(logger, session)
			return nil, err
		}

		final := chunk.End() == session.TotalSize
		command := CommandUpload
		if final {
			command = CommandFinalize
		}

		sent := time.Now()
		resp, err := c.transport.DoRaw(ctx, apiclient.Request{
			Method: http.MethodPost,
			URL:    session.URL,
			Headers: map[string]string{
				HeaderCommand: command,
				HeaderOffset:  strconv.FormatInt(chunk.Offset, 10),
			},
			RawBody: chunk.Data,
		})
		if err != nil {
			abandon(logger, session)
			return nil, core.NewChunkUploadError(chunk.Range(), 0, nil, err)
		}
		if !resp.IsSuccess() {
			abandon(logger, session)
			return nil, core.NewChunkUploadError(chunk.Range(), resp.StatusCode, resp.Body, nil)
		}

		if session, err = session.Advance(chunk.Len()); err != nil {
			return nil, err
		}
		c.hooks.ChunkSent(chunk.Len(), final, time.Since(sent))
		logger.Debug("chunk acknowledged",
			"offset", chunk.Offset,
			"length", chunk.Len(),
			"final", final,
			"status_code", resp.StatusCode,
		)

		if !final {
			continue
		}

		file, err := parseFinalized(resp.Body)
		if err != nil {
			return nil, core.NewChunkUploadError(chunk.Range(), resp.StatusCode, resp.Body, err)
		}
		if _, err := session.Finalize(); err != nil {
			return nil, err
		}
		return file, nil
	}
}

func abandon(logger *slog.Logger, session Session) {
	failed := session.Fail()
	logger.Debug("upload session abandoned",
		"state", failed.State.String(),
		"bytes_sent", failed.BytesSent,
		"total_size", failed.TotalSize,
	)
}

// parseFinalized extracts the File from a {"file": {...}} finalize body.
func parseFinalized(body []byte) (*core.File, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("finalize response is not valid JSON")
	}
	raw := gjson.GetBytes(body, "file")
	if !raw.IsObject() {
		return nil, errors.New("file is missing or not an object")
	}
	var file core.File
	if err := json.Unmarshal([]byte(raw.Raw), &file); err != nil {
		return nil, err
	}
	return &file, nil
}
