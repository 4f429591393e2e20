// Package app wires configuration into the API clients and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/prometheus/client_golang/prometheus"

	"geminikit/config"
	"geminikit/internal/core"
	"geminikit/internal/httpclient"
	"geminikit/internal/observability"
	"geminikit/internal/pkg/apiclient"
	"geminikit/internal/registry"
	"geminikit/internal/resources"
	"geminikit/internal/upload"
)

// App holds the configured clients.
type App struct {
	config   *config.Config
	logger   *slog.Logger
	api      *apiclient.Client
	uploader upload.Uploader
	files    *resources.Files
	caches   *resources.CachedContents
	registry registry.Registry

	closeMu sync.Mutex
	closed  bool
}

// Config holds the options for creating an App.
type Config struct {
	// AppConfig is the loaded configuration
	AppConfig *config.Config

	// Logger defaults to slog.Default()
	Logger *slog.Logger

	// Registerer receives upload metrics; nil disables them
	Registerer prometheus.Registerer

	// FileSystem replaces the host filesystem for uploads
	FileSystem upload.FileSystem
}

// New creates an App. The caller must call Close to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	appCfg := cfg.AppConfig
	if appCfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required (set GEMINI_API_KEY)")
	}
	if err := appCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = time.Duration(appCfg.HTTP.Timeout) * time.Second
	httpCfg.ResponseHeaderTimeout = time.Duration(appCfg.HTTP.ResponseHeaderTimeout) * time.Second

	apiCfg := apiclient.DefaultConfig(appCfg.Gemini.BaseURL, appCfg.Gemini.APIKey)
	if cb := appCfg.HTTP.CircuitBreaker; cb.Enabled() {
		apiCfg.CircuitBreaker = &apiclient.CircuitBreakerConfig{
			FailureThreshold: cb.FailureThreshold,
			SuccessThreshold: cb.SuccessThreshold,
			Timeout:          cb.Timeout,
		}
	}
	api := apiclient.NewWithHTTPClient(httpclient.NewHTTPClient(&httpCfg), apiCfg, forwardRequestID)

	chunkSize, err := appCfg.Upload.ChunkSizeBytes()
	if err != nil {
		return nil, err
	}

	opts := []upload.Option{upload.WithLogger(logger)}
	if cfg.FileSystem != nil {
		opts = append(opts, upload.WithFileSystem(cfg.FileSystem))
	}
	if cfg.Registerer != nil {
		opts = append(opts, upload.WithHooks(observability.NewPrometheusHooks(cfg.Registerer)))
	}
	uploadClient := upload.New(api, upload.Config{
		UploadURL: appCfg.Gemini.UploadURL,
		APIKey:    appCfg.Gemini.APIKey,
		ChunkSize: chunkSize,
	}, opts...)

	app := &App{
		config:   appCfg,
		logger:   logger,
		api:      api,
		uploader: uploadClient,
		files:    resources.NewFiles(api, logger),
		caches:   resources.NewCachedContents(api),
	}

	if appCfg.Registry.Type != config.RegistryNone {
		reg, err := registry.New(ctx, registry.Config{
			Type:   appCfg.Registry.Type,
			Local:  registry.LocalConfig{Path: appCfg.Registry.Path},
			Redis:  registry.RedisConfig{URL: appCfg.Registry.RedisURL, TTL: appCfg.Registry.TTL},
			SQLite: registry.SQLiteConfig{Path: appCfg.Registry.Path},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize upload registry: %w", err)
		}
		app.registry = reg
		app.uploader = upload.NewDeduplicator(uploadClient, reg, app.files, cfg.FileSystem, logger)
	}

	app.logStartupInfo(chunkSize, cfg.Registerer != nil)
	return app, nil
}

// Uploader returns the upload entry point, deduplicating when a registry is configured.
func (a *App) Uploader() upload.Uploader {
	return a.uploader
}

// Files returns the files resource.
func (a *App) Files() *resources.Files {
	return a.files
}

// CircuitState reports the API circuit breaker position.
func (a *App) CircuitState() apiclient.CircuitState {
	return a.api.CircuitState()
}

// CachedContents returns the cached contents resource.
func (a *App) CachedContents() *resources.CachedContents {
	return a.caches
}

// Close releases the registry. It is idempotent.
func (a *App) Close() error {
	a.closeMu.Lock()
	defer a.closeMu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("registry close: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// forwardRequestID copies the correlation ID from the request context onto the wire.
func forwardRequestID(req *http.Request) {
	if requestID := core.GetRequestID(req.Context()); requestID != "" {
		req.Header.Set(core.HeaderRequestID, requestID)
	}
}

func (a *App) logStartupInfo(chunkSize int64, metrics bool) {
	cfg := a.config

	a.logger.Debug("api configured",
		"base_url", cfg.Gemini.BaseURL,
		"upload_url", cfg.Gemini.UploadURL,
		"chunk_size", units.BytesSize(float64(chunkSize)),
		"http_timeout", time.Duration(cfg.HTTP.Timeout)*time.Second,
	)

	if cb := cfg.HTTP.CircuitBreaker; cb.Enabled() {
		a.logger.Debug("circuit breaker enabled",
			"failure_threshold", cb.FailureThreshold,
			"success_threshold", cb.SuccessThreshold,
			"timeout", cb.Timeout,
		)
	}

	if cfg.Registry.Type != config.RegistryNone {
		a.logger.Debug("upload deduplication enabled", "registry", cfg.Registry.Type)
	} else {
		a.logger.Debug("upload deduplication disabled")
	}

	if metrics {
		a.logger.Debug("upload metrics enabled")
	}
}
