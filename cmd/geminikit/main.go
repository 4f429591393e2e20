// Package main is a small command line tool around the Gemini files API.
// Usage:
//
//	GEMINI_API_KEY=... go run ./cmd/geminikit upload -name "clip" -wait video.mp4
//	GEMINI_API_KEY=... go run ./cmd/geminikit list -page-size 20
//	GEMINI_API_KEY=... go run ./cmd/geminikit get files/abc123
//	GEMINI_API_KEY=... go run ./cmd/geminikit delete files/abc123
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geminikit/config"
	"geminikit/internal/app"
	"geminikit/internal/core"
	"geminikit/internal/logging"
	"geminikit/internal/resources"
)

const usage = `usage: geminikit <command> [flags] [args]

commands:
  upload [-name NAME] [-wait] PATH...   upload local files
  get NAME                              show a file
  list [-page-size N] [-page-token T]   list files
  delete NAME                           delete a file
  caches create -model M [-ttl D] [-name N] FILE...
                                        cache uploaded files for a model
  caches get|delete NAME                show or delete a cached content
  caches list [-page-size N] [-page-token T]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stderr, logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logging: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1], os.Args[2:]); err != nil {
		var apiErr *core.Error
		if errors.As(err, &apiErr) && apiErr.Body != "" {
			slog.Error("command failed", "error", err, "body", apiErr.Body)
		} else {
			slog.Error("command failed", "error", err)
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, command string, args []string) error {
	var reg *prometheus.Registry
	if cfg.Metrics.Addr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		shutdown := serveMetrics(cfg.Metrics.Addr, reg)
		defer shutdown()
	}

	appCfg := app.Config{AppConfig: cfg, Logger: slog.Default()}
	if reg != nil {
		appCfg.Registerer = reg
	}
	a, err := app.New(ctx, appCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}()

	switch command {
	case "upload":
		return runUpload(ctx, a, args)
	case "get":
		return runGet(ctx, a, args)
	case "list":
		return runList(ctx, a, args)
	case "delete":
		return runDelete(ctx, a, args)
	case "caches":
		return runCaches(ctx, a, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runUpload(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	name := fs.String("name", "", "display name (default: none)")
	wait := fs.Bool("wait", false, "wait until the file leaves PROCESSING")
	interval := fs.Duration("interval", resources.DefaultPollInterval, "polling interval for -wait")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("upload needs at least one path")
	}

	for _, path := range fs.Args() {
		file, err := a.Uploader().Upload(ctx, path, &core.File{DisplayName: *name})
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if *wait {
			if file, err = a.Files().WaitActive(ctx, file.Name, *interval); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		if err := printJSON(file); err != nil {
			return err
		}
	}
	return nil
}

func runGet(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("get needs exactly one file name")
	}
	file, err := a.Files().Get(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(file)
}

func runList(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	pageSize := fs.Int("page-size", 0, "maximum files per page (default: server default)")
	pageToken := fs.String("page-token", "", "token from a previous page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := a.Files().List(ctx, resources.ListOptions{PageSize: *pageSize, PageToken: *pageToken})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runDelete(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("delete needs exactly one file name")
	}
	if err := a.Files().Delete(ctx, args[0]); err != nil {
		return err
	}
	slog.Info("file deleted", "name", args[0])
	return nil
}

func runCaches(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("caches needs a subcommand: create, get, list or delete")
	}
	caches := a.CachedContents()
	sub, args := args[0], args[1:]

	switch sub {
	case "create":
		fs := flag.NewFlagSet("caches create", flag.ContinueOnError)
		model := fs.String("model", "", "model the cache is created for, e.g. gemini-1.5-flash-001")
		ttl := fs.Duration("ttl", time.Hour, "time to live")
		name := fs.String("name", "", "display name")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() == 0 {
			return fmt.Errorf("caches create needs at least one uploaded file name")
		}

		content := core.Content{Role: "user"}
		for _, fileName := range fs.Args() {
			file, err := a.Files().Get(ctx, fileName)
			if err != nil {
				return err
			}
			part, err := core.FilePartFrom(file)
			if err != nil {
				return err
			}
			content.Parts = append(content.Parts, part)
		}

		created, err := caches.Create(ctx, &core.CachedContent{
			Model:       *model,
			DisplayName: *name,
			Contents:    []core.Content{content},
			TTL:         fmt.Sprintf("%.0fs", ttl.Seconds()),
		})
		if err != nil {
			return err
		}
		return printJSON(created)

	case "get":
		if len(args) != 1 {
			return fmt.Errorf("caches get needs exactly one name")
		}
		cc, err := caches.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cc)

	case "list":
		fs := flag.NewFlagSet("caches list", flag.ContinueOnError)
		pageSize := fs.Int("page-size", 0, "maximum entries per page")
		pageToken := fs.String("page-token", "", "token from a previous page")
		if err := fs.Parse(args); err != nil {
			return err
		}
		resp, err := caches.List(ctx, resources.ListOptions{PageSize: *pageSize, PageToken: *pageToken})
		if err != nil {
			return err
		}
		return printJSON(resp)

	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("caches delete needs exactly one name")
		}
		if err := caches.Delete(ctx, args[0]); err != nil {
			return err
		}
		slog.Info("cached content deleted", "name", args[0])
		return nil
	}
	return fmt.Errorf("unknown caches subcommand: %s", sub)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("serving metrics", "address", addr, "path", "/metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
