package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jtq-dev/opslens/internal/api"
	"github.com/jtq-dev/opslens/internal/bundle"
	"github.com/jtq-dev/opslens/internal/config"
	"github.com/jtq-dev/opslens/internal/ingest"
	"github.com/jtq-dev/opslens/internal/metrics"
	"github.com/jtq-dev/opslens/internal/store"
	"github.com/jtq-dev/opslens/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard static files from this directory; leave empty to disable")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("opslens-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"data_path", cfg.Server.DataPath,
		"max_upload_mb", cfg.Server.Ingest.MaxUploadMB,
		"max_archive_mb", cfg.Server.Ingest.MaxArchiveMB,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Run store: SQLite when a data path is set, otherwise in-memory.
	var st store.Store
	if cfg.Server.DataPath != "" {
		st, err = store.OpenSQLite(cfg.Server.DataPath)
		if err != nil {
			slog.Error("failed to open database", "path", cfg.Server.DataPath, "err", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("no data_path configured, using in-memory store")
		st = store.NewMemory()
	}
	defer st.Close()

	// WebSocket hub — pushes a message to dashboard clients per ingested run.
	hub := ws.New()
	go hub.Run(ctx)

	svc := ingest.New(st, bundle.Limits{
		MaxBytes:   cfg.Server.Ingest.MaxArchiveBytes(),
		MaxMembers: cfg.Server.Ingest.MaxMembers,
	}, hub)

	// Hot-reload the ingest limits when the config file changes.
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			svc.SetLimits(bundle.Limits{
				MaxBytes:   next.Server.Ingest.MaxArchiveBytes(),
				MaxMembers: next.Server.Ingest.MaxMembers,
			})
			slog.Info("ingest limits reloaded",
				"max_archive_mb", next.Server.Ingest.MaxArchiveMB,
				"max_members", next.Server.Ingest.MaxMembers,
			)
		})
		if err != nil {
			slog.Warn("config watcher stopped", "err", err)
		}
	}()

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", metrics.Middleware(api.New(st, svc, cfg.Server.Ingest.MaxUploadBytes())))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", promhttp.Handler())

	// Optional: serve the pre-built dashboard from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("opslens-server shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}
