package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jtq-dev/opslens/internal/collect"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "base URL of the opslens server")
	host := flag.String("host", "", "host name to report (defaults to the system hostname)")
	interval := flag.Duration("interval", 0, "collection interval; 0 collects once and exits")
	bufferSize := flag.Int("buffer", 8, "bundles to buffer while the server is unreachable")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := collect.New(*host)
	shipper := collect.NewShipper(*serverURL, *bufferSize)

	slog.Info("opslens-collect starting",
		"server", *serverURL, "interval", *interval)

	// One-shot mode: collect, upload synchronously, report the outcome.
	if *interval <= 0 {
		snap := collector.Snapshot(ctx)
		data, name, err := collect.Archive(snap)
		if err != nil {
			slog.Error("archive failed", "err", err)
			os.Exit(1)
		}
		if err := shipper.Upload(ctx, name, data); err != nil {
			slog.Error("upload failed", "name", name, "err", err)
			os.Exit(1)
		}
		slog.Info("bundle delivered", "name", name, "host", snap.Host)
		return
	}

	go shipper.Run(ctx)

	// Collection loop: snapshot every interval, hand off to the shipper.
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	cycle := func() {
		snap := collector.Snapshot(ctx)
		data, name, err := collect.Archive(snap)
		if err != nil {
			slog.Error("archive failed", "err", err)
			return
		}
		shipper.Ship(name, data)
		slog.Debug("bundle queued", "name", name, "bytes", len(data))
	}

	cycle()
	for {
		select {
		case <-ctx.Done():
			slog.Info("opslens-collect shutting down")
			return
		case <-ticker.C:
			cycle()
		}
	}
}
