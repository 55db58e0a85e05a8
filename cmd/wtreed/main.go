// Command wtreed runs a Worktree Engine against a single root directory and
// serves its envelope stream to remote replicas over websocket.
//
// Grounded on rybkr-gitvista/cmd/vista/main.go's flag/env/signal plumbing,
// generalized from "serve one git repo's web UI" to "serve one worktree's
// replication endpoint".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wtengine/wtengine/internal/engine"
	"github.com/wtengine/wtengine/internal/replication"
)

func main() {
	initLogger()

	root := flag.String("root", getEnv("WTREED_ROOT", "."), "Worktree root directory")
	addr := flag.String("addr", getEnv("WTREED_ADDR", ":4884"), "Address to serve the replication endpoint on")
	maxScanWorkers := flag.Int64("max-scan-workers", getEnvInt64("WTREED_MAX_SCAN_WORKERS", 16), "Bounded fan-out for the initial directory scan")
	repoRefresh := flag.Duration("repo-refresh", getEnvDuration("WTREED_REPO_REFRESH", 2*time.Second), "How often tracked repositories' VCS status is re-queried")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("wtreed %s\n", version)
		return
	}

	absRoot, err := filepath.Abs(*root)
	if err != nil {
		slog.Error("failed to resolve root", "root", *root, "err", err)
		os.Exit(1)
	}

	eng := engine.New(engine.Config{
		Root:                absRoot,
		WalkConcurrency:     *maxScanWorkers,
		RepoRefreshInterval: *repoRefresh,
		Logger:              slog.Default(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		slog.Error("failed to start engine", "err", err)
		os.Exit(1)
	}

	hub := replication.NewHub(eng, slog.Default())
	mux := http.NewServeMux()
	mux.Handle("/replicate", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "state=%s scan_id=%d\n", eng.State(), eng.Snapshot().ScanID)
	})

	httpServer := &http.Server{Addr: *addr, Handler: mux}

	slog.Info("wtreed starting", "root", absRoot, "addr", *addr)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("server error", "err", err)
			eng.Shutdown()
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutdown initiated")
		stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", "err", err)
		}
		eng.Shutdown()
	}
}

var version = "dev"

func initLogger() {
	level := slog.LevelInfo
	switch getEnv("WTREED_LOG_LEVEL", "info") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if getEnv("WTREED_LOG_FORMAT", "text") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int64
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
