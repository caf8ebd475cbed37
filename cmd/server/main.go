// Package main is the entrypoint for the ReviewLens API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kiranshivaraju/reviewlens/internal/aggregate"
	"github.com/kiranshivaraju/reviewlens/internal/ai"
	"github.com/kiranshivaraju/reviewlens/internal/api"
	"github.com/kiranshivaraju/reviewlens/internal/api/handler"
	mw "github.com/kiranshivaraju/reviewlens/internal/api/middleware"
	"github.com/kiranshivaraju/reviewlens/internal/cache"
	"github.com/kiranshivaraju/reviewlens/internal/config"
	"github.com/kiranshivaraju/reviewlens/internal/fetch"
	"github.com/kiranshivaraju/reviewlens/internal/passes"
	"github.com/kiranshivaraju/reviewlens/internal/store"
	"github.com/kiranshivaraju/reviewlens/internal/worker"
	"gopkg.in/natefinch/lumberjack.v2"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLog := setupLogger(cfg.Log)
	defer closeLog()
	slog.SetDefault(logger)
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Create cache (Redis when reachable, in-memory otherwise)
	c, err := cache.New(ctx, cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}
	defer c.Close()

	// 3. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name(), "model", cfg.AI.Model())

	// 4. Build the pipeline
	jobStore := store.NewCacheStore(c, cfg.Cache.ResultTTL)
	sourceOpts := fetch.SourceOptions{
		Timeout:    cfg.Fetch.Timeout,
		RatePerSec: cfg.Fetch.RatePerSec,
		MaxRetries: cfg.Fetch.MaxRetries,
		MaxPages:   cfg.Fetch.MaxPages,
	}
	appStoreOpts := sourceOpts
	appStoreOpts.BaseURL = cfg.Fetch.AppStoreURL
	fetcher := fetch.NewReviewFetcher(c, cfg.Cache.ReviewTTL,
		fetch.NewAppStoreSource(appStoreOpts),
		fetch.NewPlayStoreSource(sourceOpts),
	)
	orchestrator := worker.NewOrchestrator(
		jobStore,
		fetcher,
		passes.NewAnalyzer(aiProvider, cfg.Limits.BatchSize),
		aggregate.New(),
		worker.Limits{
			MaxReviewCount: cfg.Limits.MaxReviewCount,
			MaxTokenBudget: cfg.Limits.MaxTokenBudgetPerJob,
		},
	)

	// 5. Build router with dependencies
	auth := mw.NewAuth(cfg.Auth.APIKeyHashes)
	if !auth.Enabled() {
		slog.Warn("API_KEY_HASHES not set, API authentication disabled")
	}
	analysis := handler.NewAnalysis(jobStore, orchestrator, handler.AnalysisOptions{
		DefaultReviewLimit: cfg.Limits.DefaultReviewLimit,
		SupportedLocales:   cfg.Limits.SupportedLocales,
	})

	router := api.NewRouter(api.Dependencies{
		Auth:      auth,
		RateLimit: mw.NewRateLimit(c, cfg.Auth.RequestsPerMinute),

		HealthHandler:       handler.NewHealthHandler(c, cfg.AI.Model()),
		AnalyzeHandler:      analysis.Analyze,
		StatusHandler:       analysis.Status,
		ResultHandler:       analysis.Result,
		FetchReviewsHandler: handler.NewFetchReviewsHandler(fetcher),
	})

	// 6. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if !waitWithTimeout(orchestrator.Wait, shutdownTimeout) {
		slog.Warn("in-flight jobs still running at shutdown")
	}

	slog.Info("server stopped gracefully")
	return nil
}

// setupLogger builds the process logger. When cfg.File is set, output is
// duplicated to a rotated file.
func setupLogger(cfg config.LogConfig) (*slog.Logger, func()) {
	var w io.Writer = os.Stdout
	cleanup := func() {}

	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stdout, rotated)
		cleanup = func() { _ = rotated.Close() }
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h), cleanup
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// waitWithTimeout reports whether wait returned before d elapsed.
func waitWithTimeout(wait func(), d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
