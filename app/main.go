package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-hook/app/api"
	"github.com/lysyi3m/rss-hook/app/cfg"
	"github.com/lysyi3m/rss-hook/app/database"
	"github.com/lysyi3m/rss-hook/app/dedup"
	"github.com/lysyi3m/rss-hook/app/feed"
	"github.com/lysyi3m/rss-hook/app/logging"
	"github.com/lysyi3m/rss-hook/app/tasks"
	"github.com/lysyi3m/rss-hook/app/webhook"
)

func main() {
	appConfig, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appConfig == nil {
		return
	}

	logCloser, err := logging.Setup(logging.Options{
		Debug:      appConfig.Debug,
		File:       appConfig.LogFile,
		MaxSize:    appConfig.LogMaxSize,
		MaxBackups: appConfig.LogMaxBackups,
		MaxAge:     appConfig.LogMaxAge,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	slog.Info("Starting RSS Hook", "version", appConfig.Version, "store", appConfig.StoreBackend)

	if err := os.MkdirAll(appConfig.DataDir, 0755); err != nil {
		slog.Error("Failed to create data directory", "path", appConfig.DataDir, "error", err)
		os.Exit(1)
	}

	feedStore := feed.NewListStore(appConfig.FeedsFile)
	if err := feedStore.Init(); err != nil {
		slog.Error("Failed to initialize feed list", "path", appConfig.FeedsFile, "error", err)
		os.Exit(1)
	}

	repo, backendHealth, err := openRepository()
	if err != nil {
		slog.Error("Failed to open storage backend", "store", appConfig.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	sentStore := dedup.NewStore(repo, appConfig.SentLimit)
	slog.Info("Sent article record loaded", "size", sentStore.Size(), "limit", appConfig.SentLimit)

	fetcher := feed.NewFetcher(&http.Client{Timeout: appConfig.GetFetchTimeout()}, appConfig.UserAgent)
	webhookClient := webhook.NewClient(&http.Client{Timeout: appConfig.GetDeliveryTimeout()}, appConfig.UserAgent)

	scheduler := tasks.NewScheduler(feedStore, repo, fetcher, webhookClient, sentStore, tasks.Options{
		Interval:      appConfig.GetSchedulerInterval(),
		RecencyWindow: appConfig.GetRecencyWindow(),
		WorkerCount:   appConfig.WorkerCount,
	})
	scheduler.Start()

	handler := api.NewHandler(feedStore, repo, sentStore, scheduler, backendHealth)
	server := api.NewServer(handler, appConfig.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()

	slog.Info("Shutdown complete")
}

// openRepository returns the configured storage backend and, for backends
// with a remote dependency, its health checker.
func openRepository() (database.Repository, api.HealthChecker, error) {
	appConfig := cfg.Get()

	switch appConfig.StoreBackend {
	case cfg.StoreSQLite:
		db, err := database.Open(appConfig.DBPath)
		if err != nil {
			return nil, nil, err
		}

		version, dirty, err := database.RunMigrations(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		slog.Info("Database migrations applied", "version", version, "dirty", dirty)

		return database.NewSQLiteRepository(db), nil, nil

	case cfg.StoreRedis:
		repo, err := database.NewRedisRepository(appConfig.RedisAddr, "rsshook")
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil

	default:
		return database.NewFileRepository(
			filepath.Join(appConfig.DataDir, "sent_articles.yaml"),
			filepath.Join(appConfig.DataDir, "feed_state.json"),
		), nil, nil
	}
}
