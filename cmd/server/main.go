package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"chemflow/internal/server/api"
	"chemflow/internal/server/config"
	"chemflow/internal/server/database"
	"chemflow/internal/server/service"
	"chemflow/internal/server/storage"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config (.env is optional)
	godotenv.Load()
	cfg := config.Load()
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"archive_path", cfg.ArchivePath,
		"max_upload_size", cfg.MaxUploadSize,
		"history_limit", cfg.HistoryLimit,
		"auth_required", cfg.AuthRequired,
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations complete")

	// Initialize CSV archive
	store := storage.NewFileSystemStore(cfg.ArchivePath)
	if err := store.EnsureDir(); err != nil {
		slog.Error("failed to initialize archive", "error", err)
		os.Exit(1)
	}
	slog.Info("csv archive initialized", "path", cfg.ArchivePath)

	// Initialize repository and services
	repo := database.NewRepository(db)
	datasets := service.NewDatasetService(repo, store, cfg)
	auth := service.NewAuthService(repo)

	// Start archive janitor
	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	janitor := storage.NewJanitor(repo, store, cfg.JanitorInterval)
	janitor.Start(janitorCtx)

	// Setup HTTP router
	handler := api.NewHandler(datasets, auth, db)
	authMW := api.NewAuthMiddleware(auth, cfg.AuthRequired)
	e := api.SetupRouter(handler, authMW, cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop archive janitor
	janitorCancel()
	janitor.Wait()

	slog.Info("server exited cleanly")
}
