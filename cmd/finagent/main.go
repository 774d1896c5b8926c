package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"

	"github.com/jthornhill/finagent/internal/config"
	"github.com/jthornhill/finagent/internal/forecast"
	"github.com/jthornhill/finagent/internal/httpapi"
	"github.com/jthornhill/finagent/internal/provider"
	"github.com/jthornhill/finagent/internal/receipt"
	"github.com/jthornhill/finagent/internal/runner"
	"github.com/jthornhill/finagent/internal/storage"
	"github.com/jthornhill/finagent/tools"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// The SDK reads the key itself; fail fast when it is missing rather
	// than at the first model call.
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		logger.Error("Missing ANTHROPIC_API_KEY; export it before running")
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	repo, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", "path", cfg.SQLiteDBPath, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	userID, err := repo.EnsureUser(context.Background(), cfg.DefaultUsername)
	if err != nil {
		logger.Error("Failed to ensure default user", "error", err)
		os.Exit(1)
	}
	store := repo.ForUser(userID)

	registry, err := tools.FinanceRegistry(store)
	if err != nil {
		logger.Error("Failed to build tool registry", "error", err)
		os.Exit(1)
	}

	r := runner.New(provider.NewAnthropicClient(), registry)
	if cfg.Model != "" {
		r.Model = anthropic.Model(cfg.Model)
	}
	r.MaxTokens = cfg.MaxTokens
	r.MaxTurns = cfg.MaxTurns
	r.CallTimeout = cfg.CallTimeout

	assembler := forecast.NewAssembler(store, r, userID)

	images, err := receipt.NewImageStore(cfg.UploadDir, "/static/uploads")
	if err != nil {
		logger.Error("Failed to initialize image store", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}
	pipeline := receipt.NewPipeline(r, store, images)

	srv := httpapi.NewServer(":"+cfg.Port, assembler, pipeline, store, images.Root())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting finagent server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
