// Taskmesh orchestration server: exposes the HTTP API, runs the
// per-session agent runtime, and persists all state to PostgreSQL.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/taskmesh/taskmesh/pkg/api"
	"github.com/taskmesh/taskmesh/pkg/config"
	"github.com/taskmesh/taskmesh/pkg/database"
	"github.com/taskmesh/taskmesh/pkg/llm"
	"github.com/taskmesh/taskmesh/pkg/rai"
	"github.com/taskmesh/taskmesh/pkg/runtime"
	"github.com/taskmesh/taskmesh/pkg/store"
	"github.com/taskmesh/taskmesh/pkg/tools"
	"github.com/taskmesh/taskmesh/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("CONFIG_PATH", "./taskmesh.yaml"),
		"Path to configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Database (connects and runs migrations)
	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	slog.Info("Connected to PostgreSQL database")

	documentStore := store.NewPostgresStore(dbClient.Pool())

	// 3. LLM gateway
	llmClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		MaxSchemaRetries:  cfg.LLM.MaxSchemaRetries,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := llmClient.Close(); err != nil {
			slog.Error("Error closing LLM client", "error", err)
		}
	}()
	slog.Info("LLM client initialized", "model", cfg.LLM.Model)

	// 4. Tool catalogs
	registry, err := tools.LoadEmbeddedCatalogs(logger)
	if err != nil {
		slog.Error("Failed to load tool catalogs", "error", err)
		os.Exit(1)
	}

	// 5. Session runtime and safety gate
	sessionRuntime := runtime.NewManager(runtime.Config{
		MaxToolIterations: cfg.Runtime.MaxToolIterations,
		IdleTimeout:       cfg.Runtime.SessionIdleTimeout,
	}, documentStore, llmClient, registry, logger)
	gate := rai.NewGate(llmClient, logger)

	// 6. HTTP server
	handler := api.NewHandler(documentStore, sessionRuntime, gate, registry, logger)
	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: api.NewRouter(handler, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()
	slog.Info("Taskmesh started successfully", "version", version.Full())

	// 7. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 8. Graceful shutdown: stop accepting requests, then drain sessions
	httpCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	runtimeCtx, runtimeCancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer runtimeCancel()
	if err := sessionRuntime.Shutdown(runtimeCtx); err != nil {
		slog.Warn("Session runtime shutdown timeout exceeded", "error", err)
	}

	slog.Info("Shutdown complete")
}
