package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"talk-hub/auth"
	"talk-hub/domain"
	"talk-hub/gateway"
	"talk-hub/internal"
	"talk-hub/repositories"
	"talk-hub/runtime"
	"talk-hub/runtime/workers"
	"talk-hub/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern ensures all 'defer' statements (like database cleanup) are executed before the
// program exits, and decouples the initialization logic from the main entry point.
func run() (int, error) {
	// 1. Configuration & Logger
	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB, in-memory)
	// All state is process-lifetime only. The stores still sit behind the
	// repository interfaces, so a durable backend can be swapped in without
	// touching the protocol layer.
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("storage opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing storage...")
		_ = db.Close()
	}()

	// 3. Core components
	userRepository := repositories.NewUserRepository(db)
	messageRepository := repositories.NewMessageRepository(db, logger)
	tokenService := auth.NewTokenService(config.JWTSecret, config.AuthTokenDuration)

	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	registry := runtime.NewRegistry()
	orchestrator := runtime.NewOrchestrator(logger, supervisor, registry,
		messageRepository, config.BufferSize, config.LimitMessages, config.MetricInterval)

	// The default group exists before any client joins it.
	orchestrator.EnsureGroup(domain.Group{ID: config.DefaultGroupID, Name: config.DefaultGroupName})

	authService := services.NewAuthService(userRepository, tokenService)
	chatService := services.NewChatService(orchestrator)
	handler := gateway.NewHandler(logger, authService, chatService, tokenService, config.ConnectionBufferSize)

	// 4. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Error (HTTP & Orchestrator)
	errChan := make(chan error, 2)

	// 5. Start the engine (fanout + telemetry workers)
	go func() {
		logger.Info("Starting orchestrator...")
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 6. HTTP & WebSocket server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:        address,
		Handler:     handler.Routes(),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for stop or error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final cleanup (graceful shutdown)
	// Active connections get a short window to drain before the process exits.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "err", err)
	}
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}
