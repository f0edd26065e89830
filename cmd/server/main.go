package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/tallysync/internal/server/broadcast"
	"github.com/iudanet/tallysync/internal/server/config"
	"github.com/iudanet/tallysync/internal/server/handlers"
	"github.com/iudanet/tallysync/internal/server/metrics"
	"github.com/iudanet/tallysync/internal/server/middleware"
	"github.com/iudanet/tallysync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Show version and exit if requested
	if cfg.ShowVersion {
		printVersion()
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, cfg.DBPath, sqlite.WithBusyTimeout(cfg.DBBusyTimeout))
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	logger.Info("Storage opened", "path", cfg.DBPath, "schema_version", store.SchemaVersion())
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	m := metrics.New()
	hub := broadcast.New(logger, broadcast.WithObserver(m))

	var limiter *middleware.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow, logger)
		defer limiter.Stop()
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Logger:       logger,
		Storage:      store,
		Broadcaster:  hub,
		Metrics:      m,
		Limiter:      limiter,
		Version:      Version,
		StreamBuffer: cfg.StreamBuffer,
	})

	// WriteTimeout не задан: /sync держит соединение открытым
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	// Открытые потоки /sync завершаются только после отключения подписчиков
	srv.RegisterOnShutdown(hub.CloseAll)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go hub.RunHeartbeat(heartbeatCtx, cfg.Heartbeat)

	errC := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "addr", cfg.Addr, "db", cfg.DBPath, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
		close(errC)
	}()

	select {
	case err := <-errC:
		if err != nil {
			return fmt.Errorf("listen failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

func printVersion() {
	fmt.Printf("Tallysync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
