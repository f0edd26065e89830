package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/tallysync/internal/client/aggregator"
	"github.com/iudanet/tallysync/internal/client/api"
	"github.com/iudanet/tallysync/internal/client/cli"
	"github.com/iudanet/tallysync/internal/client/config"
	"github.com/iudanet/tallysync/internal/client/connectivity"
	"github.com/iudanet/tallysync/internal/client/data"
	"github.com/iudanet/tallysync/internal/client/iocli"
	"github.com/iudanet/tallysync/internal/client/local"
	"github.com/iudanet/tallysync/internal/client/storage/boltdb"
	"github.com/iudanet/tallysync/internal/client/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// closeTimeout ограничивает отправку оставшихся нажатий при выходе
const closeTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}

	// Show version and exit if requested
	if cfg.ShowVersion {
		printVersion()
		return nil
	}

	out := iocli.NewStdio()
	if cfg.Command == "" {
		cli.PrintUsage(out)
		return errors.New("missing command")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Открываем BoltDB storage
	boltStorage, err := boltdb.New(ctx, cfg.DBPath, boltdb.WithSnapshotLimit(cfg.SnapshotLimit))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := boltStorage.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	store := local.New(boltStorage, boltStorage, logger, local.WithHistoryDays(cfg.HistoryDays))
	apiClient := api.NewClient(cfg.ServerURL, api.WithTimeout(cfg.Timeout))
	conn := connectivity.New(logger, !cfg.Offline)

	agg := aggregator.New(apiClient, store, conn, logger,
		aggregator.WithFlushDelay(cfg.FlushDelay),
		aggregator.WithSafetyInterval(cfg.SafetyInterval),
		aggregator.WithMaxBatch(cfg.MaxBatch),
	)
	agg.Start(ctx)
	defer func() {
		// ctx уже может быть отменен сигналом, нажатия все равно сохраняем
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := agg.Close(closeCtx); err != nil {
			logger.Error("failed to flush pending taps", "error", err)
		}
	}()

	dataService := data.NewService(apiClient, store, agg, conn, logger)
	syncDriver := sync.NewDriver(apiClient, store, conn, logger,
		sync.WithPollInterval(cfg.PollInterval),
		sync.WithEventHook(cli.EventPrinter(out)),
		sync.WithStatusHook(func(s sync.Status) {
			logger.Debug("Sync status changed", "status", s)
		}),
	)

	c := cli.New(out, dataService, syncDriver, store, boltStorage,
		cli.WithUser(cfg.User),
		cli.WithOffline(cfg.Offline),
		cli.WithServerURL(cfg.ServerURL),
	)
	return c.Run(ctx, cfg.Command, cfg.Args)
}

func printVersion() {
	fmt.Printf("Tallysync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
