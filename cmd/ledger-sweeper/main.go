package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/config"
	"github.com/platinummonkey/jwtpizza/pkg/observability"
	"github.com/platinummonkey/jwtpizza/pkg/storage"
	"github.com/platinummonkey/jwtpizza/pkg/storage/postgres"
)

var runOnce = flag.Bool("run-once", false, "Purge expired tokens once and exit")

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	ctx := observability.WithLogger(context.Background(), logger)

	if cfg.Database.IsMemory() {
		logger.Error("the ledger sweeper requires a postgres database")
		os.Exit(1)
	}
	if cfg.Auth.LedgerBackend == config.LedgerBackendRedis {
		// redis keys carry their own TTL
		logger.Info("redis ledger expires tokens itself, nothing to sweep")
		return
	}

	db, err := postgres.Open(ctx, storage.Config{
		PostgresURL:      cfg.Database.URL,
		PostgresMaxConns: 2,
		PostgresTimeout:  cfg.Database.Timeout,
	})
	if err != nil {
		logger.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	ledger := postgres.NewLedgerRepository(db)

	if *runOnce {
		if _, err := sweep(ctx, ledger, time.Now); err != nil {
			logger.WithError(err).Error("sweep failed")
			os.Exit(1)
		}
		return
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.Sweeper.Schedule, func() {
		defer observability.RecoverPanic(logger, "ledger sweep")
		if _, err := sweep(ctx, ledger, time.Now); err != nil {
			logger.WithError(err).Error("sweep failed")
		}
	})
	if err != nil {
		logger.WithError(err).WithField("schedule", cfg.Sweeper.Schedule).Error("invalid sweeper schedule")
		os.Exit(1)
	}

	c.Start()
	logger.WithField("schedule", cfg.Sweeper.Schedule).Info("ledger sweeper started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down ledger sweeper")
	<-c.Stop().Done()
}

// sweep removes ledger entries whose token has expired
func sweep(ctx context.Context, ledger auth.LedgerSweeper, now func() time.Time) (int64, error) {
	start := now()
	purged, err := ledger.PurgeExpired(ctx, start)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired tokens: %w", err)
	}
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"purged":      purged,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("expired tokens purged")
	return purged, nil
}
