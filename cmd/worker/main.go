// Package main provides the treasury refresh worker.
// It re-aggregates every configured network on a cron schedule; "worker run" refreshes once and exits.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/treasury-tracker/internal/adapter"
	"github.com/treasury-tracker/internal/config"
	"github.com/treasury-tracker/internal/logging"
	"github.com/treasury-tracker/internal/network"
	"github.com/treasury-tracker/internal/service"
	"github.com/treasury-tracker/internal/storage"
)

// refreshTimeout bounds one scheduled refresh of all networks
const refreshTimeout = 30 * time.Minute

// cronLogger adapts the structured logger to the scheduler's logging interface
type cronLogger struct {
	logger *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.WithFields(pairs(keysAndValues)).Debug(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.WithError(err).WithFields(pairs(keysAndValues)).Error(msg)
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			fields[key] = kv[i+1]
		}
	}
	return fields
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithComponent("worker")

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelConnect()

	postgres, err := storage.NewPostgresDB(connectCtx, &cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	var opts []service.TreasuryServiceOption
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(connectCtx, &cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to ClickHouse")
		}
		defer clickhouse.Close()
		opts = append(opts, service.WithArchiver(storage.NewBalanceArchiveRepository(clickhouse)))
	}

	treasuryService := service.NewTreasuryService(
		network.NewRegistry(),
		adapter.NewSubscanClient(cfg.Subscan.APIKey, cfg.Subscan.RequestsPerSecond, cfg.Subscan.Timeout),
		storage.NewTreasuryHistoryRepository(postgres),
		cfg.Treasury.PersistWorkers,
		opts...,
	)

	ctx, cancel := context.WithCancel(logging.WithLogger(context.Background(), logger))
	defer cancel()

	if len(os.Args) > 1 && os.Args[1] == "run" {
		logger.WithField("networks", cfg.Treasury.Networks).Info("Running treasury refresh once")
		if failures := treasuryService.RefreshAll(ctx, cfg.Treasury.Networks); failures > 0 {
			logger.WithField("failures", failures).Error("Treasury refresh finished with failures")
			os.Exit(1)
		}
		logger.Info("Treasury refresh complete")
		return
	}

	cl := cronLogger{logger: logger}
	scheduler := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)))
	_, err = scheduler.AddFunc(cfg.Treasury.CronSpec, func() {
		rctx, rcancel := context.WithTimeout(ctx, refreshTimeout)
		defer rcancel()
		treasuryService.RefreshAll(rctx, cfg.Treasury.Networks)
	})
	if err != nil {
		logger.WithError(err).WithField("spec", cfg.Treasury.CronSpec).Fatal("Invalid treasury cron spec")
	}

	scheduler.Start()
	logger.WithFields(map[string]interface{}{
		"spec":     cfg.Treasury.CronSpec,
		"networks": cfg.Treasury.Networks,
	}).Info("Treasury scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down treasury worker")
	cancel()
	<-scheduler.Stop().Done()
	logger.Info("Worker stopped")
}
