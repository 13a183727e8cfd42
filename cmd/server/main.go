// Package main provides the API server entry point for the treasury tracker.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/treasury-tracker/internal/adapter"
	"github.com/treasury-tracker/internal/api"
	"github.com/treasury-tracker/internal/config"
	"github.com/treasury-tracker/internal/logging"
	"github.com/treasury-tracker/internal/network"
	"github.com/treasury-tracker/internal/service"
	"github.com/treasury-tracker/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":   cfg.Logging.Level,
		"format":  cfg.Logging.Format,
		"caching": cfg.Cache.Enabled,
	}).Info("Treasury tracker API server starting")

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelConnect()

	postgres, err := storage.NewPostgresDB(connectCtx, &cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	registry := network.NewRegistry()
	subscan := adapter.NewSubscanClient(cfg.Subscan.APIKey, cfg.Subscan.RequestsPerSecond, cfg.Subscan.Timeout)

	var opts []service.TreasuryServiceOption
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(connectCtx, &cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to ClickHouse")
		}
		defer clickhouse.Close()
		opts = append(opts, service.WithArchiver(storage.NewBalanceArchiveRepository(clickhouse)))
		logger.Info("Raw balance archive enabled")
	}

	treasuryService := service.NewTreasuryService(
		registry,
		subscan,
		storage.NewTreasuryHistoryRepository(postgres),
		cfg.Treasury.PersistWorkers,
		opts...,
	)

	// Redis is only needed when the listing cache is on
	var listingStore service.ListingStore
	if cfg.Cache.Enabled {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redis.Close()
		listingStore = storage.NewListingCache(redis, cfg.Cache.TTL)
	}

	indexer := adapter.NewIndexerClient(cfg.Indexer.Timeout, cfg.Indexer.ListingLimit, cfg.Indexer.Workers)
	listingService := service.NewListingService(registry, indexer, listingStore, cfg.Cache.Enabled)
	bountyService := service.NewBountyService(registry, indexer, cfg.Indexer.Workers)

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    5 * time.Minute, // combined balance runs walk 14 upstream windows
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RequestsPerSec:  cfg.RateLimit.RequestsPerSecond,
		Burst:           cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, treasuryService, listingService, bountyService, logger)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
