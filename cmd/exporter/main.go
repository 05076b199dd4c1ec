// Copyright (c) 2025 Fabtrak Systems, Inc. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fabtrak/trace-exporter/internal/config"
	"github.com/fabtrak/trace-exporter/internal/exporter"
	tlog "github.com/fabtrak/trace-exporter/internal/log"
	"github.com/fabtrak/trace-exporter/internal/marker"
	"github.com/fabtrak/trace-exporter/internal/poller"
	"github.com/fabtrak/trace-exporter/internal/s3"
	"github.com/fabtrak/trace-exporter/internal/store"
	"github.com/fabtrak/trace-exporter/internal/util"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := tlog.NewLogger(cfg.LogDir, "trace-exporter", cfg.Debug, cfg.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Resolve the DB password from Secrets Manager if configured
	if cfg.DBSecretsManagerSecret != "" {
		pwd, err := util.ResolveDBPassword(ctx, cfg.DBSecretsManagerSecret, cfg.DBSecretsRegion)
		if err != nil {
			logger.Error("Failed to resolve DB password from Secrets Manager", zap.Error(err))
			os.Exit(1)
		}
		cfg.DBPassword = pwd
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		logger.Error("Failed to create output directory",
			zap.String("dir", cfg.OutputDir), zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Starting trace exporter",
		zap.String("driver", cfg.Driver),
		zap.String("db_host", cfg.DBHost),
		zap.String("db_name", cfg.DBName),
		zap.String("product_table", cfg.ProductTable),
		zap.Int("interval_seconds", cfg.IntervalSeconds),
		zap.String("output_dir", cfg.OutputDir))

	// One connection per cycle, closed before the wait
	openSource := func(ctx context.Context) (poller.Source, error) {
		client, err := store.NewSQLClient(cfg, 0)
		if err != nil {
			return nil, err
		}
		return exporter.NewExporter(client.GetDB(), cfg, logger), nil
	}

	var mirror poller.Mirror
	if cfg.S3Bucket != "" {
		uploader, err := s3.NewUploader(ctx, cfg, logger)
		if err != nil {
			logger.Error("Failed to create S3 uploader", zap.Error(err))
			os.Exit(1)
		}
		mirror = uploader
		logger.Info("S3 mirroring enabled",
			zap.String("bucket", cfg.S3Bucket),
			zap.String("prefix", cfg.S3Prefix))
	}

	markerStore := marker.NewStore(cfg.MarkerFile)
	cycle := poller.NewCycle(cfg, markerStore, openSource, mirror, logger)
	runner := poller.NewRunner(time.Duration(cfg.IntervalSeconds)*time.Second, cycle, logger)

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Export loop stopped", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Shutting down")
}
