package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lakeops/lakeops/internal/apiserver"
	"github.com/lakeops/lakeops/internal/collector"
	"github.com/lakeops/lakeops/internal/config"
	"github.com/lakeops/lakeops/internal/metrics"
	"github.com/lakeops/lakeops/internal/store"
	"github.com/lakeops/lakeops/internal/workspace"
)

func main() {
	var configFile string
	var debug bool

	flag.StringVar(&configFile, "config", "/etc/lakeops/config.yaml", "Path to config file")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	logger := newLogger(debug)
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		log.Warnw("failed to load config file, falling back to defaults/env", "path", configFile, "error", err)
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		log.Errorw("invalid configuration", "configFile", configFile, "error", err)
		os.Exit(1)
	}

	log.Infow("starting lakeops",
		"host", cfg.Workspace.Host,
		"address", cfg.APIServer.Address,
		"port", cfg.APIServer.Port,
	)

	ws, err := workspace.New(workspace.Config{
		Host:         cfg.Workspace.Host,
		Token:        cfg.Workspace.Token,
		ClientID:     cfg.Workspace.ClientID,
		ClientSecret: cfg.Workspace.ClientSecret,
	}, log)
	if err != nil {
		log.Errorw("unable to create workspace client", "error", err)
		os.Exit(1)
	}

	db, err := store.Open(store.Config{
		Path:          cfg.Database.Path,
		RetentionDays: cfg.Database.RetentionDays,
	})
	if err != nil {
		log.Errorw("unable to open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Infow("database opened", "path", cfg.Database.Path)

	mc := collector.New(ws, db, collector.Options{
		Catalog:                cfg.Metrics.Catalog,
		Schema:                 cfg.Metrics.Schema,
		WarehouseID:            cfg.SQLWarehouseID,
		ClusterLimit:           cfg.Optimization.ClusterLimit,
		OversizedThreshold:     cfg.Optimization.OversizedThreshold,
		UnderutilizedThreshold: cfg.Optimization.UnderutilizedThreshold,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Prometheus gauges refresh in the background; scrapes hit /metrics.
	exporter := metrics.NewExporter(ws, time.Minute, cfg.Optimization.ClusterLimit, log)
	go exporter.Run(ctx)

	var scheduler *cron.Cron
	if cfg.Collector.Enabled {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(cfg.Collector.Schedule, func() {
			runCtx, runCancel := context.WithTimeout(ctx, 10*time.Minute)
			defer runCancel()
			result, err := mc.Run(runCtx)
			if err != nil {
				log.Errorw("scheduled metrics collection failed", "error", err)
				return
			}
			log.Infow("scheduled metrics collection finished",
				"clusters", result.ClustersProcessed, "persisted", result.MetricsPersisted)
		}); err != nil {
			log.Errorw("invalid collector schedule", "schedule", cfg.Collector.Schedule, "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		log.Infow("collector scheduled", "schedule", cfg.Collector.Schedule)
	}

	// Hourly retention cleanup keeps the database bounded.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.Cleanup(); err != nil {
					log.Warnw("database cleanup failed", "error", err)
				}
			}
		}
	}()

	srv := apiserver.NewServer(cfg, ws, db, mc, log)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.APIServer.Address, cfg.APIServer.Port)
		log.Infow("starting API server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("API server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Infow("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("API server shutdown error", "error", err)
	}
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}
