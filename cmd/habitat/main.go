package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/Habitat/internal/api"
	"github.com/MikeSquared-Agency/Habitat/internal/config"
	"github.com/MikeSquared-Agency/Habitat/internal/hermes"
	"github.com/MikeSquared-Agency/Habitat/internal/labeler"
	"github.com/MikeSquared-Agency/Habitat/internal/metrics"
	"github.com/MikeSquared-Agency/Habitat/internal/scoring"
	"github.com/MikeSquared-Agency/Habitat/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Engine
	params, err := scoring.ParamsFromConfig(cfg.Scoring)
	if err != nil {
		logger.Error("invalid scoring config", "error", err)
		os.Exit(1)
	}
	engine, err := scoring.NewEngine(params, logger)
	if err != nil {
		logger.Error("failed to build scoring engine", "error", err)
		os.Exit(1)
	}
	logger.Info("scoring engine ready", "profile", cfg.Scoring.Profile, "grid", fmt.Sprintf("%dx%d", params.Grid.Width, params.Grid.Height))

	// Database (optional)
	var db store.Store
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		db = pg
		defer pg.Close()
		logger.Info("connected to database")
	} else {
		logger.Warn("no database configured, score rows will not be persisted")
	}

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Labeler
	lab := labeler.New(engine, db, hermesClient, m, cfg.Labeler.Workers, logger)
	if err := lab.SetupSubscriptions(); err != nil {
		logger.Error("failed to subscribe to layout requests", "error", err)
		os.Exit(1)
	}
	lab.Start(ctx, cfg.StatsInterval())
	defer lab.Stop()
	logger.Info("labeler started", "workers", cfg.Labeler.Workers, "stats_interval", cfg.StatsInterval())

	// API server
	router := api.NewRouter(engine, lab, db, hermesClient, m, cfg.Server, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
