// Package main runs the volatility radar service:
// - Feed: market-wide ticker stream over WebSocket
// - Engine: normalization, volatility scoring, market-cap ranking per batch
// - Publish: WebSocket hub, optional Kafka and Redis sinks
// - HTTP: rankings, status, health and Prometheus metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"volatility-radar/internal/api"
	"volatility-radar/internal/config"
	"volatility-radar/internal/feed"
	"volatility-radar/internal/ingestion"
	"volatility-radar/internal/logging"
	"volatility-radar/internal/publish"
	"volatility-radar/internal/replay"
	"volatility-radar/internal/storage"
	"volatility-radar/internal/storage/memory"
	"volatility-radar/internal/storage/migrations"
	pgstore "volatility-radar/internal/storage/postgres"
	"volatility-radar/internal/supply"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("RADAR_CONFIG"), "Path to YAML config file")
	httpAddr := flag.String("http-addr", "", "HTTP listen address (overrides config)")
	supplyFile := flag.String("supply-file", "", "Circulating supply YAML seed (overrides config)")
	capturePath := flag.String("capture", "", "Append every received batch to this file for cmd/replay")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}
	if *supplyFile != "" {
		cfg.Supply.File = *supplyFile
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithCancel(context.Background())

	// Channel to signal completion
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			logger.Error("graceful shutdown timed out, forcing exit", zap.Duration("timeout", shutdownTimeout))
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, *capturePath, logger)
	close(done)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("radar stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// run wires all components and blocks until ctx is cancelled or one of them fails.
//
// Steps:
//  1. Open the supply store and seed it from the configured file
//  2. Fill the supply cache
//  3. Build the sinks (hub, Kafka, Redis) behind a fanout
//  4. Connect to the ticker feed, optionally recording every batch
//  5. Run the batch runner, the supply refresher and the HTTP server
func run(ctx context.Context, cfg *config.Config, capturePath string, logger *zap.Logger) error {
	store, closeStore, err := createSupplyStore(ctx, cfg.Supply.PostgresDSN)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Supply.File != "" {
		n, err := supply.Seed(ctx, store, cfg.Supply.File)
		if err != nil {
			return fmt.Errorf("seed supply: %w", err)
		}
		logger.Info("supply seeded", zap.String("file", cfg.Supply.File), zap.Int("assets", n))
	}

	cache := supply.NewCache(store, supply.CacheOptions{
		QuoteSuffix: cfg.Scoring.QuoteSuffix,
		Logger:      logger,
	})
	if err := cache.Refresh(ctx); err != nil {
		// Market-cap tables stay empty until a later refresh succeeds.
		logger.Warn("initial supply refresh failed", zap.Error(err))
	}

	hub := publish.NewHub(nil, logger)
	fanout := publish.NewFanout(logger, createSinks(cfg, hub, logger)...)
	defer func() {
		if err := fanout.Close(); err != nil {
			logger.Warn("close sinks", zap.Error(err))
		}
	}()

	feedCfg := cfg.FeedClientConfig()
	client, err := feed.NewClient(ctx, cfg.Feed.URL, &feedCfg, logger)
	if err != nil {
		return fmt.Errorf("connect feed: %w", err)
	}
	defer client.Close()

	var source ingestion.BatchSource = client
	if capturePath != "" {
		f, err := os.OpenFile(capturePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open capture file: %w", err)
		}
		defer f.Close()
		source = replay.NewRecordingSource(ctx, client, replay.NewRecorder(f))
		logger.Info("recording batches", zap.String("file", capturePath))
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source: source,
		Sink:   fanout,
		Lookup: cache.Lookup,
		Config: cfg.PipelineConfig(),
		Logger: logger,
	})

	router := api.NewRouter(api.Options{
		Snapshots: hub,
		Stream:    hub.ServeWS,
		Stats:     runner.Stats,
		Supply:    cache,
		Clients:   hub.Clients,
		StartedAt: time.Now().UTC(),
		Logger:    logger,
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 3)

	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("runner: %w", err)
		}
	}()

	go func() {
		if err := cache.Run(ctx, cfg.Supply.RefreshInterval); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("supply refresh: %w", err)
		}
	}()

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("http shutdown", zap.Error(serr))
	}

	return err
}

// createSupplyStore returns the postgres store when dsn is set, otherwise an in-memory one.
func createSupplyStore(ctx context.Context, dsn string) (storage.SupplyStore, func(), error) {
	if dsn == "" {
		return memory.NewSupplyStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return pgstore.NewSupplyStore(pool), pool.Close, nil
}

// createSinks always includes the hub. Kafka and Redis are added when configured.
func createSinks(cfg *config.Config, hub *publish.Hub, logger *zap.Logger) []publish.Sink {
	sinks := []publish.Sink{hub}

	if k := cfg.Publish.Kafka; len(k.Brokers) > 0 {
		sinks = append(sinks, publish.NewKafkaSink(k.Brokers, k.Topic))
		logger.Info("kafka sink enabled", zap.Strings("brokers", k.Brokers), zap.String("topic", k.Topic))
	}

	if r := cfg.Publish.Redis; r.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
		})
		sinks = append(sinks, publish.NewRedisSink(client, r.Key, r.TTL))
		logger.Info("redis sink enabled", zap.String("addr", r.Addr), zap.String("key", r.Key))
	}

	return sinks
}
