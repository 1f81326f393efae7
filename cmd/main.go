package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"premiumcat/config"
	"premiumcat/db"
	qhttp "premiumcat/http"
	"premiumcat/logger"
	"premiumcat/ml"
	"premiumcat/monitoring"
	"premiumcat/predictor"
)

func main() {
	// Look for config in root even if run from cmd/
	configPath, baseDir := config.Locate("config.yaml")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.ResolvePaths(baseDir)

	logger := logger.New(cfg.Log)
	defer logger.Sync()

	// The service must not accept input without a model.
	model, err := ml.LoadModel(cfg.ML.ModelType, cfg.ML.ModelPath)
	if err != nil {
		var loadErr *ml.ModelLoadError
		if errors.As(err, &loadErr) {
			logger.Fatal("failed to load model", zap.String("path", loadErr.Path), zap.Error(loadErr.Err))
		}
		logger.Fatal("failed to load model", zap.Error(err))
	}
	logger.Info("model loaded",
		zap.String("path", cfg.ML.ModelPath),
		zap.Strings("classes", model.Classes()),
		zap.Int("tree_depth", model.Tree.Depth()))

	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()
	logger.Info("database initialized", zap.String("path", cfg.Database.Path))

	hub := monitoring.NewWebSocketHub(logger.Named("stream"))
	go hub.Start()
	defer hub.Stop()

	metrics := monitoring.NewMetrics(hub.ClientCount)

	cache, closeCache := newCache(cfg, logger)
	defer closeCache()

	service := predictor.New(model, predictor.Dependencies{
		ModelVersion: model.Version,
		Cache:        cache,
		Recorder:     store,
		Publisher:    hub,
		Metrics:      metrics,
		Logger:       logger.Named("predictor"),
	})

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if cfg.ML.Watch {
		loader := predictor.ArtifactLoader(cfg.ML.ModelType, cfg.ML.ModelPath)
		if _, err := predictor.WatchModel(watchCtx, cfg.ML.ModelPath, loader, service); err != nil {
			logger.Error("model watcher disabled", zap.Error(err))
		}
	}

	qhttp.SetLogger(logger.Named("http"))
	qhttp.SetPredictor(service)
	qhttp.SetHistoryStore(store)
	qhttp.SetPredictionStream(hub)
	qhttp.SetMetrics(metrics)

	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
	}, logger.Named("http"))
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("exiting")
}

// newCache builds the configured memoization backend. A nil cache disables
// memoization.
func newCache(cfg *config.Config, logger *zap.Logger) (predictor.Cache, func()) {
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		cache := predictor.NewRedisCache(client, cfg.Cache.TTL, logger.Named("cache"))

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.Ping(ctx); err != nil {
			// lookups degrade to misses until redis comes back
			logger.Warn("redis unavailable", zap.String("addr", cfg.Cache.Redis.Address), zap.Error(err))
		}
		logger.Info("prediction cache enabled", zap.String("backend", "redis"))
		return cache, func() { client.Close() }
	case "lru":
		logger.Info("prediction cache enabled", zap.String("backend", "lru"), zap.Int("size", cfg.Cache.Size))
		return predictor.NewLRUCache(cfg.Cache.Size, cfg.Cache.TTL), func() {}
	default:
		return nil, func() {}
	}
}
