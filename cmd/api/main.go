// Package main is the entry point for the generative-media BFF server.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/genmedia-bff/bff/internal/api"
	"github.com/genmedia-bff/bff/internal/api/handlers"
	"github.com/genmedia-bff/bff/internal/auth"
	"github.com/genmedia-bff/bff/internal/config"
	"github.com/genmedia-bff/bff/internal/credits"
	"github.com/genmedia-bff/bff/internal/db"
	"github.com/genmedia-bff/bff/internal/models"
	"github.com/genmedia-bff/bff/internal/objectstore"
	"github.com/genmedia-bff/bff/internal/providers"
	"github.com/genmedia-bff/bff/internal/queue"
	"github.com/genmedia-bff/bff/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	cancelBoot()
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.BrokerURL)
	if err != nil {
		log.Fatalf("broker url: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	brokerConnected := redisClient.Ping(context.Background()).Err() == nil
	config.LogStartupConfig(logger, cfg, true, brokerConnected)

	store, err := objectstore.New(context.Background(), objectstore.Config{
		Bucket:   cfg.ObjectStoreBucket,
		Region:   cfg.ObjectStoreRegion,
		Endpoint: cfg.ObjectStoreEndpoint,
		Prefix:   cfg.ObjectStorePrefix,
		TestMode: cfg.TestAssetsMode,
	})
	if err != nil {
		log.Fatalf("object store: %v", err)
	}

	registry := providers.BuildRegistry(cfg.ProviderCredentials, cfg.ProviderTimeouts, nil)
	broker := queue.NewBroker(redisClient)

	imageRepo := db.NewImageRepository(pool)
	modelRepo := db.NewModelRepository(pool)
	tenantRepo := db.NewTenantRepository(pool)

	authRegistry := auth.NewRegistry(tenantRepo, cfg.RegistrationSecret, cfg.StorefrontSuffix)
	limiter := ratelimit.NewLimiter(cfg.RateLimits)
	defer limiter.Close()

	rows := map[models.RowKind]queue.RowStore{
		models.KindImage: queue.NewRowStoreAdapter(imageRepo.SetProcessing, imageRepo.SetProviderJobID, func(ctx context.Context, rowID, assetURL string) (bool, error) {
			_, won, err := imageRepo.SetComplete(ctx, rowID, assetURL)
			return won, err
		}, imageRepo.SetFailed),
		models.KindModel: queue.NewRowStoreAdapter(modelRepo.SetProcessing, modelRepo.SetProviderJobID, func(ctx context.Context, rowID, assetURL string) (bool, error) {
			_, won, err := modelRepo.SetComplete(ctx, rowID, assetURL)
			return won, err
		}, modelRepo.SetFailed),
	}

	pools := []*queue.Pool{
		queue.NewPool(string(config.QueueDefault), broker, cfg.QueueConcurrency[config.QueueDefault], registry, rows, store.Fetch, store.Put, logger),
		queue.NewPool(string(config.QueueAsyncOther), broker, cfg.QueueConcurrency[config.QueueAsyncOther], registry, rows, store.Fetch, store.Put, logger),
		queue.NewPool(string(config.QueueAsyncRefine), broker, cfg.QueueConcurrency[config.QueueAsyncRefine], registry, rows, store.Fetch, store.Put, logger),
	}

	poolCtx, cancelPools := context.WithCancel(context.Background())
	for _, p := range pools {
		go p.Run(poolCtx)
	}

	deps := handlers.Deps{
		Images:   imageRepo,
		Models:   modelRepo,
		Queue:    broker,
		Registry: registry,
		Auth:     authRegistry,
		Fetch:    store.Fetch,
		Upload:   store.Put,
		Credits:  credits.AlwaysAllow{},
		Config:   cfg,
		Logger:   logger,
	}
	h := handlers.New(deps)
	router := api.NewRouter(h, authRegistry, limiter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancelPools()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown failed: %v", err)
	}
	logger.Info("server stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
