package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clony/backend/config"
	httpDelivery "github.com/clony/backend/internal/delivery/http"
	"github.com/clony/backend/internal/domain"
	"github.com/clony/backend/internal/infrastructure/cache"
	"github.com/clony/backend/internal/infrastructure/publicdata"
	"github.com/clony/backend/internal/infrastructure/registry"
	"github.com/clony/backend/internal/logger"
	"github.com/clony/backend/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "console").Fatal("failed to load configuration", zap.Error(err))
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	log.Info("starting Clony backend",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Type))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ingredient registry
	reg, err := loadRegistry(cfg.Registry.Path)
	if err != nil {
		log.Fatal("failed to load ingredient registry", zap.Error(err))
	}
	log.Info("ingredient registry loaded",
		zap.Int("entries", reg.Len()),
		zap.String("source", registrySource(cfg.Registry.Path)))

	// Cache
	cacheRepo, closeCache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		log.Fatal("failed to initialize cache", zap.Error(err))
	}
	defer closeCache()

	// Remote lookup
	var lookup domain.IngredientLookup
	if cfg.Lookup.Enabled {
		client := publicdata.NewClient(publicdata.Config{
			APIKey:        cfg.Lookup.APIKey,
			BaseURL:       cfg.Lookup.BaseURL,
			Timeout:       cfg.Lookup.Timeout,
			RatePerSecond: cfg.Lookup.RatePerSecond,
			Burst:         cfg.Lookup.Burst,
		}, log)
		lookup = usecase.NewCachingLookup(client, cacheRepo, cfg.Cache.TTL, log).WithTimeout(cfg.Lookup.Timeout)
		log.Info("remote ingredient lookup enabled", zap.String("base_url", cfg.Lookup.BaseURL))
	} else {
		log.Warn("remote ingredient lookup disabled; unknown tokens pass through")
	}

	// Usecase layer
	segmenter := usecase.NewSegmenter(cfg.Matching.OCRMinConfidence, log)
	corrector := usecase.NewCorrector(reg, lookup, usecase.CorrectorConfig{
		MatchCutoff:   cfg.Matching.Cutoff,
		LookupTimeout: cfg.Lookup.Timeout,
	}, log)
	scorer := usecase.NewScorer(reg)
	analyzer := usecase.NewAnalyzer(segmenter, corrector, scorer, cfg.Matching.Concurrency, log)
	search := usecase.NewIngredientSearch(reg, lookup, log)

	// HTTP
	handler := httpDelivery.NewHandler(analyzer, search, log)
	router := httpDelivery.SetupRouter(cfg, handler, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Default()
	}
	return registry.LoadFile(path)
}

func registrySource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

// newCache builds the configured cache and its release function
func newCache(ctx context.Context, cfg config.CacheConfig) (domain.CacheRepository, func(), error) {
	switch cfg.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL, "clony:")
		if err != nil {
			return nil, nil, err
		}
		return redisCache, func() { redisCache.Close() }, nil
	default:
		memoryCache := cache.NewMemoryCache()
		return memoryCache, func() { memoryCache.Close() }, nil
	}
}
