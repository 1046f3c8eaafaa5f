package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/hospital-review-service/internal/cache"
	"github.com/kjstillabower/hospital-review-service/internal/circuitbreaker"
	"github.com/kjstillabower/hospital-review-service/internal/client"
	"github.com/kjstillabower/hospital-review-service/internal/config"
	httphandler "github.com/kjstillabower/hospital-review-service/internal/http"
	"github.com/kjstillabower/hospital-review-service/internal/observability"
	"github.com/kjstillabower/hospital-review-service/internal/sentiment"
	"github.com/kjstillabower/hospital-review-service/internal/service"
	"github.com/kjstillabower/hospital-review-service/internal/source"
)

const (
	placesComponent       = "places_api"
	inFlightCheckInterval = 100 * time.Millisecond
	warmTimeout           = 30 * time.Second
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	placesClient := newPlacesClient(cfg, logger)

	cacheSvc, closeCache := newCache(cfg, logger)

	src := source.New(placesClient, rand.New(rand.NewSource(time.Now().UnixNano())),
		cfg.FallbackMinSample, cfg.FallbackMaxSample, logger)
	classifier := sentiment.NewClassifier(sentiment.NewVaderScorer(), logger)
	reviewService := service.NewReviewService(src, classifier, cacheSvc, cfg.CacheTTL, logger)

	observability.RegisterTrafficGauges(cfg.TrafficWindow)

	if len(cfg.WarmHospitals) > 0 {
		targets := make([]cache.WarmTarget, 0, len(cfg.WarmHospitals))
		for _, h := range cfg.WarmHospitals {
			targets = append(targets, cache.WarmTarget{Name: h.Name, Location: h.Location})
		}
		warmCtx, warmCancel := context.WithTimeout(context.Background(), warmTimeout)
		if err := cache.NewCacheWarmer(reviewService, logger).Warm(warmCtx, targets); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(reviewService, logger, cfg.StaticDir)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		Limiter:            limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.Bool("places_configured", placesClient != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	handler.BeginShutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if err := closeCache(); err != nil {
		logger.Error("cache close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newPlacesClient returns nil when no API key is configured, which sends every
// lookup to the sample reviews.
func newPlacesClient(cfg *config.Config, logger *zap.Logger) client.PlacesClient {
	pc, err := client.NewGooglePlacesClient(cfg.PlacesAPIKey, cfg.PlacesAPIURL, cfg.PlacesAPITimeout, cfg.PlacesMaxReviews)
	if errors.Is(err, client.ErrNotConfigured) {
		logger.Warn("places API key not set; serving sample reviews")
		return nil
	}
	if err != nil {
		logger.Fatal("places client", zap.Error(err))
	}

	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition(placesComponent, from.String(), to.String())
				observability.SetCircuitBreakerStateGauge(placesComponent, int(to))
			},
		})
		pc.SetCircuitBreaker(cb)
		observability.SetCircuitBreakerStateGauge(placesComponent, int(circuitbreaker.StateClosed))
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}
	return pc
}

func newCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, func() error) {
	noop := func() error { return nil }
	switch cfg.CacheBackend {
	case config.BackendMemcached:
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		if err := mc.Ping(); err != nil {
			logger.Warn("memcached not reachable; lookups will miss until it is", zap.Error(err))
		}
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, mc.Close
	case config.BackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("redis cache", zap.Error(err))
		}
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr))
		return rc, rc.Close
	default:
		logger.Info("cache backend: in_memory")
		return cache.NewInMemoryCache(), noop
	}
}
