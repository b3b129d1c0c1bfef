package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lgaudin/air-quality-service/internal/cache"
	"github.com/lgaudin/air-quality-service/internal/config"
	"github.com/lgaudin/air-quality-service/internal/connector"
	"github.com/lgaudin/air-quality-service/internal/forecast"
	"github.com/lgaudin/air-quality-service/internal/fusion"
	"github.com/lgaudin/air-quality-service/internal/geo"
	"github.com/lgaudin/air-quality-service/internal/geocoder"
	httphandler "github.com/lgaudin/air-quality-service/internal/http"
	"github.com/lgaudin/air-quality-service/internal/lifecycle"
	"github.com/lgaudin/air-quality-service/internal/models"
	"github.com/lgaudin/air-quality-service/internal/observability"
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

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache(cfg.CacheMaxEntries)
		logger.Info("cache backend: in_memory", zap.Int("max_entries", cfg.CacheMaxEntries))
	}

	gazetteer := geo.New()
	reverseGeocoder := geocoder.New(cfg.GeocoderURL, cfg.GeocoderTimeout, cfg.CacheTTL, gazetteer, logger)

	satellite := connector.NewSatelliteConnector(cfg.SatelliteURL, cfg.SatelliteToken, cfg.SatelliteTimeout, logger)
	ground := connector.NewGroundConnector(cfg.GroundURL, cfg.GroundAPIKey, cfg.GroundRadiusKM, cfg.GroundTimeout, logger)
	fallback := connector.NewFallbackConnector(connector.FallbackConfig{}, gazetteer, logger)
	if cfg.SatelliteToken == "" {
		logger.Warn("no satellite credentials; satellite source disabled")
	}
	if cfg.GroundURL == "" {
		logger.Warn("no ground network URL; ground source disabled")
	}

	var connectors []connector.Connector
	if cfg.SatelliteURL != "" {
		connectors = append(connectors, satellite)
	}
	if cfg.GroundURL != "" {
		connectors = append(connectors, ground)
	}

	fusionService := fusion.NewService(connectors, fallback, cacheSvc, reverseGeocoder, cfg.CacheTTL, cfg.CoalesceTimeout, logger)
	engine := forecast.NewEngine(forecast.Config{})

	healthConfig := &httphandler.HealthConfig{
		StatsWindow: cfg.StatsWindow,
		StartTime:   time.Now(),
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(fusionService, engine, gazetteer, healthConfig, logger, limiter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if len(cfg.WarmLocations) > 0 {
		coords := make([]models.Coordinate, 0, len(cfg.WarmLocations))
		for _, loc := range cfg.WarmLocations {
			coords = append(coords, models.Coordinate{Latitude: loc.Latitude, Longitude: loc.Longitude})
		}
		warmer := fusion.NewWarmer(fusionService, logger)
		warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
		if err := warmer.Warm(warmCtx, coords); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
		if cfg.WarmInterval > 0 {
			// Stops with the signal context so shutdown is not kept busy by
			// background refreshes.
			go func() {
				if err := warmer.WarmPeriodic(ctx, coords, cfg.WarmInterval); err != nil && err != context.Canceled {
					logger.Error("periodic cache warming stopped", zap.Error(err))
				}
			}()
		}
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	router.HandleFunc("/stats", handler.GetStats).Methods("GET")
	router.HandleFunc("/locations/search", handler.SearchLocation).Methods("GET")
	dataRouter := router.PathPrefix("/").Subrouter()
	dataRouter.Use(httphandler.RateLimitMiddleware(limiter))
	dataRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	dataRouter.HandleFunc("/location/full", handler.GetLocationFull).Methods("GET")
	dataRouter.HandleFunc("/forecast", handler.GetForecast).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
