// Package fusion orchestrates the data-source cascade: cache first, then each
// connector in priority order, with the synthetic fallback guaranteeing that
// every valid coordinate gets an answer.
package fusion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lgaudin/air-quality-service/internal/aqi"
	"github.com/lgaudin/air-quality-service/internal/cache"
	"github.com/lgaudin/air-quality-service/internal/connector"
	"github.com/lgaudin/air-quality-service/internal/geocoder"
	"github.com/lgaudin/air-quality-service/internal/models"
	"github.com/lgaudin/air-quality-service/internal/observability"
	"github.com/lgaudin/air-quality-service/internal/stats"
)

// Service resolves a coordinate to a fused air-quality snapshot using the
// cache-aside pattern over the connector cascade.
type Service struct {
	connectors []connector.Connector
	fallback   connector.Connector
	cache      cache.Cache
	geocoder   *geocoder.ReverseGeocoder
	ttl        time.Duration
	coalescer  *requestCoalescer
	logger     *zap.Logger
}

// NewService creates a Service. connectors are tried in order; fallback runs
// when all of them report unavailable and must never fail. coalesceTimeout 0
// disables request coalescing.
func NewService(connectors []connector.Connector, fallback connector.Connector, c cache.Cache, g *geocoder.ReverseGeocoder, ttl time.Duration, coalesceTimeout time.Duration, logger *zap.Logger) *Service {
	var coalescer *requestCoalescer
	if coalesceTimeout > 0 {
		coalescer = newRequestCoalescer(coalesceTimeout)
	}
	return &Service{
		connectors: connectors,
		fallback:   fallback,
		cache:      c,
		geocoder:   g,
		ttl:        ttl,
		coalescer:  coalescer,
		logger:     logger,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns the service logger if not found.
func (s *Service) loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return s.logger
}

// GetSnapshot returns the air-quality snapshot for a coordinate. Checks cache
// first, walks the connector cascade on miss, and caches the result. Valid
// coordinates always produce a snapshot.
func (s *Service) GetSnapshot(ctx context.Context, c models.Coordinate) (models.Snapshot, error) {
	key := cache.Key(c)
	start := time.Now()
	logger := s.loggerFromContext(ctx)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues("snapshot").Inc()
		stats.Record(cached.Measurement.Source)
		observability.SourceServedTotal.WithLabelValues(string(cached.Measurement.Source)).Inc()
		logger.Debug("snapshot served from cache",
			zap.String("key", key),
			zap.Duration("duration", time.Since(start)))
		return cached, nil
	}

	var snap models.Snapshot
	if s.coalescer != nil {
		snap, err = s.coalescer.GetOrDo(ctx, key, func() (models.Snapshot, error) {
			return s.build(ctx, c)
		})
	} else {
		snap, err = s.build(ctx, c)
	}
	if err != nil {
		return models.Snapshot{}, err
	}

	if setErr := s.cache.Set(ctx, key, snap, s.ttl); setErr != nil {
		logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
	}

	stats.Record(snap.Measurement.Source)
	observability.SourceServedTotal.WithLabelValues(string(snap.Measurement.Source)).Inc()
	logger.Debug("snapshot served",
		zap.String("key", key),
		zap.String("source", string(snap.Measurement.Source)),
		zap.Duration("duration", time.Since(start)))
	return snap, nil
}

// build walks the cascade and attaches the resolved place. The final fallback
// never fails, so build only errors on context cancellation.
func (s *Service) build(ctx context.Context, c models.Coordinate) (models.Snapshot, error) {
	logger := s.loggerFromContext(ctx)

	m, err := s.fetch(ctx, c, logger)
	if err != nil {
		return models.Snapshot{}, err
	}

	// Sources estimate pollutants; the index is always computed here so a
	// partially-reporting source still gets a consistent AQI.
	if computed, ok := aqi.Compute(m); ok {
		m.AQI = computed
	}

	place := s.geocoder.Resolve(ctx, c)
	return models.Snapshot{Place: place, Measurement: m}, nil
}

func (s *Service) fetch(ctx context.Context, c models.Coordinate, logger *zap.Logger) (models.Measurement, error) {
	for _, conn := range s.connectors {
		if ctx.Err() != nil {
			return models.Measurement{}, ctx.Err()
		}
		m, err := conn.Fetch(ctx, c)
		if err == nil {
			return m, nil
		}
		logger.Debug("source unavailable, cascading",
			zap.String("connector", conn.Name()),
			zap.Error(err))
	}
	if ctx.Err() != nil {
		return models.Measurement{}, ctx.Err()
	}
	return s.fallback.Fetch(ctx, c)
}
