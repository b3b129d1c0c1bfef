package fusion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lgaudin/air-quality-service/internal/models"
)

// Warmer pre-populates the snapshot cache for a list of coordinates, usually
// the major metros, so first requests after startup hit warm entries.
type Warmer struct {
	service *Service
	logger  *zap.Logger
}

// NewWarmer creates a Warmer backed by the fusion service.
func NewWarmer(service *Service, logger *zap.Logger) *Warmer {
	return &Warmer{service: service, logger: logger}
}

// Warm fetches snapshots for each coordinate concurrently, populating the
// cache via the service. Returns an aggregated error if any coordinate failed.
func (w *Warmer) Warm(ctx context.Context, coords []models.Coordinate) error {
	start := time.Now()
	if w.logger != nil {
		w.logger.Info("warming snapshot cache", zap.Int("coordinates", len(coords)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(coords))
	for _, c := range coords {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.service.GetSnapshot(ctx, c); err != nil {
				errCh <- fmt.Errorf("warm %.3f,%.3f: %w", c.Latitude, c.Longitude, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if w.logger != nil {
		w.logger.Info("cache warming complete",
			zap.Int("coordinates", len(coords)),
			zap.Int("errors", len(errs)),
			zap.Duration("duration", time.Since(start)))
	}
	if len(errs) > 0 {
		return fmt.Errorf("cache warming: %v", errs)
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval
// until ctx is done.
func (w *Warmer) WarmPeriodic(ctx context.Context, coords []models.Coordinate, interval time.Duration) error {
	if err := w.Warm(ctx, coords); err != nil && w.logger != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, coords); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
