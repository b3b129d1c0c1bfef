// Package connector implements the upstream air-quality data sources: the
// satellite column-density feed, the ground station network, and the
// synthetic fallback estimator. Connectors share one small interface so the
// fusion layer can walk them in priority order.
package connector

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lgaudin/air-quality-service/internal/models"
	"github.com/lgaudin/air-quality-service/internal/observability"
)

var (
	// ErrUnavailable means the source cannot produce data for this request
	// (out of coverage, no nearby station, upstream down). The caller moves
	// on to the next source.
	ErrUnavailable = errors.New("data source unavailable")

	// ErrUpstreamFailure wraps transient upstream HTTP failures.
	ErrUpstreamFailure = errors.New("upstream failure")
)

// Connector produces an air-quality measurement for a coordinate.
type Connector interface {
	Name() string
	Fetch(ctx context.Context, c models.Coordinate) (models.Measurement, error)
}

// newBreaker builds the circuit breaker shared by the HTTP-backed connectors.
// Trips after 5 consecutive failures, probes again after 30s.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// observeCall records per-connector call metrics.
func observeCall(name, status string, start time.Time) {
	observability.ConnectorCallsTotal.WithLabelValues(name, status).Inc()
	observability.ConnectorDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func extractCorrelationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
