package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lgaudin/air-quality-service/internal/aqi"
	"github.com/lgaudin/air-quality-service/internal/forecast"
	"github.com/lgaudin/air-quality-service/internal/fusion"
	"github.com/lgaudin/air-quality-service/internal/geo"
	"github.com/lgaudin/air-quality-service/internal/lifecycle"
	"github.com/lgaudin/air-quality-service/internal/models"
	"github.com/lgaudin/air-quality-service/internal/stats"
	"github.com/lgaudin/air-quality-service/internal/validation"
)

// HealthConfig holds the inputs for the health and stats handlers.
type HealthConfig struct {
	StatsWindow time.Duration
	StartTime   time.Time
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	fusion           *fusion.Service
	engine           *forecast.Engine
	gazetteer        *geo.Gazetteer
	healthConfig     *HealthConfig
	logger           *zap.Logger
	rateLimiter      *rate.Limiter
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	fusionService *fusion.Service,
	engine *forecast.Engine,
	gazetteer *geo.Gazetteer,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	rateLimiter *rate.Limiter,
) *Handler {
	return &Handler{
		fusion:       fusionService,
		engine:       engine,
		gazetteer:    gazetteer,
		healthConfig: healthConfig,
		logger:       logger,
		rateLimiter:  rateLimiter,
	}
}

// GetLocationFull handles GET /location/full?latitude=..&longitude=..
// Valid coordinates always yield a 200: the fallback estimator covers every
// point on the globe.
func (h *Handler) GetLocationFull(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	coord, err := validation.ParseCoordinate(q.Get("latitude"), q.Get("longitude"))
	if err != nil {
		writeValidationError(w, r, "INVALID_COORDINATES", err)
		return
	}

	snap, err := h.fusion.GetSnapshot(r.Context(), coord)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAirQualityResponse(snap))
}

// GetForecast handles GET /forecast?latitude=..&longitude=..&hours=..
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	coord, err := validation.ParseCoordinate(q.Get("latitude"), q.Get("longitude"))
	if err != nil {
		writeValidationError(w, r, "INVALID_COORDINATES", err)
		return
	}
	hours, err := validation.ParseHours(q.Get("hours"), 24)
	if err != nil {
		writeValidationError(w, r, "INVALID_HOURS", err)
		return
	}

	snap, err := h.fusion.GetSnapshot(r.Context(), coord)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	points := h.engine.Project(snap.Measurement, coord, hours)
	summary := forecast.Summarize(points)

	m := snap.Measurement
	resp := models.ForecastResponse{
		Location: models.ForecastLocation{
			Name:        snap.Place.DisplayName,
			Coordinates: [2]float64{coord.Latitude, coord.Longitude},
		},
		Current: models.ForecastCurrent{
			AQI:       m.AQI,
			PM25:      m.PM25,
			PM10:      m.PM10,
			NO2:       m.NO2,
			O3:        m.O3,
			SO2:       m.SO2,
			CO:        m.CO,
			Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
		},
		Forecast: points,
		Summary:  summary,
		Health:   aqi.Advisory(summary.MaxAQI),
		Metadata: models.ForecastMetadata{
			Model:          "diurnal-reversion-v1",
			Confidence:     confidenceBand(points),
			BaseDataSource: m.Source.Label(),
			LastUpdated:    m.Timestamp.UTC().Format(time.RFC3339),
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

// confidenceBand reports the forecast-wide confidence as a coarse band.
func confidenceBand(points []models.ForecastPoint) string {
	if len(points) == 0 {
		return "low"
	}
	last := points[len(points)-1].Confidence
	switch {
	case last >= 0.8:
		return "high"
	case last >= 0.55:
		return "medium"
	default:
		return "low"
	}
}

// SearchLocation handles GET /locations/search?q=..
// Resolution is gazetteer-only; unknown names are 404, not errors.
func (h *Handler) SearchLocation(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, r, http.StatusUnprocessableEntity, "INVALID_QUERY", "q is required")
		return
	}

	place, ok := h.gazetteer.Lookup(query)
	if !ok {
		writeError(w, r, http.StatusNotFound, "LOCATION_NOT_FOUND", "no location matches "+query)
		return
	}
	writeJSON(w, http.StatusOK, place)
}

// GetStats handles GET /stats: per-source serve counts over the sliding window.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	window := time.Hour
	if h.healthConfig != nil && h.healthConfig.StatsWindow > 0 {
		window = h.healthConfig.StatsWindow
	}

	counts := stats.Counts(window)
	total := stats.Total(window)
	sources := make(map[string]interface{}, len(counts))
	for source, n := range counts {
		share := 0.0
		if total > 0 {
			share = float64(n) / float64(total)
		}
		sources[string(source)] = map[string]interface{}{
			"label": source.Label(),
			"count": n,
			"share": share,
		}
	}

	resp := map[string]interface{}{
		"window":        window.String(),
		"total_served":  total,
		"fallback_rate": stats.FallbackRate(window),
		"sources":       sources,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, resp)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	window := time.Hour
	if h.healthConfig != nil && h.healthConfig.StatsWindow > 0 {
		window = h.healthConfig.StatsWindow
	}

	checks := make(map[string]string)
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	if stats.FallbackRate(window) > 0.9 && stats.Total(window) >= 10 {
		checks["dataSources"] = "degraded"
	} else {
		checks["dataSources"] = "healthy"
	}

	resp := map[string]interface{}{
		"status":        result.status,
		"service":       "air-quality-service",
		"version":       "dev",
		"checks":        checks,
		"fallback_rate": stats.FallbackRate(window),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus determines the current health status. The service has
// no hard upstream dependency (the fallback always answers), so only shutdown
// flips it to unavailable.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// toAirQualityResponse flattens a snapshot into the frozen /location/full shape.
func toAirQualityResponse(snap models.Snapshot) models.AirQualityResponse {
	m := snap.Measurement
	p := snap.Place
	return models.AirQualityResponse{
		Name:          p.DisplayName,
		Coordinates:   [2]float64{p.Coordinate.Latitude, p.Coordinate.Longitude},
		AQI:           m.AQI,
		PM25:          m.PM25,
		PM10:          m.PM10,
		NO2:           m.NO2,
		O3:            m.O3,
		SO2:           m.SO2,
		CO:            m.CO,
		Temperature:   m.Temperature,
		Humidity:      m.Humidity,
		WindSpeed:     m.WindSpeed,
		WindDirection: m.WindDirection,
		Pressure:      m.Pressure,
		Visibility:    m.Visibility,
		LastUpdated:   m.Timestamp.UTC().Format(time.RFC3339),
		DataSource:    m.Source.Label(),
		Confidence:    m.Confidence,
		LocationInfo: &models.LocationInfo{
			Region:      p.Region,
			Country:     p.Country,
			ZoneType:    p.ZoneType,
			ClosestCity: p.ClosestCity,
		},
	}
}

// writeJSON writes a JSON response with the specified HTTP status code.
// Sets Content-Type header to application/json and encodes the provided value.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeValidationError maps parameter parse failures to 422 with the endpoint's error code.
func writeValidationError(w http.ResponseWriter, r *http.Request, code string, err error) {
	writeError(w, r, http.StatusUnprocessableEntity, code, err.Error())
}

// writeServiceError writes a 503 for request-level failures (context expiry).
// Logs the underlying error at DEBUG level if logger is available in request context.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		writeError(w, r, http.StatusServiceUnavailable, "REQUEST_TIMEOUT", "request deadline exceeded")
	} else {
		writeError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "unable to produce air-quality data")
	}
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("snapshot error", zap.Error(err))
	}
}
