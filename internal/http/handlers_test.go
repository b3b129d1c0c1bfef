package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/lgaudin/air-quality-service/internal/cache"
	"github.com/lgaudin/air-quality-service/internal/connector"
	"github.com/lgaudin/air-quality-service/internal/forecast"
	"github.com/lgaudin/air-quality-service/internal/fusion"
	"github.com/lgaudin/air-quality-service/internal/geo"
	"github.com/lgaudin/air-quality-service/internal/geocoder"
	"github.com/lgaudin/air-quality-service/internal/lifecycle"
	"github.com/lgaudin/air-quality-service/internal/models"
)

// stubConnector returns a fixed measurement or error. Used to stand in for
// the satellite and ground sources.
type stubConnector struct {
	name string
	m    models.Measurement
	err  error
	// block, when set, makes Fetch wait for ctx before returning.
	block bool
}

func (s *stubConnector) Name() string { return s.name }

func (s *stubConnector) Fetch(ctx context.Context, c models.Coordinate) (models.Measurement, error) {
	if s.block {
		<-ctx.Done()
		return models.Measurement{}, ctx.Err()
	}
	if s.err != nil {
		return models.Measurement{}, s.err
	}
	return s.m, nil
}

// newTestHandler wires a Handler over an in-memory stack: gazetteer-backed
// geocoder (no upstream), the given connectors, and the fallback estimator.
func newTestHandler(t *testing.T, connectors []connector.Connector) *Handler {
	t.Helper()
	logger := zap.NewNop()
	gazetteer := geo.New()
	fallback := connector.NewFallbackConnector(connector.FallbackConfig{}, gazetteer, logger)
	gc := geocoder.New("", 0, 0, gazetteer, logger)
	store := cache.NewInMemoryCache(100)
	svc := fusion.NewService(connectors, fallback, store, gc, 5*time.Minute, 0, logger)
	engine := forecast.NewEngine(forecast.Config{})
	return NewHandler(svc, engine, gazetteer, &HealthConfig{StatsWindow: time.Minute, StartTime: time.Now()}, logger, nil)
}

func newTestRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/location/full", h.GetLocationFull).Methods("GET")
	router.HandleFunc("/forecast", h.GetForecast).Methods("GET")
	router.HandleFunc("/locations/search", h.SearchLocation).Methods("GET")
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.HandleFunc("/stats", h.GetStats).Methods("GET")
	return router
}

// TestGetLocationFull_KnownCity verifies that a coordinate on top of a major
// metro resolves to its gazetteer name and returns a complete measurement.
func TestGetLocationFull_KnownCity(t *testing.T) {
	router := newTestRouter(newTestHandler(t, nil))

	req := httptest.NewRequest("GET", "/location/full?latitude=48.8566&longitude=2.3522", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", w.Code, w.Body.String())
	}
	var resp models.AirQualityResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Name, "Paris") {
		t.Errorf("name = %q, want it to contain Paris", resp.Name)
	}
	if resp.AQI < 0 {
		t.Errorf("aqi = %d, want >= 0", resp.AQI)
	}
	if resp.PM25 <= 0 {
		t.Errorf("pm25 = %v, want > 0", resp.PM25)
	}
	if resp.DataSource == "" {
		t.Error("dataSource is empty")
	}
	if resp.Confidence <= 0 || resp.Confidence > 1 {
		t.Errorf("confidence = %v, want in (0, 1]", resp.Confidence)
	}
	if resp.LocationInfo == nil {
		t.Fatal("location_info missing")
	}
	if resp.LocationInfo.ZoneType != "urban" {
		t.Errorf("zone_type = %q, want urban", resp.LocationInfo.ZoneType)
	}
}

// TestGetLocationFull_OpenOcean verifies that a coordinate with no nearby
// city still gets a 200 with a synthesized name. Valid input never 5xxs.
func TestGetLocationFull_OpenOcean(t *testing.T) {
	router := newTestRouter(newTestHandler(t, nil))

	req := httptest.NewRequest("GET", "/location/full?latitude=0&longitude=0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", w.Code, w.Body.String())
	}
	var resp models.AirQualityResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Name == "" {
		t.Error("name is empty, want synthesized regional name")
	}
}

// TestGetLocationFull_InvalidCoordinates verifies the 422 contract for
// out-of-range and malformed coordinate parameters.
func TestGetLocationFull_InvalidCoordinates(t *testing.T) {
	router := newTestRouter(newTestHandler(t, nil))

	tests := []struct {
		name  string
		query string
	}{
		{"latitude out of range", "latitude=200&longitude=0"},
		{"longitude out of range", "latitude=0&longitude=-999"},
		{"malformed latitude", "latitude=abc&longitude=0"},
		{"missing longitude", "latitude=10"},
		{"NaN latitude", "latitude=NaN&longitude=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/location/full?"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", w.Code)
			}
			var errResp struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Error.Code != "INVALID_COORDINATES" {
				t.Errorf("error.code = %q, want INVALID_COORDINATES", errResp.Error.Code)
			}
		})
	}
}

// TestGetLocationFull_SourcePriority verifies that a working primary source
// wins over the fallback and its label lands in dataSource.
func TestGetLocationFull_SourcePriority(t *testing.T) {
	sat := &stubConnector{
		name: string(models.SourceSatellite),
		m: models.Measurement{
			PM25: 12, PM10: 19, NO2: 18, O3: 40, SO2: 2, CO: 0.4,
			Timestamp: time.Now().UTC(), Source: models.SourceSatellite, Confidence: 0.85,
		},
	}
	router := newTestRouter(newTestHandler(t, []connector.Connector{sat}))

	req := httptest.NewRequest("GET", "/location/full?latitude=40.7128&longitude=-74.0060", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp models.AirQualityResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DataSource != "Satellite Observations" {
		t.Errorf("dataSource = %q, want Satellite Observations", resp.DataSource)
	}
	if resp.PM25 != 12 {
		t.Errorf("pm25 = %v, want 12 from the satellite stub", resp.PM25)
	}
}

// TestGetLocationFull_CascadeToFallback verifies that unavailable sources
// cascade down to the fallback estimator.
func TestGetLocationFull_CascadeToFallback(t *testing.T) {
	sat := &stubConnector{name: string(models.SourceSatellite), err: connector.ErrUnavailable}
	ground := &stubConnector{name: string(models.SourceGroundNetwork), err: connector.ErrUnavailable}
	router := newTestRouter(newTestHandler(t, []connector.Connector{sat, ground}))

	req := httptest.NewRequest("GET", "/location/full?latitude=40.7128&longitude=-74.0060", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp models.AirQualityResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DataSource != "Intelligent Fallback (WHO/EPA patterns)" {
		t.Errorf("dataSource = %q, want the fallback label", resp.DataSource)
	}
	if resp.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5 for fallback", resp.Confidence)
	}
}

// TestGetForecast_FullHorizon verifies the 72-hour projection: exact length,
// strictly increasing hours, and non-increasing confidence.
func TestGetForecast_FullHorizon(t *testing.T) {
	router := newTestRouter(newTestHandler(t, nil))

	req := httptest.NewRequest("GET", "/forecast?latitude=48.8566&longitude=2.3522&hours=72", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", w.Code, w.Body.String())
	}
	var resp models.ForecastResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Forecast) != 72 {
		t.Fatalf("forecast length = %d, want 72", len(resp.Forecast))
	}
	for i, p := range resp.Forecast {
		if p.Hour != i+1 {
			t.Fatalf("forecast[%d].hour = %d, want %d", i, p.Hour, i+1)
		}
		if i > 0 && p.Confidence > resp.Forecast[i-1].Confidence {
			t.Fatalf("confidence increased at hour %d: %v > %v", p.Hour, p.Confidence, resp.Forecast[i-1].Confidence)
		}
	}
	if resp.Summary.ForecastHours != 72 {
		t.Errorf("summary.forecast_hours = %d, want 72", resp.Summary.ForecastHours)
	}
	switch resp.Summary.Trend {
	case "improving", "stable", "worsening":
	default:
		t.Errorf("summary.trend = %q, want improving/stable/worsening", resp.Summary.Trend)
	}
	if resp.Health.Level == "" || resp.Health.Message == "" {
		t.Error("health advisory incomplete")
	}
	if resp.Metadata.BaseDataSource == "" {
		t.Error("metadata.base_data_source is empty")
	}
}

// TestGetForecast_DefaultHours verifies that omitting hours yields 24 points.
func TestGetForecast_DefaultHours(t *testing.T) {
	router := newTestRouter(newTestHandler(t, nil))

	req := httptest.NewRequest("GET", "/forecast?latitude=10&longitude=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp models.ForecastResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Forecast) != 24 {
		t.Errorf("forecast length = %d, want 24 by default", len(resp.Forecast))
	}
}

// TestGetForecast_InvalidHours verifies the 422 contract for the hours parameter.
func TestGetForecast_InvalidHours(t *testing.T) {
	router := newTestRouter(newTestHandler(t, nil))

	for _, hours := range []string{"0", "-3", "73", "abc"} {
		req := httptest.NewRequest("GET", fmt.Sprintf("/forecast?latitude=10&longitude=10&hours=%s", hours), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("hours=%s: status = %d, want 422", hours, w.Code)
			continue
		}
		var errResp struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
			t.Fatalf("decode error response: %v", err)
		}
		if errResp.Error.Code != "INVALID_HOURS" {
			t.Errorf("hours=%s: error.code = %q, want INVALID_HOURS", hours, errResp.Error.Code)
		}
	}
}

// TestSearchLocation verifies gazetteer name resolution and the 404 for
// unknown names.
func TestSearchLocation(t *testing.T) {
	router := newTestRouter(newTestHandler(t, nil))

	req := httptest.NewRequest("GET", "/locations/search?q=tokyo", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var place models.ResolvedPlace
	if err := json.NewDecoder(w.Body).Decode(&place); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if place.DisplayName != "Tokyo, Japan" {
		t.Errorf("display_name = %q, want Tokyo, Japan", place.DisplayName)
	}

	req = httptest.NewRequest("GET", "/locations/search?q=nowhere-at-all", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown name: status = %d, want 404", w.Code)
	}

	req = httptest.NewRequest("GET", "/locations/search?q=", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty query: status = %d, want 422", w.Code)
	}
}

// TestGetHealth verifies the healthy and shutting-down states.
func TestGetHealth(t *testing.T) {
	router := newTestRouter(newTestHandler(t, nil))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", resp["status"])
	}

	lifecycle.SetShuttingDown(true)
	defer lifecycle.SetShuttingDown(false)

	req = httptest.NewRequest("GET", "/health", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("shutting down: status = %d, want 503", w.Code)
	}
}

// TestGetStats verifies that the stats endpoint reflects served snapshots.
func TestGetStats(t *testing.T) {
	router := newTestRouter(newTestHandler(t, nil))

	// Serve one snapshot so the window is not empty.
	req := httptest.NewRequest("GET", "/location/full?latitude=51.5074&longitude=-0.1278", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		TotalServed  int                        `json:"total_served"`
		FallbackRate float64                    `json:"fallback_rate"`
		Sources      map[string]json.RawMessage `json:"sources"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalServed < 1 {
		t.Errorf("total_served = %d, want >= 1", resp.TotalServed)
	}
	if len(resp.Sources) == 0 {
		t.Error("sources is empty, want at least one entry")
	}
}

// TestGetLocationFull_CacheIdempotent verifies that two requests for the same
// coordinate return identical payloads while the cache entry is live.
func TestGetLocationFull_CacheIdempotent(t *testing.T) {
	router := newTestRouter(newTestHandler(t, nil))

	get := func() string {
		req := httptest.NewRequest("GET", "/location/full?latitude=35.6762&longitude=139.6503", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		return w.Body.String()
	}

	first := get()
	second := get()
	if first != second {
		t.Errorf("cached responses differ:\nfirst:  %s\nsecond: %s", first, second)
	}
}
