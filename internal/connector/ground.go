package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/lgaudin/air-quality-service/internal/geo"
	"github.com/lgaudin/air-quality-service/internal/models"
)

// maxReadingAge is how old a station reading may be and still count as current.
const maxReadingAge = 24 * time.Hour

// Ratios used to fill in pollutants a station does not report, anchored on
// its PM2.5 reading.
const (
	ratioPM10 = 1.6
	ratioNO2  = 0.8
	ratioO3   = 2.5
	ratioSO2  = 0.3
	ratioCO   = 0.08
)

// GroundConnector queries the ground monitoring network for recent station
// readings near a coordinate.
type GroundConnector struct {
	apiURL   string
	apiKey   string
	radiusKM float64
	timeout  time.Duration
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewGroundConnector builds the ground-network connector. radiusKM <= 0
// defaults to 25 km.
func NewGroundConnector(apiURL, apiKey string, radiusKM float64, timeout time.Duration, logger *zap.Logger) *GroundConnector {
	if radiusKM <= 0 {
		radiusKM = 25
	}
	return &GroundConnector{
		apiURL:   apiURL,
		apiKey:   apiKey,
		radiusKM: radiusKM,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		breaker:  newBreaker("ground_network"),
		logger:   logger,
	}
}

func (g *GroundConnector) Name() string { return string(models.SourceGroundNetwork) }

// groundResponse mirrors the station network's latest-readings payload.
type groundResponse struct {
	Results []struct {
		Location    string `json:"location"`
		Coordinates struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"coordinates"`
		Measurements []struct {
			Parameter   string    `json:"parameter"`
			Value       float64   `json:"value"`
			LastUpdated time.Time `json:"lastUpdated"`
		} `json:"measurements"`
	} `json:"results"`
}

// Fetch returns the reading from the nearest station with recent data inside
// the search radius. No reachable station, stale-only stations, and upstream
// failures all yield ErrUnavailable.
func (g *GroundConnector) Fetch(ctx context.Context, c models.Coordinate) (models.Measurement, error) {
	start := time.Now()
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.callAPI(ctx, c)
	})
	if err != nil {
		observeCall(g.Name(), "error", start)
		return models.Measurement{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	observeCall(g.Name(), "success", start)
	return result.(models.Measurement), nil
}

func (g *GroundConnector) callAPI(ctx context.Context, c models.Coordinate) (models.Measurement, error) {
	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	base, err := url.Parse(g.apiURL)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("invalid ground API URL: %w", err)
	}
	params := url.Values{}
	params.Set("coordinates", fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude))
	params.Set("radius", fmt.Sprintf("%d", int(g.radiusKM*1000)))
	params.Set("limit", "100")
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, base.String(), nil)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set("X-API-Key", g.apiKey)
	}
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Measurement{}, fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("read response body: %w", err)
	}

	var apiResp groundResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.Measurement{}, fmt.Errorf("parse response: %w", err)
	}

	return g.nearestRecent(apiResp, c)
}

// nearestRecent picks the closest station that has at least one reading newer
// than maxReadingAge and maps its parameters to a measurement.
func (g *GroundConnector) nearestRecent(resp groundResponse, c models.Coordinate) (models.Measurement, error) {
	cutoff := time.Now().Add(-maxReadingAge)

	bestIdx := -1
	bestDist := g.radiusKM + 1
	for i, station := range resp.Results {
		recent := false
		for _, meas := range station.Measurements {
			if meas.LastUpdated.After(cutoff) {
				recent = true
				break
			}
		}
		if !recent {
			continue
		}
		d := geo.Haversine(c.Latitude, c.Longitude, station.Coordinates.Latitude, station.Coordinates.Longitude)
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return models.Measurement{}, fmt.Errorf("no station with recent data within %.0f km", g.radiusKM)
	}

	station := resp.Results[bestIdx]
	m := models.Measurement{
		Timestamp:  time.Now().UTC(),
		Source:     models.SourceGroundNetwork,
		Confidence: 0.9,
	}
	var newest time.Time
	for _, meas := range station.Measurements {
		if meas.LastUpdated.Before(cutoff) || meas.Value < 0 {
			continue
		}
		if meas.LastUpdated.After(newest) {
			newest = meas.LastUpdated
		}
		switch strings.ToLower(meas.Parameter) {
		case "pm25", "pm2.5":
			m.PM25 = round1(meas.Value)
		case "pm10":
			m.PM10 = round1(meas.Value)
		case "no2":
			m.NO2 = round1(meas.Value)
		case "o3":
			m.O3 = round1(meas.Value)
		case "so2":
			m.SO2 = round1(meas.Value)
		case "co":
			m.CO = round2(meas.Value)
		}
	}
	if !newest.IsZero() {
		m.Timestamp = newest.UTC()
	}

	fillMissingFromPM25(&m)
	fillWeather(&m, c, m.Timestamp)

	g.logger.Debug("ground station selected",
		zap.String("station", station.Location),
		zap.Float64("distanceKm", bestDist))
	return m, nil
}

// fillMissingFromPM25 estimates unreported pollutants from the station's
// PM2.5 reading. Stations that report neither PM2.5 nor the pollutant leave
// the field at zero (not reported).
func fillMissingFromPM25(m *models.Measurement) {
	if m.PM25 <= 0 {
		return
	}
	if m.PM10 <= 0 {
		m.PM10 = round1(m.PM25 * ratioPM10)
	}
	if m.NO2 <= 0 {
		m.NO2 = round1(m.PM25 * ratioNO2)
	}
	if m.O3 <= 0 {
		m.O3 = round1(m.PM25 * ratioO3)
	}
	if m.SO2 <= 0 {
		m.SO2 = round1(m.PM25 * ratioSO2)
	}
	if m.CO <= 0 {
		m.CO = round2(m.PM25 * ratioCO)
	}
}
