package models

import "time"

// Source identifies which upstream produced a Measurement. Every response
// carries exactly one source tag; pollutant fields are never mixed across sources.
type Source string

const (
	SourceSatellite           Source = "satellite"
	SourceGroundNetwork       Source = "ground_network"
	SourceIntelligentFallback Source = "intelligent_fallback"
)

// Label returns the human-readable form used in the dataSource response field.
func (s Source) Label() string {
	switch s {
	case SourceSatellite:
		return "Satellite Observations"
	case SourceGroundNetwork:
		return "Ground Station Network"
	case SourceIntelligentFallback:
		return "Intelligent Fallback (WHO/EPA patterns)"
	default:
		return string(s)
	}
}

// Coordinate is a validated latitude/longitude pair.
// Latitude in [-90, 90], longitude in [-180, 180].
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Measurement is one air-quality snapshot produced by a single connector.
// Concentrations are µg/m³ except CO (ppm). A zero concentration is treated
// as "not reported" when computing AQI. Measurements are immutable once
// produced; forecasts derive new values rather than editing the current one.
type Measurement struct {
	PM25 float64 `json:"pm25"`
	PM10 float64 `json:"pm10"`
	NO2  float64 `json:"no2"`
	O3   float64 `json:"o3"`
	SO2  float64 `json:"so2"`
	CO   float64 `json:"co"`

	AQI int `json:"aqi"`

	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection string  `json:"windDirection"`
	Pressure      float64 `json:"pressure"`
	Visibility    float64 `json:"visibility"`

	Timestamp  time.Time `json:"timestamp"`
	Source     Source    `json:"source"`
	Confidence float64   `json:"confidence"`
}

// MajorCity is the nearest gazetteer entry reported in location_info.
type MajorCity struct {
	Name       string  `json:"name"`
	Country    string  `json:"country"`
	DistanceKM float64 `json:"distance_km"`
}

// ResolvedPlace is the outcome of location resolution. It is always populated:
// when the geocoding service is unreachable the display name comes from the
// regional-estimate fallback. Immutable once produced; cached by rounded coordinate.
type ResolvedPlace struct {
	DisplayName string     `json:"display_name"`
	Coordinate  Coordinate `json:"coordinate"`
	Region      string     `json:"region"`
	ZoneType    string     `json:"zone_type"` // "urban" or "rural"
	Country     string     `json:"country,omitempty"`
	ClosestCity *MajorCity `json:"closest_major_city,omitempty"`
}

// ForecastPoint is one projected hour derived from a current Measurement.
type ForecastPoint struct {
	Hour       int       `json:"hour"`
	Timestamp  time.Time `json:"timestamp"`
	PM25       float64   `json:"pm25"`
	PM10       float64   `json:"pm10"`
	NO2        float64   `json:"no2"`
	O3         float64   `json:"o3"`
	SO2        float64   `json:"so2"`
	CO         float64   `json:"co"`
	AQI        int       `json:"aqi"`
	Confidence float64   `json:"confidence"`
}

// Snapshot pairs a fused Measurement with the place it was resolved to.
type Snapshot struct {
	Place       ResolvedPlace
	Measurement Measurement
}

// LocationInfo is the optional extended block on /location/full responses.
// Strictly additive: the surrounding response shape is frozen for compatibility.
type LocationInfo struct {
	Region      string     `json:"region"`
	Country     string     `json:"country"`
	ZoneType    string     `json:"zone_type"`
	ClosestCity *MajorCity `json:"closest_major_city,omitempty"`
}

// AirQualityResponse is the frozen shape of GET /location/full.
type AirQualityResponse struct {
	Name          string        `json:"name"`
	Coordinates   [2]float64    `json:"coordinates"`
	AQI           int           `json:"aqi"`
	PM25          float64       `json:"pm25"`
	PM10          float64       `json:"pm10"`
	NO2           float64       `json:"no2"`
	O3            float64       `json:"o3"`
	SO2           float64       `json:"so2"`
	CO            float64       `json:"co"`
	Temperature   float64       `json:"temperature"`
	Humidity      float64       `json:"humidity"`
	WindSpeed     float64       `json:"windSpeed"`
	WindDirection string        `json:"windDirection"`
	Pressure      float64       `json:"pressure"`
	Visibility    float64       `json:"visibility"`
	LastUpdated   string        `json:"lastUpdated"`
	DataSource    string        `json:"dataSource"`
	Confidence    float64       `json:"confidence"`
	LocationInfo  *LocationInfo `json:"location_info,omitempty"`
}

// ForecastLocation is the location block on GET /forecast.
type ForecastLocation struct {
	Name        string     `json:"name"`
	Coordinates [2]float64 `json:"coordinates"`
}

// ForecastCurrent is the current-conditions block on GET /forecast.
type ForecastCurrent struct {
	AQI       int     `json:"aqi"`
	PM25      float64 `json:"pm25"`
	PM10      float64 `json:"pm10"`
	NO2       float64 `json:"no2"`
	O3        float64 `json:"o3"`
	SO2       float64 `json:"so2"`
	CO        float64 `json:"co"`
	Timestamp string  `json:"timestamp"`
}

// ForecastSummary aggregates a full projection sequence. Computed once over
// the whole sequence, not per point.
type ForecastSummary struct {
	ForecastHours      int     `json:"forecast_hours"`
	AvgAQI             float64 `json:"avg_aqi"`
	MaxAQI             int     `json:"max_aqi"`
	MinAQI             int     `json:"min_aqi"`
	Trend              string  `json:"trend"` // improving, stable, worsening
	PeakPollutionHour  int     `json:"peak_pollution_hour"`
	BestAirQualityHour int     `json:"best_air_quality_hour"`
}

// HealthAdvisory is the AQI-band guidance block on GET /forecast.
type HealthAdvisory struct {
	Level      string `json:"level"`
	Message    string `json:"message"`
	Activities string `json:"activities"`
}

// ForecastMetadata describes the model behind a forecast response.
type ForecastMetadata struct {
	Model          string `json:"model"`
	Confidence     string `json:"confidence"`
	BaseDataSource string `json:"base_data_source"`
	LastUpdated    string `json:"last_updated"`
}

// ForecastResponse is the shape of GET /forecast.
type ForecastResponse struct {
	Location ForecastLocation `json:"location"`
	Current  ForecastCurrent  `json:"current"`
	Forecast []ForecastPoint  `json:"forecast"`
	Summary  ForecastSummary  `json:"summary"`
	Health   HealthAdvisory   `json:"health"`
	Metadata ForecastMetadata `json:"metadata"`
}
