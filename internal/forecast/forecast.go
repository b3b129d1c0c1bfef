// Package forecast projects current air-quality conditions forward using
// pollutant-specific diurnal cycles with mean reversion toward the regional
// baseline. Projection is deterministic: the same snapshot always yields the
// same forecast.
package forecast

import (
	"math"
	"time"

	"github.com/lgaudin/air-quality-service/internal/aqi"
	"github.com/lgaudin/air-quality-service/internal/geo"
	"github.com/lgaudin/air-quality-service/internal/models"
)

// Config holds the engine's tuning knobs. Zero values take defaults.
type Config struct {
	BaseConfidence float64 // confidence at hour 1
	DecayRate      float64 // per-hour multiplicative confidence decay
	MinConfidence  float64 // confidence floor
	ReversionRate  float64 // per-hour pull toward the regional baseline
}

func (c *Config) applyDefaults() {
	if c.BaseConfidence == 0 {
		c.BaseConfidence = 0.95
	}
	if c.DecayRate == 0 {
		c.DecayRate = 0.985
	}
	if c.MinConfidence == 0 {
		c.MinConfidence = 0.40
	}
	if c.ReversionRate == 0 {
		c.ReversionRate = 0.98
	}
}

// Regional long-run pollutant means, scaled by the local emission factor.
var baseline = map[string]float64{
	"pm25": 10,
	"pm10": 16,
	"no2":  20,
	"o3":   50,
	"so2":  4,
	"co":   0.8,
}

// Engine projects measurements forward in time.
type Engine struct {
	cfg Config
}

// NewEngine creates a forecast engine.
func NewEngine(cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{cfg: cfg}
}

// diurnal returns the multiplicative hour-of-day factor for a pollutant.
// Combustion pollutants peak with commute traffic, ozone with afternoon sun.
func diurnal(pollutant string, hour int) float64 {
	h := float64(hour)
	switch pollutant {
	case "pm25":
		return 1 + 0.3*math.Sin(2*math.Pi*(h-8)/24)
	case "pm10":
		return 1 + 0.25*math.Sin(2*math.Pi*(h-9)/24)
	case "no2":
		return 1 + 0.4*(math.Sin(2*math.Pi*(h-8)/24)+math.Sin(2*math.Pi*(h-18)/24))/2
	case "o3":
		return math.Max(0.3, math.Sin(math.Pi*(h-6)/12))
	case "so2":
		return 1 + 0.2*math.Sin(2*math.Pi*(h-10)/24)
	case "co":
		return 1 + 0.35*(math.Sin(2*math.Pi*(h-8)/24)+math.Sin(2*math.Pi*(h-18)/24))/2
	default:
		return 1
	}
}

// Project returns hourly forecast points 1..hours ahead of the measurement.
// Hours are strictly increasing and confidence never increases with lead time.
func (e *Engine) Project(current models.Measurement, c models.Coordinate, hours int) []models.ForecastPoint {
	factor := geo.PollutionFactor(c.Latitude, c.Longitude)
	base := current.Timestamp.UTC().Truncate(time.Hour)
	baseHour := base.Hour()

	// Strip the diurnal cycle off the current readings to recover daily
	// means, so hour 1 continues smoothly from the observation.
	means := map[string]float64{
		"pm25": demodulate(current.PM25, "pm25", baseHour),
		"pm10": demodulate(current.PM10, "pm10", baseHour),
		"no2":  demodulate(current.NO2, "no2", baseHour),
		"o3":   demodulate(current.O3, "o3", baseHour),
		"so2":  demodulate(current.SO2, "so2", baseHour),
		"co":   demodulate(current.CO, "co", baseHour),
	}

	points := make([]models.ForecastPoint, 0, hours)
	for h := 1; h <= hours; h++ {
		hour := (baseHour + h) % 24
		weight := math.Pow(e.cfg.ReversionRate, float64(h))

		project := func(pollutant string) float64 {
			mean := means[pollutant]
			target := baseline[pollutant] * factor
			blended := mean*weight + target*(1-weight)
			return math.Max(0, blended*diurnal(pollutant, hour))
		}

		p := models.ForecastPoint{
			Hour:       h,
			Timestamp:  base.Add(time.Duration(h) * time.Hour),
			PM25:       round1(project("pm25")),
			PM10:       round1(project("pm10")),
			NO2:        round1(project("no2")),
			O3:         round1(project("o3")),
			SO2:        round1(project("so2")),
			CO:         round2(project("co")),
			Confidence: e.confidence(h),
		}
		p.AQI = aqi.FromPoint(p)
		points = append(points, p)
	}
	return points
}

// demodulate divides a reading by its diurnal factor at the given hour.
// Zero readings (not reported) stay zero.
func demodulate(value float64, pollutant string, hour int) float64 {
	if value <= 0 {
		return 0
	}
	f := diurnal(pollutant, hour)
	if f <= 0.05 {
		f = 0.05
	}
	return value / f
}

// confidence decays multiplicatively with lead time down to the floor.
func (e *Engine) confidence(hour int) float64 {
	c := e.cfg.BaseConfidence * math.Pow(e.cfg.DecayRate, float64(hour))
	if c < e.cfg.MinConfidence {
		c = e.cfg.MinConfidence
	}
	return round2(c)
}

// trendThreshold is the AQI difference below which the trend reads stable.
const trendThreshold = 5.0

// Summarize aggregates a projection into the forecast summary: AQI extremes,
// the first-third versus last-third trend, and the best and worst hours.
func Summarize(points []models.ForecastPoint) models.ForecastSummary {
	if len(points) == 0 {
		return models.ForecastSummary{Trend: "stable"}
	}

	sum := 0
	maxAQI, minAQI := points[0].AQI, points[0].AQI
	peakHour, bestHour := points[0].Hour, points[0].Hour
	for _, p := range points {
		sum += p.AQI
		if p.AQI > maxAQI {
			maxAQI = p.AQI
			peakHour = p.Hour
		}
		if p.AQI < minAQI {
			minAQI = p.AQI
			bestHour = p.Hour
		}
	}

	third := len(points) / 3
	if third == 0 {
		third = 1
	}
	early := meanAQI(points[:third])
	late := meanAQI(points[len(points)-third:])

	trend := "stable"
	switch {
	case late-early > trendThreshold:
		trend = "worsening"
	case early-late > trendThreshold:
		trend = "improving"
	}

	return models.ForecastSummary{
		ForecastHours:      len(points),
		AvgAQI:             round1(float64(sum) / float64(len(points))),
		MaxAQI:             maxAQI,
		MinAQI:             minAQI,
		Trend:              trend,
		PeakPollutionHour:  peakHour,
		BestAirQualityHour: bestHour,
	}
}

func meanAQI(points []models.ForecastPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	sum := 0
	for _, p := range points {
		sum += p.AQI
	}
	return float64(sum) / float64(len(points))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
