// Package aqi computes the EPA Air Quality Index from pollutant concentrations
// using piecewise-linear breakpoint interpolation. The overall AQI is the
// worst-case sub-index across pollutants, per EPA convention.
package aqi

import (
	"math"

	"github.com/lgaudin/air-quality-service/internal/models"
)

// breakpoint maps a concentration band [CLow, CHigh] onto an AQI band [AQILow, AQIHigh].
type breakpoint struct {
	cLow, cHigh    float64
	aqiLow, aqiHigh int
}

// EPA breakpoint tables. PM2.5/PM10/NO2 in µg/m³, O3 interpreted against the
// EPA 8-hour ppb scale after connector-side normalization.
var (
	pm25Breakpoints = []breakpoint{
		{0, 12.0, 0, 50},
		{12.1, 35.4, 51, 100},
		{35.5, 55.4, 101, 150},
		{55.5, 150.4, 151, 200},
		{150.5, 250.4, 201, 300},
		{250.5, 500.4, 301, 500},
	}
	pm10Breakpoints = []breakpoint{
		{0, 54, 0, 50},
		{55, 154, 51, 100},
		{155, 254, 101, 150},
		{255, 354, 151, 200},
		{355, 424, 201, 300},
		{425, 604, 301, 500},
	}
	no2Breakpoints = []breakpoint{
		{0, 25, 0, 50},
		{25.1, 50, 51, 100},
		{50.1, 100, 101, 150},
		{100.1, 200, 151, 200},
		{200.1, 400, 201, 300},
		{400.1, 800, 301, 500},
	}
	o3Breakpoints = []breakpoint{
		{0, 54, 0, 50},
		{55, 70, 51, 100},
		{71, 85, 101, 150},
		{86, 105, 151, 200},
		{106, 200, 201, 300},
		{201, 504, 301, 500},
	}
)

// subIndex interpolates one pollutant concentration onto its AQI band. Bands
// cover concentrations contiguously: a band runs up to the next band's lower
// bound, and values in the published gaps (the EPA tables step 54 → 55,
// 12.0 → 12.1) clamp to the lower band's ceiling, matching EPA truncation.
// Concentrations above the top band clamp to 500.
func subIndex(concentration float64, table []breakpoint) int {
	for i, bp := range table {
		if i+1 < len(table) && concentration >= table[i+1].cLow {
			continue
		}
		span := bp.cHigh - bp.cLow
		if span <= 0 {
			return bp.aqiHigh
		}
		c := math.Min(concentration, bp.cHigh)
		v := float64(bp.aqiHigh-bp.aqiLow)/span*(c-bp.cLow) + float64(bp.aqiLow)
		return int(math.Round(v))
	}
	return 500
}

// Compute returns the overall AQI for a measurement: the maximum sub-index
// over the pollutants that are actually reported (value > 0). ok is false when
// none of PM2.5, PM10, NO2, O3 are present, in which case aqi is 0.
func Compute(m models.Measurement) (aqi int, ok bool) {
	max := 0
	found := false
	for _, p := range []struct {
		value float64
		table []breakpoint
	}{
		{m.PM25, pm25Breakpoints},
		{m.PM10, pm10Breakpoints},
		{m.NO2, no2Breakpoints},
		{m.O3, o3Breakpoints},
	} {
		if p.value <= 0 {
			continue
		}
		found = true
		if idx := subIndex(p.value, p.table); idx > max {
			max = idx
		}
	}
	return max, found
}

// FromPoint computes AQI for a forecast point using the same tables as Compute.
func FromPoint(p models.ForecastPoint) int {
	v, _ := Compute(models.Measurement{PM25: p.PM25, PM10: p.PM10, NO2: p.NO2, O3: p.O3})
	return v
}

// Category returns the EPA category name for an AQI value.
func Category(aqi int) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive Groups"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}

// Advisory returns health guidance for an AQI band.
func Advisory(aqi int) models.HealthAdvisory {
	switch {
	case aqi <= 50:
		return models.HealthAdvisory{
			Level:      "Good",
			Message:    "Air quality is satisfactory",
			Activities: "Normal outdoor activities recommended",
		}
	case aqi <= 100:
		return models.HealthAdvisory{
			Level:      "Moderate",
			Message:    "Air quality is acceptable",
			Activities: "Sensitive individuals should limit prolonged outdoor exertion",
		}
	case aqi <= 150:
		return models.HealthAdvisory{
			Level:      "Unhealthy for Sensitive Groups",
			Message:    "Sensitive groups may experience health effects",
			Activities: "Reduce outdoor activities if sensitive",
		}
	case aqi <= 200:
		return models.HealthAdvisory{
			Level:      "Unhealthy",
			Message:    "Everyone may experience health effects",
			Activities: "Avoid prolonged outdoor activities",
		}
	case aqi <= 300:
		return models.HealthAdvisory{
			Level:      "Very Unhealthy",
			Message:    "Health alert: risk of effects is increased for everyone",
			Activities: "Avoid all outdoor activities",
		}
	default:
		return models.HealthAdvisory{
			Level:      "Hazardous",
			Message:    "Emergency conditions affecting the entire population",
			Activities: "Remain indoors with filtered air",
		}
	}
}
