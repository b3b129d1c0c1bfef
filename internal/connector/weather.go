package connector

import (
	"math"
	"math/rand"
	"time"

	"github.com/lgaudin/air-quality-service/internal/models"
)

var compassDirections = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// seasonFactor maps the time of year to [-1, 1]: +1 at midsummer, -1 at
// midwinter, hemisphere-aware.
func seasonFactor(t time.Time, latitude float64) float64 {
	day := float64(t.YearDay())
	// Day ~172 is the June solstice.
	f := math.Cos(2 * math.Pi * (day - 172) / 365)
	if latitude < 0 {
		f = -f
	}
	return f
}

// coordSeed derives a stable PRNG seed from a coordinate so synthesized
// conditions are reproducible for the same place.
func coordSeed(c models.Coordinate) int64 {
	return int64(math.Round(c.Latitude*1000))<<21 ^ int64(math.Round(c.Longitude*1000))
}

// fillWeather populates the meteorological fields of a measurement with
// plausible conditions for the coordinate and time. Upstream sources report
// pollutants only, so every connector shares this.
func fillWeather(m *models.Measurement, c models.Coordinate, t time.Time) {
	rng := rand.New(rand.NewSource(coordSeed(c) ^ int64(t.Truncate(time.Hour).Unix())))

	season := seasonFactor(t, c.Latitude)
	latChill := math.Abs(c.Latitude) / 90

	m.Temperature = round1(15 + season*15 - latChill*20 + rng.Float64()*4 - 2)
	m.Humidity = round1(40 + rng.Float64()*50)
	m.WindSpeed = round1(rng.Float64() * 15)
	m.WindDirection = compassDirections[rng.Intn(len(compassDirections))]
	m.Pressure = round1(995 + rng.Float64()*35)
	m.Visibility = round1(5 + rng.Float64()*15)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
