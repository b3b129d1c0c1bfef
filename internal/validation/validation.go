package validation

import (
	"errors"
	"strconv"
	"strings"

	"github.com/lgaudin/air-quality-service/internal/models"
)

// ErrLatitudeRange is returned when latitude is outside [-90, 90].
var ErrLatitudeRange = errors.New("latitude must be between -90 and 90")

// ErrLongitudeRange is returned when longitude is outside [-180, 180].
var ErrLongitudeRange = errors.New("longitude must be between -180 and 180")

// ErrCoordinateMalformed is returned when latitude/longitude are missing or not numeric.
var ErrCoordinateMalformed = errors.New("latitude and longitude must be numeric")

// ErrHoursRange is returned when the forecast horizon is outside [1, 72].
var ErrHoursRange = errors.New("hours must be between 1 and 72")

// MaxForecastHours is the longest supported projection horizon.
const MaxForecastHours = 72

// ParseCoordinate parses and validates raw latitude/longitude query values.
// Validation happens at the boundary: invalid values are rejected before any
// lookup and surface as 422 responses. NaN and infinities are rejected by the
// range checks.
func ParseCoordinate(latRaw, lonRaw string) (models.Coordinate, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil {
		return models.Coordinate{}, ErrCoordinateMalformed
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonRaw), 64)
	if err != nil {
		return models.Coordinate{}, ErrCoordinateMalformed
	}
	if lat < -90 || lat > 90 || lat != lat {
		return models.Coordinate{}, ErrLatitudeRange
	}
	if lon < -180 || lon > 180 || lon != lon {
		return models.Coordinate{}, ErrLongitudeRange
	}
	return models.Coordinate{Latitude: lat, Longitude: lon}, nil
}

// ParseHours parses the forecast horizon, applying defaultHours when absent.
func ParseHours(raw string, defaultHours int) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return defaultHours, nil
	}
	h, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrHoursRange
	}
	if h < 1 || h > MaxForecastHours {
		return 0, ErrHoursRange
	}
	return h, nil
}
