// Package geocoder resolves coordinates to human-readable place names. It
// tries the gazetteer for exact metro matches, then the upstream reverse
// geocoder, and finally falls back to regional estimation. Resolution never
// fails: every coordinate gets a name.
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lgaudin/air-quality-service/internal/cache"
	"github.com/lgaudin/air-quality-service/internal/geo"
	"github.com/lgaudin/air-quality-service/internal/models"
	"github.com/lgaudin/air-quality-service/internal/observability"
)

// Name-quality tiers by distance to the nearest known city.
const (
	exactCityKM   = 5.0
	nearbyCityKM  = 25.0
	regionCityKM  = 200.0
	urbanRadiusKM = 100.0
)

// ReverseGeocoder turns coordinates into ResolvedPlace values.
type ReverseGeocoder struct {
	apiURL    string
	timeout   time.Duration
	client    *http.Client
	gazetteer *geo.Gazetteer
	logger    *zap.Logger

	mu      sync.Mutex
	places  map[string]placeEntry
	ttl     time.Duration
	maxSize int
}

type placeEntry struct {
	place     models.ResolvedPlace
	expiresAt time.Time
}

// New builds a ReverseGeocoder. apiURL may be empty, in which case upstream
// lookups are skipped and naming comes from the gazetteer and region tables.
// Resolved places expire after cacheTTL, 5 minutes when unset.
func New(apiURL string, timeout, cacheTTL time.Duration, gazetteer *geo.Gazetteer, logger *zap.Logger) *ReverseGeocoder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ReverseGeocoder{
		apiURL:    apiURL,
		timeout:   timeout,
		client:    &http.Client{Timeout: timeout},
		gazetteer: gazetteer,
		logger:    logger,
		places:    make(map[string]placeEntry),
		ttl:       cacheTTL,
		maxSize:   4096,
	}
}

// Resolve names the coordinate. The result always carries a non-empty
// DisplayName, a region classification, and a zone type.
func (g *ReverseGeocoder) Resolve(ctx context.Context, c models.Coordinate) models.ResolvedPlace {
	key := cache.Key(c)
	if place, ok := g.cached(key); ok {
		observability.CacheHitsTotal.WithLabelValues("geocode").Inc()
		return place
	}

	place := g.resolve(ctx, c)
	g.store(key, place)
	return place
}

func (g *ReverseGeocoder) resolve(ctx context.Context, c models.Coordinate) models.ResolvedPlace {
	place := models.ResolvedPlace{
		Coordinate: c,
		Region:     geo.ClassifyRegion(c.Latitude, c.Longitude),
		ZoneType:   "rural",
		Country:    geo.EstimateCountry(c.Latitude, c.Longitude),
	}

	nearest, dist := g.gazetteer.Nearest(c.Latitude, c.Longitude)
	if city, cityDist, ok := g.gazetteer.ClosestMajorCity(c.Latitude, c.Longitude, regionCityKM); ok {
		place.ClosestCity = &models.MajorCity{Name: city.Name, Country: city.Country, DistanceKM: roundKM(cityDist)}
		if cityDist <= urbanRadiusKM {
			place.ZoneType = "urban"
		}
	}

	// Right on top of a known city: skip the network round trip.
	if dist <= exactCityKM {
		place.DisplayName = nearest.Name + ", " + nearest.Country
		place.Country = nearest.Country
		place.ZoneType = "urban"
		return place
	}

	if g.apiURL != "" {
		if name, country, ok := g.lookupUpstream(ctx, c); ok {
			place.DisplayName = name
			if country != "" {
				place.Country = country
			}
			return place
		}
	}

	observability.GeocoderFallbacksTotal.Inc()
	place.DisplayName = g.estimateName(place, nearest, dist)
	return place
}

// estimateName builds a name from the nearest known city, degrading to the
// region as distance grows.
func (g *ReverseGeocoder) estimateName(place models.ResolvedPlace, nearest geo.Entry, dist float64) string {
	switch {
	case dist <= nearbyCityKM:
		return nearest.Name + ", " + nearest.Country
	case dist <= regionCityKM:
		return "Near " + nearest.Name + ", " + nearest.Country
	case place.Country != "":
		return place.Region + ", " + place.Country
	default:
		return fmt.Sprintf("%s (%.2f°, %.2f°)", place.Region, place.Coordinate.Latitude, place.Coordinate.Longitude)
	}
}

// nominatimResponse is the subset of the upstream reverse-geocode payload we
// read. The locality may arrive under any of several address keys.
type nominatimResponse struct {
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		State        string `json:"state"`
		Country      string `json:"country"`
	} `json:"address"`
}

func (g *ReverseGeocoder) lookupUpstream(ctx context.Context, c models.Coordinate) (name, country string, ok bool) {
	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	base, err := url.Parse(g.apiURL)
	if err != nil {
		g.logger.Warn("invalid geocoder URL", zap.Error(err))
		return "", "", false
	}
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.6f", c.Latitude))
	params.Set("lon", fmt.Sprintf("%.6f", c.Longitude))
	params.Set("format", "json")
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, base.String(), nil)
	if err != nil {
		return "", "", false
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "air-quality-service/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("reverse geocode failed", zap.Error(err))
		return "", "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Debug("reverse geocode rejected", zap.Int("status", resp.StatusCode))
		return "", "", false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", false
	}
	var payload nominatimResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", false
	}

	locality := firstNonEmpty(
		payload.Address.City,
		payload.Address.Town,
		payload.Address.Village,
		payload.Address.Municipality,
	)
	if locality == "" && payload.Address.State == "" {
		return "", "", false
	}

	parts := make([]string, 0, 3)
	if locality != "" {
		parts = append(parts, locality)
	}
	if payload.Address.State != "" && payload.Address.State != locality {
		parts = append(parts, payload.Address.State)
	}
	if payload.Address.Country != "" {
		parts = append(parts, payload.Address.Country)
	}
	return join(parts), payload.Address.Country, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func join(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func roundKM(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func (g *ReverseGeocoder) cached(key string) (models.ResolvedPlace, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.places[key]
	if !ok {
		return models.ResolvedPlace{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(g.places, key)
		return models.ResolvedPlace{}, false
	}
	return entry.place, true
}

func (g *ReverseGeocoder) store(key string, place models.ResolvedPlace) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.places) >= g.maxSize {
		// Full: drop everything rather than track ages; geocodes are cheap to redo.
		g.places = make(map[string]placeEntry)
	}
	g.places[key] = placeEntry{place: place, expiresAt: time.Now().Add(g.ttl)}
}
