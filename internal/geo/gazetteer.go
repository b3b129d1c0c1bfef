// Package geo provides the static gazetteer, great-circle math, and the
// declarative region/pollution-factor tables used by location resolution and
// the synthetic fallback generator. Everything here is pure lookup: no I/O.
package geo

import (
	"math"
	"strings"

	"github.com/lgaudin/air-quality-service/internal/models"
)

// Entry is one gazetteer row: a major city, state/province centroid, or country
// centroid with coordinates and administrative metadata. Area marks centroid
// entries that describe a region rather than a settlement.
type Entry struct {
	Name    string
	State   string
	Country string
	Lat     float64
	Lon     float64
	Aliases []string
	Area    bool
}

// Coordinate returns the entry position as a models.Coordinate.
func (e Entry) Coordinate() models.Coordinate {
	return models.Coordinate{Latitude: e.Lat, Longitude: e.Lon}
}

// worldCities covers the major metros used for urban classification and
// closest-major-city reporting.
var worldCities = []Entry{
	// Europe
	{Name: "Paris", Country: "France", Lat: 48.8566, Lon: 2.3522},
	{Name: "London", Country: "United Kingdom", Lat: 51.5074, Lon: -0.1278},
	{Name: "Berlin", Country: "Germany", Lat: 52.5200, Lon: 13.4050},
	{Name: "Rome", Country: "Italy", Lat: 41.9028, Lon: 12.4964},
	{Name: "Madrid", Country: "Spain", Lat: 40.4168, Lon: -3.7038},
	{Name: "Stockholm", Country: "Sweden", Lat: 59.3293, Lon: 18.0686},
	{Name: "Moscow", Country: "Russia", Lat: 55.7558, Lon: 37.6176},
	{Name: "Prague", Country: "Czech Republic", Lat: 50.0755, Lon: 14.4378},
	{Name: "Budapest", Country: "Hungary", Lat: 47.4979, Lon: 19.0402},
	{Name: "Amsterdam", Country: "Netherlands", Lat: 52.3676, Lon: 4.9041},
	{Name: "Helsinki", Country: "Finland", Lat: 60.1699, Lon: 24.9384},
	{Name: "Milan", Country: "Italy", Lat: 45.4642, Lon: 9.1900},
	{Name: "Copenhagen", Country: "Denmark", Lat: 55.6761, Lon: 12.5683},
	{Name: "Oslo", Country: "Norway", Lat: 59.9139, Lon: 10.7522},
	{Name: "Reykjavik", Country: "Iceland", Lat: 64.1466, Lon: -21.9426},

	// North America
	{Name: "New York", State: "New York", Country: "United States", Lat: 40.7128, Lon: -74.0060, Aliases: []string{"new york city", "nyc"}},
	{Name: "Los Angeles", State: "California", Country: "United States", Lat: 34.0522, Lon: -118.2437, Aliases: []string{"la"}},
	{Name: "Chicago", State: "Illinois", Country: "United States", Lat: 41.8781, Lon: -87.6298},
	{Name: "Toronto", State: "Ontario", Country: "Canada", Lat: 43.6532, Lon: -79.3832},
	{Name: "Montreal", State: "Quebec", Country: "Canada", Lat: 45.5017, Lon: -73.5673, Aliases: []string{"montréal"}},
	{Name: "Vancouver", State: "British Columbia", Country: "Canada", Lat: 49.2827, Lon: -123.1207},
	{Name: "Miami", State: "Florida", Country: "United States", Lat: 25.7617, Lon: -80.1918},
	{Name: "Dallas", State: "Texas", Country: "United States", Lat: 32.7767, Lon: -96.7970},
	{Name: "Houston", State: "Texas", Country: "United States", Lat: 29.7604, Lon: -95.3698},
	{Name: "Mexico City", Country: "Mexico", Lat: 19.4326, Lon: -99.1332, Aliases: []string{"mexico df", "ciudad de mexico"}},

	// South America
	{Name: "São Paulo", Country: "Brazil", Lat: -23.5505, Lon: -46.6333, Aliases: []string{"sao paulo"}},
	{Name: "Rio de Janeiro", Country: "Brazil", Lat: -22.9068, Lon: -43.1729, Aliases: []string{"rio"}},
	{Name: "Buenos Aires", Country: "Argentina", Lat: -34.6118, Lon: -58.3960},
	{Name: "Santiago", Country: "Chile", Lat: -33.4489, Lon: -70.6693},
	{Name: "Bogotá", Country: "Colombia", Lat: 4.7110, Lon: -74.0721, Aliases: []string{"bogota"}},
	{Name: "Lima", Country: "Peru", Lat: -12.0464, Lon: -77.0428},

	// Asia
	{Name: "Tokyo", Country: "Japan", Lat: 35.6762, Lon: 139.6503},
	{Name: "Beijing", Country: "China", Lat: 39.9042, Lon: 116.4074, Aliases: []string{"peking"}},
	{Name: "Shanghai", Country: "China", Lat: 31.2304, Lon: 121.4737},
	{Name: "New Delhi", Country: "India", Lat: 28.6139, Lon: 77.2090, Aliases: []string{"delhi"}},
	{Name: "Mumbai", Country: "India", Lat: 19.0760, Lon: 72.8777, Aliases: []string{"bombay"}},
	{Name: "Singapore", Country: "Singapore", Lat: 1.3521, Lon: 103.8198},
	{Name: "Seoul", Country: "South Korea", Lat: 37.5665, Lon: 126.9780},
	{Name: "Dubai", Country: "United Arab Emirates", Lat: 25.2048, Lon: 55.2708},
	{Name: "Tehran", Country: "Iran", Lat: 35.6892, Lon: 51.3890},
	{Name: "Islamabad", Country: "Pakistan", Lat: 33.6844, Lon: 73.0479},
	{Name: "Dhaka", Country: "Bangladesh", Lat: 23.8103, Lon: 90.4125},
	{Name: "Manila", Country: "Philippines", Lat: 14.5995, Lon: 120.9842},
	{Name: "Bangkok", Country: "Thailand", Lat: 13.7563, Lon: 100.5018},
	{Name: "Hanoi", Country: "Vietnam", Lat: 21.0285, Lon: 105.8542},
	{Name: "Ho Chi Minh City", Country: "Vietnam", Lat: 10.8231, Lon: 106.6297, Aliases: []string{"saigon"}},
	{Name: "Jakarta", Country: "Indonesia", Lat: -6.2088, Lon: 106.8456},
	{Name: "Kuala Lumpur", Country: "Malaysia", Lat: 3.1390, Lon: 101.6869},
	{Name: "Hong Kong", Country: "Hong Kong", Lat: 22.3193, Lon: 114.1694},
	{Name: "Taipei", Country: "Taiwan", Lat: 25.0330, Lon: 121.5654},

	// Africa
	{Name: "Cairo", Country: "Egypt", Lat: 30.0444, Lon: 31.2357},
	{Name: "Johannesburg", Country: "South Africa", Lat: -26.2041, Lon: 28.0473},
	{Name: "Cape Town", Country: "South Africa", Lat: -33.9249, Lon: 18.4241},
	{Name: "Lagos", Country: "Nigeria", Lat: 6.5244, Lon: 3.3792},
	{Name: "Abuja", Country: "Nigeria", Lat: 9.0579, Lon: 7.4951},
	{Name: "Nairobi", Country: "Kenya", Lat: -1.2921, Lon: 36.8219},
	{Name: "Tunis", Country: "Tunisia", Lat: 36.8065, Lon: 10.1815},
	{Name: "Durban", Country: "South Africa", Lat: -29.8587, Lon: 31.0218},

	// Oceania
	{Name: "Sydney", Country: "Australia", Lat: -33.8688, Lon: 151.2093},
	{Name: "Melbourne", Country: "Australia", Lat: -37.8136, Lon: 144.9631},
	{Name: "Brisbane", Country: "Australia", Lat: -27.4698, Lon: 153.0251},
	{Name: "Perth", Country: "Australia", Lat: -31.9505, Lon: 115.8605},
	{Name: "Auckland", Country: "New Zealand", Lat: -36.8485, Lon: 174.7633},
	{Name: "Wellington", Country: "New Zealand", Lat: -41.2865, Lon: 174.7762},
}

// northAmericaLocations adds cities, state/province centroids, and country
// centroids that resolve by name but are not used for urban classification.
var northAmericaLocations = []Entry{
	{Name: "Phoenix", State: "Arizona", Country: "United States", Lat: 33.4484, Lon: -112.0740},
	{Name: "Philadelphia", State: "Pennsylvania", Country: "United States", Lat: 39.9526, Lon: -75.1652},
	{Name: "San Antonio", State: "Texas", Country: "United States", Lat: 29.4241, Lon: -98.4936},
	{Name: "San Diego", State: "California", Country: "United States", Lat: 32.7157, Lon: -117.1611},
	{Name: "San Jose", State: "California", Country: "United States", Lat: 37.3382, Lon: -121.8863},
	{Name: "Austin", State: "Texas", Country: "United States", Lat: 30.2672, Lon: -97.7431},
	{Name: "Atlanta", State: "Georgia", Country: "United States", Lat: 33.7490, Lon: -84.3880},
	{Name: "Boston", State: "Massachusetts", Country: "United States", Lat: 42.3601, Lon: -71.0589},
	{Name: "Seattle", State: "Washington", Country: "United States", Lat: 47.6062, Lon: -122.3321},
	{Name: "Denver", State: "Colorado", Country: "United States", Lat: 39.7392, Lon: -104.9903},
	{Name: "Las Vegas", State: "Nevada", Country: "United States", Lat: 36.1699, Lon: -115.1398},
	{Name: "Detroit", State: "Michigan", Country: "United States", Lat: 42.3314, Lon: -83.0458},
	{Name: "Calgary", State: "Alberta", Country: "Canada", Lat: 51.0447, Lon: -114.0719},
	{Name: "Edmonton", State: "Alberta", Country: "Canada", Lat: 53.5461, Lon: -113.4938},
	{Name: "Ottawa", State: "Ontario", Country: "Canada", Lat: 45.4215, Lon: -75.6972},
	{Name: "Winnipeg", State: "Manitoba", Country: "Canada", Lat: 49.8951, Lon: -97.1384},
	{Name: "Quebec City", State: "Quebec", Country: "Canada", Lat: 46.8139, Lon: -71.2080},

	// State/province centroids resolve by administrative name.
	{Name: "California", State: "California", Country: "United States", Lat: 36.7783, Lon: -119.4179, Area: true},
	{Name: "Texas", State: "Texas", Country: "United States", Lat: 31.9686, Lon: -99.9018, Area: true},
	{Name: "Florida", State: "Florida", Country: "United States", Lat: 27.7663, Lon: -81.6868, Area: true},
	{Name: "New York State", State: "New York", Country: "United States", Lat: 43.2994, Lon: -74.2179, Area: true},
	{Name: "Ontario", State: "Ontario", Country: "Canada", Lat: 50.0000, Lon: -85.0000, Area: true},
	{Name: "Quebec", State: "Quebec", Country: "Canada", Lat: 53.0000, Lon: -70.0000, Area: true},
	{Name: "British Columbia", State: "British Columbia", Country: "Canada", Lat: 55.0000, Lon: -125.0000, Area: true},
	{Name: "Alberta", State: "Alberta", Country: "Canada", Lat: 55.0000, Lon: -115.0000, Area: true},

	// Country centroids.
	{Name: "United States", Country: "United States", Lat: 45.0000, Lon: -100.0000, Aliases: []string{"usa", "us"}, Area: true},
	{Name: "Canada", Country: "Canada", Lat: 56.0000, Lon: -106.0000, Area: true},
}

// Gazetteer is a preloaded in-memory index over the static location tables.
// Lookup is O(1) by normalized name; Nearest scans the full table.
type Gazetteer struct {
	entries []Entry
	byName  map[string]int // normalized name/alias → index into entries
	metros  int            // entries[:metros] are the urban-classification metros
}

// New builds the gazetteer from the static tables.
func New() *Gazetteer {
	g := &Gazetteer{byName: make(map[string]int)}
	add := func(e Entry) {
		idx := len(g.entries)
		g.entries = append(g.entries, e)
		key := normalize(e.Name)
		if _, dup := g.byName[key]; !dup {
			g.byName[key] = idx
		}
		for _, a := range e.Aliases {
			a = normalize(a)
			if _, dup := g.byName[a]; !dup {
				g.byName[a] = idx
			}
		}
	}
	for _, e := range worldCities {
		add(e)
	}
	g.metros = len(g.entries)
	for _, e := range northAmericaLocations {
		add(e)
	}
	return g
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Lookup resolves a city/state/province/country name or alias,
// case-insensitively. Returns false when the name is unknown; the gazetteer
// has no other failure mode.
func (g *Gazetteer) Lookup(nameOrQuery string) (models.ResolvedPlace, bool) {
	idx, ok := g.byName[normalize(nameOrQuery)]
	if !ok {
		return models.ResolvedPlace{}, false
	}
	e := g.entries[idx]
	display := e.Name + ", " + e.Country
	zone := "urban"
	if e.Area {
		zone = "rural"
	}
	place := models.ResolvedPlace{
		DisplayName: display,
		Coordinate:  e.Coordinate(),
		Region:      ClassifyRegion(e.Lat, e.Lon),
		ZoneType:    zone,
		Country:     e.Country,
	}
	if city, dist, ok := g.ClosestMajorCity(e.Lat, e.Lon, 200); ok {
		place.ClosestCity = &models.MajorCity{Name: city.Name, Country: city.Country, DistanceKM: round1(dist)}
	}
	return place, true
}

// Nearest returns the gazetteer entry closest to the coordinate and its
// great-circle distance in kilometres. Ties break to the first-inserted entry.
func (g *Gazetteer) Nearest(lat, lon float64) (Entry, float64) {
	best := 0
	bestDist := math.Inf(1)
	for i, e := range g.entries {
		d := Haversine(lat, lon, e.Lat, e.Lon)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return g.entries[best], bestDist
}

// ClosestMajorCity returns the nearest metro within maxKM, or ok=false when
// no metro is that close. Only the world-metro table participates; centroid
// entries are excluded so a state centre is never reported as a "city".
func (g *Gazetteer) ClosestMajorCity(lat, lon, maxKM float64) (Entry, float64, bool) {
	bestDist := math.Inf(1)
	best := -1
	for i := 0; i < g.metros; i++ {
		e := g.entries[i]
		d := Haversine(lat, lon, e.Lat, e.Lon)
		if d <= maxKM && d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best < 0 {
		return Entry{}, 0, false
	}
	return g.entries[best], bestDist, true
}

// IsUrban reports whether the coordinate lies within urbanRadiusKM of a major metro.
func (g *Gazetteer) IsUrban(lat, lon, urbanRadiusKM float64) bool {
	_, _, ok := g.ClosestMajorCity(lat, lon, urbanRadiusKM)
	return ok
}

// Entries returns the full table, metros first. Callers must not mutate it.
func (g *Gazetteer) Entries() []Entry {
	return g.entries
}

const earthRadiusKM = 6371.0

// Haversine returns the great-circle distance in kilometres between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
