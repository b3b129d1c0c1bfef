package geo

// regionBox is a lat/lon bounding box mapped to a macro-region name.
// Boxes are evaluated in order; the first hit wins, so more specific regions
// come before the broad ones they overlap.
type regionBox struct {
	name                   string
	latMin, latMax         float64
	lonMin, lonMax         float64
	country                string // representative country when no better guess exists
}

var regionBoxes = []regionBox{
	{"Western Europe", 35, 60, -10, 20, "France"},
	{"Eastern Europe", 45, 70, 20, 60, "Russia"},
	{"North America", 25, 70, -170, -50, "United States"},
	{"Central America", 5, 25, -120, -60, "Mexico"},
	{"South America", -60, 5, -90, -30, "Brazil"},
	{"East Asia", 20, 50, 100, 150, "China"},
	{"South Asia", 5, 35, 60, 100, "India"},
	{"Southeast Asia", -10, 25, 90, 140, "Indonesia"},
	{"Middle East", 15, 40, 25, 65, "Saudi Arabia"},
	{"North Africa", 15, 35, -20, 40, "Egypt"},
	{"Sub-Saharan Africa", -35, 15, -20, 50, "Nigeria"},
	{"Oceania", -50, -10, 110, 180, "Australia"},
	{"Arctic", 66, 90, -180, 180, ""},
	{"Antarctic", -90, -60, -180, 180, ""},
}

// ClassifyRegion maps a coordinate to a macro-region name. Every coordinate
// classifies: anything outside the named boxes falls back to a latitude band.
func ClassifyRegion(lat, lon float64) string {
	for _, b := range regionBoxes {
		if lat >= b.latMin && lat <= b.latMax && lon >= b.lonMin && lon <= b.lonMax {
			return b.name
		}
	}
	switch {
	case lat > 60:
		return "Arctic"
	case lat < -60:
		return "Antarctic"
	case lat > -23.5 && lat < 23.5:
		return "Tropical"
	case lat >= 23.5 && lat < 35, lat <= -23.5 && lat > -35:
		return "Subtropical"
	default:
		return "Temperate"
	}
}

// EstimateCountry guesses a country for a coordinate from the region table.
// Returns empty for polar and open-ocean latitude bands.
func EstimateCountry(lat, lon float64) string {
	for _, b := range regionBoxes {
		if lat >= b.latMin && lat <= b.latMax && lon >= b.lonMin && lon <= b.lonMax {
			return b.country
		}
	}
	return ""
}

// pollutionBox maps heavy-emission belts to a baseline multiplier applied by
// the synthetic estimators. Evaluated in order, first hit wins.
type pollutionBox struct {
	latMin, latMax float64
	lonMin, lonMax float64
	factor         float64
}

var pollutionBoxes = []pollutionBox{
	{20, 40, 100, 140, 2.0},   // East and South Asia industrial belt
	{25, 35, 45, 65, 1.5},     // Middle East
	{30, 50, -10, 30, 1.2},    // industrial Europe
	{25, 50, -125, -65, 1.1},  // northeastern North America
}

// PollutionFactor returns the regional baseline multiplier for synthetic
// estimates. Clean-background regions get 0.8.
func PollutionFactor(lat, lon float64) float64 {
	for _, b := range pollutionBoxes {
		if lat >= b.latMin && lat <= b.latMax && lon >= b.lonMin && lon <= b.lonMax {
			return b.factor
		}
	}
	return 0.8
}
