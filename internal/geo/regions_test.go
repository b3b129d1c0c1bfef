package geo

import "testing"

func TestClassifyRegion(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     string
	}{
		{"Paris", 48.8566, 2.3522, "Western Europe"},
		{"Moscow", 55.7558, 37.6176, "Eastern Europe"},
		{"Chicago", 41.8781, -87.6298, "North America"},
		{"Mexico City", 19.4326, -99.1332, "Central America"},
		{"São Paulo", -23.5505, -46.6333, "South America"},
		{"Beijing", 39.9042, 116.4074, "East Asia"},
		{"Mumbai", 19.0760, 72.8777, "South Asia"},
		{"Jakarta", -6.2088, 106.8456, "Southeast Asia"},
		{"Riyadh", 24.7136, 46.6753, "Middle East"},
		{"Tunis", 33.8869, 9.5375, "North Africa"},
		{"Lagos", 6.5244, 3.3792, "Sub-Saharan Africa"},
		{"Sydney", -33.8688, 151.2093, "Oceania"},
		{"Svalbard", 78.0, 16.0, "Arctic"},
		{"Ross Ice Shelf", -80.0, 175.0, "Antarctic"},
		{"mid-Pacific tropics", 5.0, -150.0, "Tropical"},
		{"South Atlantic subtropics", -30.0, -25.0, "Subtropical"},
		{"Southern Ocean temperate", -50.0, 60.0, "Temperate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyRegion(tt.lat, tt.lon); got != tt.want {
				t.Errorf("ClassifyRegion(%.4f, %.4f) = %q, want %q", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestEstimateCountry(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     string
	}{
		{"Western Europe", 48.8566, 2.3522, "France"},
		{"North America", 41.8781, -87.6298, "United States"},
		{"East Asia", 39.9042, 116.4074, "China"},
		{"open ocean", 5.0, -150.0, ""},
		{"deep Antarctic", -80.0, 175.0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateCountry(tt.lat, tt.lon); got != tt.want {
				t.Errorf("EstimateCountry(%.4f, %.4f) = %q, want %q", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestPollutionFactor(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     float64
	}{
		{"East Asia industrial belt", 31.2304, 121.4737, 2.0},
		{"Middle East", 26.0, 50.0, 1.5},
		{"industrial Europe", 48.8566, 2.3522, 1.2},
		{"northeastern North America", 40.7128, -74.0060, 1.1},
		{"clean background", -41.2865, 174.7762, 0.8},
		{"open ocean", 0, -150, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PollutionFactor(tt.lat, tt.lon); got != tt.want {
				t.Errorf("PollutionFactor(%.4f, %.4f) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}
