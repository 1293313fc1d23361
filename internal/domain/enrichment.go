package domain

import (
	"math"
	"time"
)

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Near reports whether both axes differ by at most tolerance degrees.
func (c Coordinates) Near(other Coordinates, tolerance float64) bool {
	return math.Abs(c.Lat-other.Lat) <= tolerance && math.Abs(c.Lng-other.Lng) <= tolerance
}

// Conditions is what a weather provider returns for a position.
type Conditions struct {
	AmbientTempC float64 `json:"ambient_temp_c"`
	Condition    string  `json:"condition"`
	WeatherCode  int     `json:"weather_code"`
}

// Enrichment is a cached weather lookup. A new record replaces the old one;
// records are never edited in place.
type Enrichment struct {
	Source    Coordinates `json:"source"`
	Provider  string      `json:"provider"`
	FetchedAt time.Time   `json:"fetched_at"`
	Conditions
}
