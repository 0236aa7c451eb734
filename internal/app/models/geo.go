package models

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether the point is the unset zero value. Null Island is
// ocean, so treating it as unset is safe here.
func (p GeoPoint) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

// Place is a geocoded location returned by the geocoding provider.
type Place struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Country     string   `json:"country,omitempty"`
	City        string   `json:"city,omitempty"`
	Location    GeoPoint `json:"location"`
	Category    string   `json:"category,omitempty"`
	Importance  float64  `json:"importance,omitempty"`
}

// RouteLeg is one segment of a computed route between two waypoints.
type RouteLeg struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	Summary         string  `json:"summary,omitempty"`
}

// Route is a computed route across an ordered list of waypoints.
type Route struct {
	Profile         string     `json:"profile"`
	DistanceMeters  float64    `json:"distance_meters"`
	DurationSeconds float64    `json:"duration_seconds"`
	Legs            []RouteLeg `json:"legs,omitempty"`
	Waypoints       []GeoPoint `json:"waypoints,omitempty"`
}
