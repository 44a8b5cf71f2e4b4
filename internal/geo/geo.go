package geo

import "math"

const earthRadiusMeters = 6371000

// Point is an immutable WGS84 coordinate. AccuracyMeters is the device's
// self-reported accuracy and is informational only; it never gates a
// geofence decision.
type Point struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracyMeters,omitempty"`
}

// Distance returns the great-circle distance between two points in meters,
// using the haversine formula.
func Distance(a, b Point) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)

	// Floating point error can nudge h past 1 for near-antipodal points,
	// which would make Sqrt(1-h) NaN.
	if h > 1 {
		h = 1
	}

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// WithinRadius reports whether observed lies within radiusMeters of reference.
func WithinRadius(reference, observed Point, radiusMeters float64) bool {
	return Distance(reference, observed) <= radiusMeters
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
