// Package geo holds the great-circle math used by the check-in geofence.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by DistanceMeters.
const EarthRadiusMeters = 6371000.0

// DistanceMeters returns the haversine distance in meters between two
// latitude/longitude pairs given in degrees.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if a > 1 {
		a = 1
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Within reports whether the two points are at most radius meters apart and
// returns the computed distance.
func Within(lat1, lon1, lat2, lon2, radius float64) (float64, bool) {
	d := DistanceMeters(lat1, lon1, lat2, lon2)
	return d, d <= radius
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
