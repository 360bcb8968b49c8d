// Package geo provides great-circle distance math for the geofence engine.
package geo

import "math"

// earthRadiusMeters is the mean Earth radius used by the spherical model.
const earthRadiusMeters = 6371000

// Distance returns the great-circle distance in meters between two
// coordinates using the Haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BoundingBox returns a latitude/longitude box that fully contains the
// circle of the given radius around a point. Used to pre-filter candidate
// points of interest before the exact Haversine check.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, maxLat, minLon, maxLon float64) {
	dLat := radiusMeters / 111320.0
	dLon := dLat
	if cos := math.Cos(toRad(lat)); cos > 1e-6 {
		dLon = dLat / cos
	}
	return lat - dLat, lat + dLat, lon - dLon, lon + dLon
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
