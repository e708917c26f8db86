package geo

import "math"

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two coordinates
// in kilometers, using the haversine formula.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// RoundKm rounds a distance to one decimal place for display.
func RoundKm(km float64) float64 {
	return math.Round(km*10) / 10
}

// ValidLatitude reports whether lat is a valid latitude.
func ValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// ValidLongitude reports whether lng is a valid longitude.
func ValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
