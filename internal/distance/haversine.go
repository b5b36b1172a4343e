// Package distance computes great-circle proximity between facility
// populations and selects the closest cross-type pairs.
package distance

import "math"

// EarthRadiusKM is the mean Earth radius used for all great-circle math.
const EarthRadiusKM = 6371.0088

// Haversine returns the great-circle distance in kilometers between two
// points, treating the Earth as a sphere of radius EarthRadiusKM.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180

	phi1 := lat1 * degToRad
	phi2 := lat2 * degToRad
	dPhi := (lat2 - lat1) * degToRad
	dLambda := (lon2 - lon1) * degToRad

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda

	return 2 * EarthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
