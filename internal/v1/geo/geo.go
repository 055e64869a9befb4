// Package geo holds the coordinate math and the location catalog rounds are
// drawn from.
package geo

import "math"

// EarthRadiusMeters is the mean earth radius used for distance calculations.
const EarthRadiusMeters = 6371000.0

// MaxScore is the score for a perfect guess.
const MaxScore = 5000

// LatLng is a WGS84 coordinate pair in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the haversine great-circle distance between a and b in
// meters.
func Distance(a, b LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Score converts a guess into round points. Scores decay exponentially with
// distance from the target, from MaxScore at zero down toward zero.
func Score(guess, target LatLng) uint64 {
	distance := Distance(guess, target)
	score := math.Floor(float64(MaxScore) * math.Pow(1.65, -distance*1e-6))
	if score > MaxScore {
		return MaxScore
	}
	return uint64(score)
}
