package usecase

import "math"

// DistanceToScore converts an L2 distance into a relevance score in
// [0, 100]. Zero distance maps to 100, distances at or beyond maxDistance
// map to 0, linear in between. Rounded to two decimals.
func DistanceToScore(distance, maxDistance float64) float64 {
	if maxDistance <= 0 {
		return 0
	}
	d := math.Max(0, math.Min(distance, maxDistance))
	return round2((1 - d/maxDistance) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
