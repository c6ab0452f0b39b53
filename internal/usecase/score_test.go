package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceToScore(t *testing.T) {
	cases := []struct {
		name        string
		distance    float64
		maxDistance float64
		want        float64
	}{
		{"zero distance", 0, 2.0, 100},
		{"max distance", 2.0, 2.0, 0},
		{"beyond max clamps to zero", 5.0, 2.0, 0},
		{"negative clamps to full", -1.0, 2.0, 100},
		{"midpoint", 1.0, 2.0, 50},
		{"quarter", 0.5, 2.0, 75},
		{"rounded to two decimals", 0.333, 2.0, 83.35},
		{"invalid max distance", 1.0, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, DistanceToScore(tc.distance, tc.maxDistance), 1e-9)
		})
	}
}

func TestDistanceToScoreMonotonic(t *testing.T) {
	prev := 101.0
	for d := 0.0; d <= 2.0; d += 0.1 {
		score := DistanceToScore(d, 2.0)
		assert.LessOrEqual(t, score, prev, "score must not increase with distance")
		prev = score
	}
}
