package scoring

import "math"

// Normalize clamps value into [min, max] and rescales it linearly to [0, 1].
// A degenerate domain (min == max) yields the neutral 0.5.
func Normalize(value, min, max float64) float64 {
	if max == min {
		return 0.5
	}
	value = clamp(value, min, max)
	return (value - min) / (max - min)
}

func normalizeIn(value float64, r Range) float64 {
	return Normalize(value, r.Min, r.Max)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func distance(ax, ay, bx, by float64) float64 {
	dx := ax - bx
	dy := ay - by
	return math.Sqrt(dx*dx + dy*dy)
}
