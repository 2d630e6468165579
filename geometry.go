package server

import "math"

type vec2 struct {
	X float64
	Y float64
}

func distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// normalizeVector scales a vector to unit length, returning zero for zero.
func normalizeVector(v vec2) (float64, float64) {
	length := math.Hypot(v.X, v.Y)
	if length == 0 {
		return 0, 0
	}
	return v.X / length, v.Y / length
}

// clampToZone keeps a point inside the playable bounds.
func clampToZone(x, y float64) (float64, float64) {
	return clamp(x, 0, zoneWidth), clamp(y, 0, zoneHeight)
}
