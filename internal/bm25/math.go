package bm25

import "math"

func logSafe(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Log(x)
}
