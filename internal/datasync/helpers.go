package datasync

import (
	"math"

	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Float | constraints.Integer
}

// ToFloat64 widens a raw sample slice for processing.
func ToFloat64[T Number](samples []T) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}
	return out
}

func diff(xs []int) []int {
	if len(xs) < 2 {
		return nil
	}
	ds := make([]int, len(xs)-1)
	for i := range ds {
		ds[i] = xs[i+1] - xs[i]
	}
	return ds
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// round6 keeps implied clock times comparable across platforms by rounding
// away sub-microsecond float noise.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
