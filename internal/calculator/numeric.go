package calculator

import (
	"math"
	"sort"
)

type number interface {
	~int | ~float64
}

func absDiff[T number](a, b T) T {
	if a > b {
		return a - b
	}
	return b - a
}

// nearestDistance returns the smallest |v-k| over an ascending slice.
// ok is false when sorted is empty.
func nearestDistance(sorted []float64, v float64) (d float64, ok bool) {
	if len(sorted) == 0 {
		return 0, false
	}
	i := sort.SearchFloat64s(sorted, v)
	d = math.Inf(1)
	if i < len(sorted) {
		d = absDiff(sorted[i], v)
	}
	if i > 0 {
		d = math.Min(d, absDiff(sorted[i-1], v))
	}
	return d, true
}

// insertSorted inserts v keeping sorted ascending.
func insertSorted(sorted []float64, v float64) []float64 {
	i := sort.SearchFloat64s(sorted, v)
	sorted = append(sorted, 0)
	copy(sorted[i+1:], sorted[i:])
	sorted[i] = v
	return sorted
}

func valuesAt(series []float64, indices []int) []float64 {
	out := make([]float64, len(indices))
	for i, idx := range indices {
		out[i] = series[idx]
	}
	return out
}
