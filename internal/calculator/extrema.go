package calculator

import "github.com/desaga/py-support-resistance-finder/internal/model"

// ValidateWindow rejects non-positive windows.
func ValidateWindow(window int) error {
	if window <= 0 {
		return &ConfigError{Field: "window", Value: window, Reason: "must be positive"}
	}
	return nil
}

// CandidateMinima returns every index i whose value is <= all values within
// [i-window, i+window], the window clipped to the series bounds. Ties qualify.
func CandidateMinima(series []float64, window int) []int {
	return candidates(series, window, func(v, neighbor float64) bool { return v <= neighbor })
}

// CandidateMaxima is CandidateMinima with >=.
func CandidateMaxima(series []float64, window int) []int {
	return candidates(series, window, func(v, neighbor float64) bool { return v >= neighbor })
}

func candidates(series []float64, window int, holds func(v, neighbor float64) bool) []int {
	out := []int{}
	last := len(series) - 1
	for i, v := range series {
		ok := true
		lo, hi := 0, last
		if i > window {
			lo = i - window
		}
		if window < last-i {
			hi = i + window
		}
		for j := lo; j <= hi; j++ {
			if !holds(v, series[j]) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// SeparateExtrema keeps, in ascending order, each candidate whose distance to
// every already kept candidate is strictly greater than window. The first
// candidate is always kept. Candidates must be ascending.
func SeparateExtrema(candidates []int, window int) []int {
	kept := []int{}
	for _, idx := range candidates {
		// kept ascends, so its last element is the nearest one
		if len(kept) == 0 || absDiff(idx, kept[len(kept)-1]) > window {
			kept = append(kept, idx)
		}
	}
	return kept
}

// DetectExtrema finds separated local minima and maxima of series.
// An empty series yields empty sets.
func DetectExtrema(series []float64, window int) (minima, maxima model.ExtremumSet, err error) {
	if err := ValidateWindow(window); err != nil {
		return model.ExtremumSet{}, model.ExtremumSet{}, err
	}
	minima = model.ExtremumSet{
		Kind:    model.Minimum,
		Indices: SeparateExtrema(CandidateMinima(series, window), window),
	}
	maxima = model.ExtremumSet{
		Kind:    model.Maximum,
		Indices: SeparateExtrema(CandidateMaxima(series, window), window),
	}
	return minima, maxima, nil
}
