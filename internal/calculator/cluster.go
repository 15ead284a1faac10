package calculator

import (
	"math"

	"github.com/desaga/py-support-resistance-finder/internal/model"
)

// ValidateRelativeDistance rejects NaN and values outside [0, 1].
func ValidateRelativeDistance(d float64) error {
	if math.IsNaN(d) || d < 0 || d > 1 {
		return &ConfigError{Field: "relative_distance", Value: d, Reason: "must be within [0, 1]"}
	}
	return nil
}

// ClusterLevels collapses near-duplicate levels in a single greedy pass.
//
// The first value is always kept. A later value v is kept only when its
// distance to the nearest kept value exceeds relativeDistance*v. The threshold
// scales with the candidate, not the kept value, so feeding the same values in
// another order may keep a different subset. Output preserves input order.
// relativeDistance <= 0 keeps every value, exact duplicates included.
func ClusterLevels(values []float64, relativeDistance float64) []float64 {
	kept := make([]float64, 0, len(values))
	if relativeDistance <= 0 {
		return append(kept, values...)
	}
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if d, ok := nearestDistance(sorted, v); ok && !(d > relativeDistance*v) {
			continue
		}
		kept = append(kept, v)
		sorted = insertSorted(sorted, v)
	}
	return kept
}

// ClusterList applies ClusterLevels and tags the result.
func ClusterList(kind model.LevelKind, values []float64, relativeDistance float64) model.LevelList {
	return model.LevelList{Kind: kind, Values: ClusterLevels(values, relativeDistance)}
}
