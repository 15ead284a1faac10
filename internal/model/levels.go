package model

// ExtremumKind tags an ExtremumSet.
type ExtremumKind string

const (
	Minimum ExtremumKind = "minimum"
	Maximum ExtremumKind = "maximum"
)

// LevelKind tags a LevelList.
type LevelKind string

const (
	Support    LevelKind = "support"
	Resistance LevelKind = "resistance"
)

// ExtremumSet holds ascending, unique indices into a price series.
// No two indices are within the detection window of each other.
type ExtremumSet struct {
	Kind    ExtremumKind `json:"kind"`
	Indices []int        `json:"indices"`
}

// LevelList holds price levels in discovery order (ascending source index).
type LevelList struct {
	Kind   LevelKind `json:"kind"`
	Values []float64 `json:"values"`
}

// Len returns the number of levels.
func (l LevelList) Len() int { return len(l.Values) }

// Levels is the output of level extraction. Both lists are always non-nil.
type Levels struct {
	Support    LevelList `json:"support"`
	Resistance LevelList `json:"resistance"`
}

// AnalysisConfig carries everything one level-extraction run needs.
type AnalysisConfig struct {
	Symbol           string  `json:"symbol"`
	Period           Period  `json:"period"`
	Window           int     `json:"window"`
	RelativeDistance float64 `json:"relative_distance"`
}

// Analysis is the result of running level extraction over a fetched series.
type Analysis struct {
	Config AnalysisConfig `json:"config"`
	Series PriceSeries    `json:"-"`
	Minima ExtremumSet    `json:"minima"`
	Maxima ExtremumSet    `json:"maxima"`
	Levels Levels         `json:"levels"`
	Source string         `json:"source"`
	Bars   int            `json:"bars"`
}
