package calculator

import "github.com/desaga/py-support-resistance-finder/internal/model"

// Params controls level extraction.
type Params struct {
	// Window is the half-width, in bars, of the extremum neighbourhood and the
	// minimum index separation between kept extrema of one kind.
	Window int
	// RelativeDistance is the fraction of a candidate level's own price below
	// which it is merged into an earlier level.
	RelativeDistance float64
}

// ParamsFrom extracts the numeric parameters of an analysis config.
func ParamsFrom(cfg model.AnalysisConfig) Params {
	return Params{Window: cfg.Window, RelativeDistance: cfg.RelativeDistance}
}

// Validate reports the first invalid parameter.
func (p Params) Validate() error {
	if err := ValidateWindow(p.Window); err != nil {
		return err
	}
	return ValidateRelativeDistance(p.RelativeDistance)
}

// Extraction holds the intermediate extremum sets alongside the final levels.
type Extraction struct {
	Minima model.ExtremumSet
	Maxima model.ExtremumSet
	Levels model.Levels
}

// Extract runs extremum detection and level clustering over closes.
// Parameters are validated first; an invalid set yields no partial result.
func Extract(closes []float64, p Params) (Extraction, error) {
	if err := p.Validate(); err != nil {
		return Extraction{}, err
	}
	minima, maxima, err := DetectExtrema(closes, p.Window)
	if err != nil {
		return Extraction{}, err
	}
	return Extraction{
		Minima: minima,
		Maxima: maxima,
		Levels: model.Levels{
			Support:    ClusterList(model.Support, valuesAt(closes, minima.Indices), p.RelativeDistance),
			Resistance: ClusterList(model.Resistance, valuesAt(closes, maxima.Indices), p.RelativeDistance),
		},
	}, nil
}

// ExtractLevels is Extract without the intermediate extremum sets.
func ExtractLevels(closes []float64, p Params) (model.Levels, error) {
	ex, err := Extract(closes, p)
	if err != nil {
		return model.Levels{}, err
	}
	return ex.Levels, nil
}

// ExtractSeries runs Extract over the closing prices of series.
func ExtractSeries(series model.PriceSeries, p Params) (Extraction, error) {
	return Extract(series.Closes(), p)
}
