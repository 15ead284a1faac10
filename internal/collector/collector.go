package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/desaga/py-support-resistance-finder/internal/calculator"
	"github.com/desaga/py-support-resistance-finder/internal/metrics"
	"github.com/desaga/py-support-resistance-finder/internal/model"
)

// Collector orchestrates history fetching and level extraction.
type Collector struct {
	Fetcher Fetcher
	Metrics *metrics.Recorder
}

// NewCollector creates a new Collector. m may be nil.
func NewCollector(fetcher Fetcher, m *metrics.Recorder) *Collector {
	return &Collector{Fetcher: fetcher, Metrics: m}
}

// Analyze fetches the history described by cfg and extracts its support and
// resistance levels. Parameters are validated before anything is fetched.
func (c *Collector) Analyze(ctx context.Context, cfg model.AnalysisConfig) (*model.Analysis, error) {
	params := calculator.ParamsFrom(cfg)
	if err := params.Validate(); err != nil {
		c.Metrics.RecordRun(cfg.Symbol, "config_error")
		return nil, err
	}
	period, err := model.ParsePeriod(string(cfg.Period))
	if err != nil {
		c.Metrics.RecordRun(cfg.Symbol, "config_error")
		return nil, &calculator.ConfigError{Field: "period", Value: cfg.Period, Reason: "is not a known lookback"}
	}
	cfg.Period = period

	logger := log.With().Str("symbol", cfg.Symbol).Str("period", string(period)).Logger()

	start := time.Now()
	series, err := c.Fetcher.FetchHistory(ctx, cfg.Symbol, period)
	c.Metrics.ObserveSince("fetch", start)
	if err != nil {
		c.Metrics.RecordFetchError(c.Fetcher.Name())
		c.Metrics.RecordRun(cfg.Symbol, "fetch_error")
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	c.Metrics.RecordBars(cfg.Symbol, series.Len())
	if series.Len() == 0 {
		logger.Warn().Str("source", c.Fetcher.Name()).Msg("no bars returned")
	}

	start = time.Now()
	ext, err := calculator.ExtractSeries(series, params)
	c.Metrics.ObserveSince("extract", start)
	if err != nil {
		// Only reachable through a programming error: params were validated above.
		c.Metrics.RecordRun(cfg.Symbol, "config_error")
		return nil, err
	}

	c.Metrics.RecordLevels(cfg.Symbol, string(model.Support), ext.Levels.Support.Len())
	c.Metrics.RecordLevels(cfg.Symbol, string(model.Resistance), ext.Levels.Resistance.Len())
	c.Metrics.RecordRun(cfg.Symbol, "ok")

	logger.Info().
		Int("bars", series.Len()).
		Int("window", cfg.Window).
		Float64("distance", cfg.RelativeDistance).
		Int("support", ext.Levels.Support.Len()).
		Int("resistance", ext.Levels.Resistance.Len()).
		Msg("levels extracted")

	return &model.Analysis{
		Config: cfg,
		Series: series,
		Minima: ext.Minima,
		Maxima: ext.Maxima,
		Levels: ext.Levels,
		Source: c.Fetcher.Name(),
		Bars:   series.Len(),
	}, nil
}

// IsConfigError reports whether err stems from invalid analysis parameters.
func IsConfigError(err error) bool {
	return errors.Is(err, calculator.ErrInvalidConfig)
}
