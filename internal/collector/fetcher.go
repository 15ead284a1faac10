package collector

import (
	"context"
	"sort"

	"github.com/desaga/py-support-resistance-finder/internal/model"
)

// Fetcher defines the interface for fetching price history.
type Fetcher interface {
	// FetchHistory returns the bars of symbol over the lookback period. An
	// instrument with no data yields an empty series, not an error.
	FetchHistory(ctx context.Context, symbol string, period model.Period) (model.PriceSeries, error)
	Name() string
}

// normalizeBars sorts bars by time and drops duplicate timestamps, keeping
// the later occurrence.
func normalizeBars(bars []model.OHLCV) []model.OHLCV {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
