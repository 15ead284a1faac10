package collector

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/desaga/py-support-resistance-finder/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	// Closes, when set, become the bars' closing prices on consecutive days.
	Closes []float64
	Bars   []model.OHLCV
	Err    error

	calls atomic.Int64
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchHistory(_ context.Context, symbol string, period model.Period) (model.PriceSeries, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return model.PriceSeries{}, m.Err
	}
	bars := m.Bars
	if bars == nil {
		bars = barsFromCloses(m.Closes)
	}
	return model.PriceSeries{
		Symbol:    symbol,
		Period:    period,
		Bars:      bars,
		FetchedAt: time.Now(),
	}, nil
}

// Calls reports how many times FetchHistory ran.
func (m *MockFetcher) Calls() int { return int(m.calls.Load()) }

func barsFromCloses(closes []float64) []model.OHLCV {
	start := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{
			Time:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000000,
		}
	}
	return bars
}
