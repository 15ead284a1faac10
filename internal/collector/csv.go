package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desaga/py-support-resistance-finder/internal/model"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// CSVFetcher reads price history from local CSV files. Path may contain a
// {symbol} placeholder. Only the date and close columns are required.
type CSVFetcher struct {
	Path string
	now  func() time.Time
}

// NewCSVFetcher creates a CSV-backed fetcher.
func NewCSVFetcher(path string) *CSVFetcher {
	return &CSVFetcher{Path: path, now: time.Now}
}

func (f *CSVFetcher) Name() string { return "csv" }

func (f *CSVFetcher) path(symbol string) string {
	return strings.ReplaceAll(f.Path, "{symbol}", symbol)
}

// FetchHistory reads the file for symbol and keeps bars inside the period
// lookback, measured back from the last bar in the file.
func (f *CSVFetcher) FetchHistory(ctx context.Context, symbol string, period model.Period) (model.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return model.PriceSeries{}, err
	}
	file, err := os.Open(f.path(symbol))
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	bars, err := parseCSV(file)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("parse csv %s: %w", f.path(symbol), err)
	}
	bars = normalizeBars(bars)
	if len(bars) > 0 {
		since := period.Since(bars[len(bars)-1].Time)
		start := 0
		for start < len(bars) && bars[start].Time.Before(since) {
			start++
		}
		bars = bars[start:]
	}

	return model.PriceSeries{
		Symbol:    symbol,
		Period:    period,
		Bars:      bars,
		FetchedAt: f.now(),
	}, nil
}

func parseCSV(r io.Reader) ([]model.OHLCV, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []model.OHLCV{}, nil
	}
	if err != nil {
		return nil, err
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	dateCol, ok := cols["date"]
	if !ok {
		return nil, errors.New(`missing "date" column`)
	}
	closeCol, ok := cols["close"]
	if !ok {
		return nil, errors.New(`missing "close" column`)
	}

	bars := []model.OHLCV{}
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if dateCol >= len(rec) || closeCol >= len(rec) {
			return nil, fmt.Errorf("line %d: short record", line)
		}
		ts, err := parseDate(rec[dateCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(rec[closeCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: close: %w", line, err)
		}
		bars = append(bars, model.OHLCV{
			Time:   ts,
			Open:   optional(rec, cols, "open"),
			High:   optional(rec, cols, "high"),
			Low:    optional(rec, cols, "low"),
			Close:  c,
			Volume: optional(rec, cols, "volume"),
		})
	}
	return bars, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// optional returns the named column as a float, or 0 when absent or blank.
func optional(rec []string, cols map[string]int, name string) float64 {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
	if err != nil {
		return 0
	}
	return v
}
