package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Period is a lookback token understood by the price-data sources.
type Period string

const (
	Period1D  Period = "1d"
	Period5D  Period = "5d"
	Period1M  Period = "1mo"
	Period3M  Period = "3mo"
	Period6M  Period = "6mo"
	Period1Y  Period = "1y"
	Period2Y  Period = "2y"
	Period5Y  Period = "5y"
	PeriodYTD Period = "ytd"
	PeriodMax Period = "max"
)

// ErrUnknownPeriod is returned by ParsePeriod for tokens outside Periods().
var ErrUnknownPeriod = errors.New("unknown period")

var periods = []Period{Period1D, Period5D, Period1M, Period3M, Period6M, Period1Y, Period2Y, Period5Y, PeriodYTD, PeriodMax}

// Periods lists every supported token in ascending lookback order.
func Periods() []Period {
	out := make([]Period, len(periods))
	copy(out, periods)
	return out
}

// ParsePeriod validates a lookback token. Matching is case-insensitive.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range periods {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
}

// Since returns the start of the lookback window ending at end.
// The zero time is returned for PeriodMax.
func (p Period) Since(end time.Time) time.Time {
	switch p {
	case Period1D:
		return end.AddDate(0, 0, -1)
	case Period5D:
		return end.AddDate(0, 0, -5)
	case Period1M:
		return end.AddDate(0, -1, 0)
	case Period3M:
		return end.AddDate(0, -3, 0)
	case Period6M:
		return end.AddDate(0, -6, 0)
	case Period1Y:
		return end.AddDate(-1, 0, 0)
	case Period2Y:
		return end.AddDate(-2, 0, 0)
	case Period5Y:
		return end.AddDate(-5, 0, 0)
	case PeriodYTD:
		return time.Date(end.Year(), time.January, 1, 0, 0, 0, 0, end.Location())
	default:
		return time.Time{}
	}
}

func (p Period) String() string { return string(p) }
