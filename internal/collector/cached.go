package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/desaga/py-support-resistance-finder/internal/cache"
	"github.com/desaga/py-support-resistance-finder/internal/model"
)

// CachedFetcher serves repeated history requests from a byte cache. Cache
// failures are logged and fall through to the wrapped fetcher.
type CachedFetcher struct {
	inner Fetcher
	cache cache.BytesCache
	ttl   time.Duration
}

// NewCachedFetcher wraps inner with c. Entries live for ttl.
func NewCachedFetcher(inner Fetcher, c cache.BytesCache, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{inner: inner, cache: c, ttl: ttl}
}

func (f *CachedFetcher) Name() string { return f.inner.Name() }

type cachedSeries struct {
	Bars      []model.OHLCV `json:"bars"`
	FetchedAt time.Time     `json:"fetched_at"`
}

func historyKey(source, symbol string, period model.Period) string {
	return fmt.Sprintf("history:%s:%s:%s", source, symbol, period)
}

func (f *CachedFetcher) FetchHistory(ctx context.Context, symbol string, period model.Period) (model.PriceSeries, error) {
	key := historyKey(f.inner.Name(), symbol, period)

	data, ok, err := f.cache.GetBytes(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	if ok {
		var cs cachedSeries
		if err := json.Unmarshal(data, &cs); err == nil {
			log.Debug().Str("key", key).Msg("history cache hit")
			return model.PriceSeries{Symbol: symbol, Period: period, Bars: cs.Bars, FetchedAt: cs.FetchedAt}, nil
		}
		log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	series, err := f.inner.FetchHistory(ctx, symbol, period)
	if err != nil {
		return series, err
	}

	data, err = json.Marshal(cachedSeries{Bars: series.Bars, FetchedAt: series.FetchedAt})
	if err != nil {
		return series, nil
	}
	if err := f.cache.SetBytes(ctx, key, data, f.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return series, nil
}
