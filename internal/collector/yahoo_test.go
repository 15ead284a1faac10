package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desaga/py-support-resistance-finder/internal/model"
)

const chartBody = `{"chart":{"result":[{
  "timestamp":[1704326400,1704153600,1704240000,1704412800],
  "indicators":{
    "quote":[{"open":[3,1,2,4],"high":[3,1,2,4],"low":[3,1,2,4],"close":[103,101,null,104],"volume":[10,10,10,10]}],
    "adjclose":[{"adjclose":[51.5,50.5,null,52]}]
  }}],"error":null}}`

func newTestYahoo(t *testing.T, h http.HandlerFunc, adjusted bool) *YahooFetcher {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	f := NewYahooFetcher(YahooOptions{
		BaseURL:           srv.URL,
		AdjustedClose:     adjusted,
		RequestsPerSecond: 1000,
		MaxRetryElapsed:   2 * time.Second,
	})
	f.retryInitial = time.Millisecond
	return f
}

func TestYahooFetcher_DecodesSortsAndSkipsNullBars(t *testing.T) {
	var gotPath, gotQuery string
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		fmt.Fprint(w, chartBody)
	}, false)

	series, err := f.FetchHistory(context.Background(), "SPX500", model.Period1Y)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/^GSPC", gotPath)
	assert.Equal(t, "interval=1d&range=1y", gotQuery)
	assert.Equal(t, "SPX500", series.Symbol)
	assert.Equal(t, model.Period1Y, series.Period)
	assert.Equal(t, []float64{101, 103, 104}, series.Closes())
	for i := 1; i < series.Len(); i++ {
		assert.True(t, series.Bars[i-1].Time.Before(series.Bars[i].Time))
	}
}

func TestYahooFetcher_AdjustedClose(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chartBody)
	}, true)

	series, err := f.FetchHistory(context.Background(), "AAPL", model.Period1Y)
	require.NoError(t, err)
	assert.Equal(t, []float64{50.5, 51.5, 52}, series.Closes())
}

func TestYahooFetcher_EmptyResultIsEmptySeries(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[],"indicators":{"quote":[{}]}}],"error":null}}`)
	}, false)

	series, err := f.FetchHistory(context.Background(), "NEW", model.Period1M)
	require.NoError(t, err)
	assert.NotNil(t, series.Bars)
	assert.Equal(t, 0, series.Len())
}

func TestYahooFetcher_APIErrorSurfaces(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	}, false)

	_, err := f.FetchHistory(context.Background(), "ZZZZ", model.Period1Y)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delisted")
}

func TestYahooFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	f := newTestYahoo(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, chartBody)
	}, false)

	series, err := f.FetchHistory(context.Background(), "AAPL", model.Period1Y)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, series.Len())
}

func TestYahooFetcher_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	f := newTestYahoo(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "nope")
	}, false)

	_, err := f.FetchHistory(context.Background(), "AAPL", model.Period1Y)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusNotFound, serr.StatusCode)
}

func TestYahooFetcher_HonoursCancellation(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.FetchHistory(ctx, "AAPL", model.Period1Y)
	assert.Error(t, err)
}
