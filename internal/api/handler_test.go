package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desaga/py-support-resistance-finder/internal/collector"
	"github.com/desaga/py-support-resistance-finder/internal/metrics"
	"github.com/desaga/py-support-resistance-finder/internal/model"
	"github.com/desaga/py-support-resistance-finder/internal/recorder"
)

var testDefaults = model.AnalysisConfig{Period: model.Period1Y, Window: 2, RelativeDistance: 0.01}

func newTestServer(t *testing.T, f collector.Fetcher) (http.Handler, recorder.Recorder) {
	t.Helper()
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	m := metrics.New()
	h := NewHandler(collector.NewCollector(f, m), rec, nil, testDefaults)
	return NewServer(h, m, ":0", 0).Handler(), rec
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

type levelsBody struct {
	Status int `json:"status"`
	Data   struct {
		Config model.AnalysisConfig `json:"config"`
		Levels model.Levels         `json:"levels"`
		Bars   int                  `json:"bars"`
	} `json:"data"`
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t, &collector.MockFetcher{})
	w := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestLevels_UsesDefaultsAndRecords(t *testing.T) {
	h, rec := newTestServer(t, &collector.MockFetcher{Closes: []float64{3, 1, 4, 1, 5, 9, 2, 6}})

	w := get(t, h, "/api/v1/levels?symbol=aapl")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body levelsBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body.Data.Config.Symbol)
	assert.Equal(t, model.Period1Y, body.Data.Config.Period)
	assert.Equal(t, 2, body.Data.Config.Window)
	assert.Equal(t, []float64{1, 2}, body.Data.Levels.Support.Values)
	assert.Equal(t, []float64{9}, body.Data.Levels.Resistance.Values)
	assert.Equal(t, 8, body.Data.Bars)

	runs, err := rec.RecentRuns(t.Context(), "AAPL", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "api", runs[0].Trigger)
}

func TestLevels_ZeroDistanceKeepsEveryExtremum(t *testing.T) {
	h, _ := newTestServer(t, &collector.MockFetcher{Closes: []float64{5, 5, 5, 5, 5, 5, 5}})

	w := get(t, h, "/api/v1/levels?symbol=X&window=1&distance=0")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body levelsBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []float64{5, 5, 5, 5}, body.Data.Levels.Support.Values)
}

func TestLevels_BadRequests(t *testing.T) {
	h, _ := newTestServer(t, &collector.MockFetcher{Closes: []float64{1, 2, 3}})
	for _, target := range []string{
		"/api/v1/levels",
		"/api/v1/levels?symbol=X&window=0",
		"/api/v1/levels?symbol=X&window=abc",
		"/api/v1/levels?symbol=X&distance=1.5",
		"/api/v1/levels?symbol=X&distance=-0.1",
		"/api/v1/levels?symbol=X&period=3w",
	} {
		t.Run(target, func(t *testing.T) {
			w := get(t, h, target)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestLevels_FetchErrorIsBadGateway(t *testing.T) {
	h, _ := newTestServer(t, &collector.MockFetcher{Err: errors.New("yahoo down")})
	w := get(t, h, "/api/v1/levels?symbol=X")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "yahoo down")
}

func TestChart(t *testing.T) {
	h, _ := newTestServer(t, &collector.MockFetcher{Closes: []float64{3, 1, 4, 1, 5, 9, 2, 6}})
	w := get(t, h, "/api/v1/chart?symbol=MSFT&period=6mo")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Resistance 9.00")
}

func TestHistory(t *testing.T) {
	h, _ := newTestServer(t, &collector.MockFetcher{Closes: []float64{3, 1, 4, 1, 5, 9, 2, 6}})
	get(t, h, "/api/v1/levels?symbol=AAPL")
	get(t, h, "/api/v1/levels?symbol=MSFT")
	get(t, h, "/api/v1/levels?symbol=AAPL&window=3")

	w := get(t, h, "/api/v1/history?symbol=aapl")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Rows  []recorder.RunSnapshot `json:"rows"`
			Total int                    `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.Total)
	assert.Equal(t, 3, body.Data.Rows[0].Window)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/history?limit=1000").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, &collector.MockFetcher{Closes: []float64{1, 2, 1}})
	get(t, h, "/api/v1/levels?symbol=AAPL&window=1")

	w := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `levels_runs_total{outcome="ok",symbol="AAPL"} 1`)
}
