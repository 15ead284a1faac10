package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desaga/py-support-resistance-finder/internal/chart"
	"github.com/desaga/py-support-resistance-finder/internal/collector"
	"github.com/desaga/py-support-resistance-finder/internal/model"
	"github.com/desaga/py-support-resistance-finder/internal/recorder"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (c *captureNotifier) Send(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

type memRecorder struct {
	recorder.NoopRecorder
	mu   sync.Mutex
	runs []*recorder.RunSnapshot
}

func (m *memRecorder) RecordRun(s *recorder.RunSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, s)
	return nil
}

// symbolFetcher fails for symbols in fail and serves closes otherwise.
type symbolFetcher struct {
	closes []float64
	fail   map[string]bool
}

func (f *symbolFetcher) Name() string { return "test" }

func (f *symbolFetcher) FetchHistory(ctx context.Context, symbol string, period model.Period) (model.PriceSeries, error) {
	if f.fail[symbol] {
		return model.PriceSeries{}, errors.New("no such symbol")
	}
	m := &collector.MockFetcher{Closes: f.closes}
	return m.FetchHistory(ctx, symbol, period)
}

var defaults = model.AnalysisConfig{Period: model.Period1Y, Window: 2, RelativeDistance: 0.01}

func watch(symbols ...string) []model.AnalysisConfig {
	out := make([]model.AnalysisConfig, len(symbols))
	for i, s := range symbols {
		out[i] = defaults
		out[i].Symbol = s
	}
	return out
}

func newTestScheduler(t *testing.T, f collector.Fetcher, opts Options) (*Scheduler, *captureNotifier, *memRecorder) {
	t.Helper()
	n := &captureNotifier{}
	rec := &memRecorder{}
	s := NewScheduler(context.Background(), collector.NewCollector(f, nil), n, rec, opts)
	return s, n, rec
}

func TestRunNow_RefreshesWatchlist(t *testing.T) {
	dir := t.TempDir()
	f := &symbolFetcher{closes: []float64{3, 1, 4, 1, 5, 9, 2, 6}, fail: map[string]bool{"BAD": true}}
	s, n, rec := newTestScheduler(t, f, Options{
		Watchlist:   watch("AAPL", "BAD", "MSFT"),
		Concurrency: 2,
		Charts:      chart.NewRenderer(chart.DefaultOptions()),
		ChartDir:    dir,
	})

	res := s.RunNow(context.Background())

	require.Len(t, res.Analyses, 2)
	assert.Equal(t, "AAPL", res.Analyses[0].Config.Symbol)
	assert.Equal(t, "MSFT", res.Analyses[1].Config.Symbol)
	assert.Equal(t, []float64{9}, res.Analyses[0].Levels.Resistance.Values)
	require.Contains(t, res.Failed, "BAD")

	assert.Len(t, rec.runs, 2)
	for _, r := range rec.runs {
		assert.Equal(t, "schedule", r.Trigger)
	}

	_, err := os.Stat(filepath.Join(dir, "aapl_1y_levels.html"))
	assert.NoError(t, err)

	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "<b>AAPL</b>")
	assert.Contains(t, n.sent[0], "BAD: fetch history: no such symbol")
}

func TestHandleCommand_Levels(t *testing.T) {
	f := &symbolFetcher{closes: []float64{3, 1, 4, 1, 5, 9, 2, 6}}
	s, _, rec := newTestScheduler(t, f, Options{Defaults: defaults})

	reply := s.HandleCommand(context.Background(), "/levels nvda 6MO")
	assert.Contains(t, reply, "<b>NVDA</b> levels | 6mo")
	require.Len(t, rec.runs, 1)
	assert.Equal(t, "telegram", rec.runs[0].Trigger)
	assert.Equal(t, model.Period6M, rec.runs[0].Period)
}

func TestHandleCommand_Errors(t *testing.T) {
	f := &symbolFetcher{fail: map[string]bool{"BAD": true}}
	s, _, _ := newTestScheduler(t, f, Options{Defaults: defaults})

	assert.Contains(t, s.HandleCommand(context.Background(), "/levels"), "Usage")
	assert.Contains(t, s.HandleCommand(context.Background(), "/levels AAPL 3w"), "unknown period")
	assert.Contains(t, s.HandleCommand(context.Background(), "/levels BAD"), "no such symbol")
}

func TestHandleCommand_ErrorRepliesAreHTMLEscaped(t *testing.T) {
	f := &symbolFetcher{fail: map[string]bool{"<B>": true}}
	s, _, _ := newTestScheduler(t, f, Options{Defaults: defaults})

	reply := s.HandleCommand(context.Background(), "/levels AAPL <x>")
	assert.Contains(t, reply, "unknown period")
	assert.Contains(t, reply, "&lt;x&gt;")
	assert.NotContains(t, reply, "<x>")

	reply = s.HandleCommand(context.Background(), "/levels <b>")
	assert.Contains(t, reply, "&lt;B&gt;: ")
	assert.NotContains(t, reply, "<B>")
}

func TestHandleCommand_ConfigErrorIsReported(t *testing.T) {
	f := &symbolFetcher{closes: []float64{1, 2, 3}}
	bad := defaults
	bad.Window = 0
	s, _, _ := newTestScheduler(t, f, Options{Defaults: bad})

	assert.Contains(t, s.HandleCommand(context.Background(), "/levels AAPL"), "window")
}

func TestHandleCommand_WatchlistAndHelp(t *testing.T) {
	s, _, _ := newTestScheduler(t, &symbolFetcher{}, Options{Watchlist: watch("SPY")})

	assert.Contains(t, s.HandleCommand(context.Background(), "/watchlist"), "SPY 1y")
	assert.Contains(t, s.HandleCommand(context.Background(), "/help"), "/levels")
	assert.Contains(t, s.HandleCommand(context.Background(), "hello"), "/levels")
}

func TestRegisterAll_RejectsBadCronExpression(t *testing.T) {
	s, _, _ := newTestScheduler(t, &symbolFetcher{}, Options{})
	assert.Error(t, s.RegisterAll("not a cron"))
	assert.NoError(t, s.RegisterAll("0 30 22 * * 1-5"))
}
