// Package metrics exposes Prometheus instrumentation for level runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so several instances can coexist in tests.
// Recording methods are no-ops on a nil *Recorder.
type Recorder struct {
	reg         *prometheus.Registry
	runsTotal   *prometheus.CounterVec
	fetchErrors *prometheus.CounterVec
	levelCount  *prometheus.GaugeVec
	barsFetched *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levels_runs_total",
				Help: "Level extraction runs by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		fetchErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levels_fetch_errors_total",
				Help: "Price history fetch failures by source",
			},
			[]string{"source"},
		),
		levelCount: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "levels_count",
				Help: "Number of levels found in the latest run",
			},
			[]string{"symbol", "kind"},
		),
		barsFetched: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "levels_bars",
				Help: "Bars in the latest fetched series",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "levels_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
}

// RecordRun counts a finished run; outcome is "ok", "fetch_error" or "config_error".
func (r *Recorder) RecordRun(symbol, outcome string) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(symbol, outcome).Inc()
}

func (r *Recorder) RecordFetchError(source string) {
	if r == nil {
		return
	}
	r.fetchErrors.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordLevels(symbol, kind string, n int) {
	if r == nil {
		return
	}
	r.levelCount.WithLabelValues(symbol, kind).Set(float64(n))
}

func (r *Recorder) RecordBars(symbol string, n int) {
	if r == nil {
		return
	}
	r.barsFetched.WithLabelValues(symbol).Set(float64(n))
}

// ObserveSince records the time elapsed since start for stage.
func (r *Recorder) ObserveSince(stage string, start time.Time) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
