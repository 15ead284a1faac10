package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/desaga/py-support-resistance-finder/internal/calculator"
	"github.com/desaga/py-support-resistance-finder/internal/chart"
	"github.com/desaga/py-support-resistance-finder/internal/model"
	"github.com/desaga/py-support-resistance-finder/internal/recorder"
)

// Analyzer runs one level extraction. *collector.Collector implements it.
type Analyzer interface {
	Analyze(ctx context.Context, cfg model.AnalysisConfig) (*model.Analysis, error)
}

// Handler serves the level endpoints.
type Handler struct {
	analyzer Analyzer
	recorder recorder.Recorder
	charts   *chart.Renderer
	defaults model.AnalysisConfig
}

// NewHandler creates a Handler. defaults fills query parameters the caller
// leaves out.
func NewHandler(a Analyzer, rec recorder.Recorder, charts *chart.Renderer, defaults model.AnalysisConfig) *Handler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if charts == nil {
		charts = chart.NewRenderer(chart.DefaultOptions())
	}
	return &Handler{analyzer: a, recorder: rec, charts: charts, defaults: defaults}
}

// RegisterRoutes mounts the handler on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.health)
	v1 := e.Group("/api/v1")
	v1.GET("/levels", h.levels)
	v1.GET("/chart", h.chart)
	v1.GET("/history", h.history)
}

type levelsQuery struct {
	Symbol   string  `query:"symbol" validate:"required,max=32"`
	Period   string  `query:"period" validate:"oneof=1d 5d 1mo 3mo 6mo 1y 2y 5y ytd max"`
	Window   int     `query:"window" validate:"gt=0"`
	Distance float64 `query:"distance" validate:"gte=0,lte=1"`
}

type historyQuery struct {
	Symbol string `query:"symbol" validate:"max=32"`
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=500"`
}

func (h *Handler) health(c echo.Context) error {
	return successResponse(c, map[string]string{"status": "ok"})
}

// analyze binds the levels query and runs the analysis. On failure the error
// response has already been written and ok is false.
func (h *Handler) analyze(c echo.Context) (a *model.Analysis, ok bool, err error) {
	q := levelsQuery{
		Period:   string(h.defaults.Period),
		Window:   h.defaults.Window,
		Distance: h.defaults.RelativeDistance,
	}
	if verrs := bindAndValidate(c, &q); verrs != nil {
		return nil, false, badRequestResponse(c, verrs)
	}

	cfg := model.AnalysisConfig{
		Symbol:           strings.ToUpper(q.Symbol),
		Period:           model.Period(strings.ToLower(q.Period)),
		Window:           q.Window,
		RelativeDistance: q.Distance,
	}
	a, err = h.analyzer.Analyze(c.Request().Context(), cfg)
	switch {
	case err == nil:
	case errors.Is(err, calculator.ErrInvalidConfig):
		return nil, false, badRequestResponse(c, []ValidationError{{Code: "ERR_CONFIG", Message: err.Error()}})
	default:
		log.Error().Err(err).Str("symbol", cfg.Symbol).Msg("api analysis failed")
		return nil, false, badGatewayResponse(c, err.Error())
	}

	if err := h.recorder.RecordRun(recorder.SnapshotFromAnalysis(a, "api")); err != nil {
		log.Error().Err(err).Str("symbol", cfg.Symbol).Msg("record run")
	}
	return a, true, nil
}

func (h *Handler) levels(c echo.Context) error {
	a, ok, err := h.analyze(c)
	if !ok {
		return err
	}
	return successResponse(c, a)
}

func (h *Handler) chart(c echo.Context) error {
	a, ok, err := h.analyze(c)
	if !ok {
		return err
	}
	var buf bytes.Buffer
	if err := h.charts.Render(&buf, a); err != nil {
		log.Error().Err(err).Msg("render chart")
		return internalServerErrorResponse(c)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (h *Handler) history(c echo.Context) error {
	var q historyQuery
	if verrs := bindAndValidate(c, &q); verrs != nil {
		return badRequestResponse(c, verrs)
	}
	runs, err := h.recorder.RecentRuns(c.Request().Context(), strings.ToUpper(q.Symbol), q.Limit)
	if err != nil {
		log.Error().Err(err).Msg("load history")
		return internalServerErrorResponse(c)
	}
	return listResponse(c, runs, len(runs))
}
