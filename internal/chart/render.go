// Package chart renders price history with its support and resistance levels
// as a standalone HTML page.
package chart

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/shopspring/decimal"

	"github.com/desaga/py-support-resistance-finder/internal/model"
)

const (
	closeColor      = "#1f77b4"
	supportColor    = "#2ca02c"
	resistanceColor = "#d62728"
)

// Options controls page layout.
type Options struct {
	Width  string
	Height string
	// HideLabels names level series by kind only, without the price.
	HideLabels bool
}

// DefaultOptions returns the layout used when none is configured.
func DefaultOptions() Options {
	return Options{Width: "1400px", Height: "700px"}
}

// Renderer draws analyses.
type Renderer struct {
	opts Options
}

// NewRenderer creates a Renderer. Empty sizes fall back to DefaultOptions.
func NewRenderer(o Options) *Renderer {
	def := DefaultOptions()
	if o.Width == "" {
		o.Width = def.Width
	}
	if o.Height == "" {
		o.Height = def.Height
	}
	return &Renderer{opts: o}
}

// Render writes the chart page for a to w.
func (r *Renderer) Render(w io.Writer, a *model.Analysis) error {
	return r.build(a).Render(w)
}

// RenderFile writes the chart page into dir and returns its path.
func (r *Renderer) RenderFile(dir string, a *model.Analysis) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}
	path := filepath.Join(dir, FileName(a))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()

	if err := r.Render(f, a); err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}
	return path, nil
}

// FileName is the page name used by RenderFile, e.g. "aapl_1y_levels.html".
func FileName(a *model.Analysis) string {
	sym := strings.NewReplacer("^", "", "/", "_", "=", "_", ".", "_").Replace(a.Config.Symbol)
	return fmt.Sprintf("%s_%s_levels.html", strings.ToLower(sym), a.Config.Period)
}

func (r *Renderer) build(a *model.Analysis) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("%s levels", a.Config.Symbol),
			Width:     r.opts.Width,
			Height:    r.opts.Height,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Support and Resistance Levels",
			Subtitle: fmt.Sprintf("%s %s | window %d | distance %s", a.Config.Symbol, a.Config.Period, a.Config.Window, percent(a.Config.RelativeDistance)),
			Left:     "center",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Date"}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "Price",
			Scale:     true,
			SplitLine: &opts.SplitLine{Show: true},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: true, Top: "8%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside", Start: 0, End: 100}),
	)

	bars := a.Series.Bars
	xAxis := make([]string, len(bars))
	closes := make([]opts.LineData, len(bars))
	for i, b := range bars {
		xAxis[i] = b.Time.Format("2006-01-02")
		closes[i] = opts.LineData{Value: b.Close}
	}

	line.SetXAxis(xAxis).
		AddSeries("Close Price", closes,
			charts.WithLineChartOpts(opts.LineChart{Smooth: false}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: closeColor, Width: 2}),
		)

	r.addLevels(line, a.Levels.Support, len(bars), supportColor)
	r.addLevels(line, a.Levels.Resistance, len(bars), resistanceColor)
	return line
}

func (r *Renderer) addLevels(line *charts.Line, levels model.LevelList, n int, color string) {
	for i, v := range levels.Values {
		data := make([]opts.LineData, n)
		for j := range data {
			data[j] = opts.LineData{Value: v}
		}
		line.AddSeries(r.seriesName(levels.Kind, i, v), data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: false}),
			charts.WithLineStyleOpts(opts.LineStyle{
				Color:   color,
				Width:   1,
				Type:    "dashed",
				Opacity: 0.8,
			}),
		)
	}
}

func (r *Renderer) seriesName(kind model.LevelKind, i int, v float64) string {
	label := strings.ToUpper(string(kind[:1])) + string(kind[1:])
	if r.opts.HideLabels {
		return fmt.Sprintf("%s %d", label, i+1)
	}
	return fmt.Sprintf("%s %s", label, Price(v))
}

// Price formats a level for display with two decimals.
func Price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func percent(d float64) string {
	return decimal.NewFromFloat(d).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
