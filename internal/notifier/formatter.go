package notifier

import (
	"fmt"
	"html"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/desaga/py-support-resistance-finder/internal/calculator"
	"github.com/desaga/py-support-resistance-finder/internal/model"
)

func price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func prices(vals []float64) string {
	if len(vals) == 0 {
		return "none"
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = price(v)
	}
	return strings.Join(out, ", ")
}

// nearest returns the closest support at or below last and the closest
// resistance at or above it.
func nearest(levels model.Levels, last float64) (support, resistance float64, hasSupport, hasResistance bool) {
	for _, v := range levels.Support.Values {
		if v <= last && (!hasSupport || v > support) {
			support, hasSupport = v, true
		}
	}
	for _, v := range levels.Resistance.Values {
		if v >= last && (!hasResistance || v < resistance) {
			resistance, hasResistance = v, true
		}
	}
	return
}

// FormatText formats an analysis as a plain-text summary for the terminal.
func FormatText(a *model.Analysis) string {
	var b strings.Builder
	cfg := a.Config
	fmt.Fprintf(&b, "%s %s (%d bars from %s)\n", cfg.Symbol, cfg.Period, a.Bars, a.Source)
	fmt.Fprintf(&b, "window=%d distance=%s\n", cfg.Window, decimal.NewFromFloat(cfg.RelativeDistance).String())
	fmt.Fprintf(&b, "Support:    %s\n", prices(a.Levels.Support.Values))
	fmt.Fprintf(&b, "Resistance: %s\n", prices(a.Levels.Resistance.Values))

	last, ok := a.Series.Last()
	if !ok {
		return b.String()
	}
	fmt.Fprintf(&b, "Last close: %s (%s)\n", price(last.Close), last.Time.Format("2006-01-02"))
	s, r, hasS, hasR := nearest(a.Levels, last.Close)
	if hasS {
		fmt.Fprintf(&b, "Nearest support: %s\n", price(s))
	}
	if hasR {
		fmt.Fprintf(&b, "Nearest resistance: %s\n", price(r))
	}
	return b.String()
}

// FormatHTML formats an analysis into a Telegram message.
func FormatHTML(a *model.Analysis) string {
	var b strings.Builder
	cfg := a.Config
	fmt.Fprintf(&b, "📊 <b>%s</b> levels | %s\n\n", html.EscapeString(cfg.Symbol), cfg.Period)

	if last, ok := a.Series.Last(); ok {
		fmt.Fprintf(&b, "Last close: %s (%s)\n", price(last.Close), last.Time.Format("2006-01-02"))
		if high, low, err := calculator.CloseRange(a.Series.Bars); err == nil {
			pos, _ := calculator.RangePosition(last.Close, high, low)
			fmt.Fprintf(&b, "Range: %s - %s (at %.0f%%)\n", price(low), price(high), pos*100)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "🟢 <b>Support:</b> %s\n", prices(a.Levels.Support.Values))
	fmt.Fprintf(&b, "🔴 <b>Resistance:</b> %s\n", prices(a.Levels.Resistance.Values))
	fmt.Fprintf(&b, "\n<i>window %d, distance %s, %d bars</i>", cfg.Window, decimal.NewFromFloat(cfg.RelativeDistance).String(), a.Bars)
	return b.String()
}

// FormatRefreshSummary formats the outcome of a scheduled watchlist refresh.
func FormatRefreshSummary(analyses []*model.Analysis, failed map[string]error, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔄 <b>Levels refresh</b> | %s\n\n", at.Format("2006-01-02 15:04"))
	for _, a := range analyses {
		fmt.Fprintf(&b, "<b>%s</b> S: %s | R: %s\n",
			html.EscapeString(a.Config.Symbol), prices(a.Levels.Support.Values), prices(a.Levels.Resistance.Values))
	}
	for _, sym := range slices.Sorted(maps.Keys(failed)) {
		fmt.Fprintf(&b, "⚠️ %s: %s\n", html.EscapeString(sym), html.EscapeString(failed[sym].Error()))
	}
	return b.String()
}

// FormatWatchlist lists the instruments refreshed on schedule.
func FormatWatchlist(items []model.AnalysisConfig) string {
	var b strings.Builder
	b.WriteString("📋 <b>Watchlist</b>\n\n")
	for _, it := range items {
		fmt.Fprintf(&b, "%s %s (window %d)\n", html.EscapeString(it.Symbol), it.Period, it.Window)
	}
	return b.String()
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return "<b>Commands</b>\n" +
		"/levels SYMBOL [PERIOD] - support and resistance levels\n" +
		"/watchlist - scheduled instruments\n" +
		"/refresh - refresh the watchlist now\n" +
		"/help - this message"
}
