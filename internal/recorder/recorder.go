package recorder

import (
	"context"
	"time"

	"github.com/desaga/py-support-resistance-finder/internal/model"
)

// RunSnapshot holds the outcome of one level-extraction run.
type RunSnapshot struct {
	ID               string       `json:"id"`
	Symbol           string       `json:"symbol"`
	Period           model.Period `json:"period"`
	Window           int          `json:"window"`
	RelativeDistance float64      `json:"relative_distance"`
	Source           string       `json:"source"`
	Bars             int          `json:"bars"`
	LastClose        float64      `json:"last_close"`
	Support          []float64    `json:"support"`
	Resistance       []float64    `json:"resistance"`
	Trigger          string       `json:"trigger"` // "cli", "schedule", "api" or "telegram"
	CreatedAt        time.Time    `json:"created_at"`
}

// SnapshotFromAnalysis captures a for persistence.
func SnapshotFromAnalysis(a *model.Analysis, trigger string) *RunSnapshot {
	snap := &RunSnapshot{
		Symbol:           a.Config.Symbol,
		Period:           a.Config.Period,
		Window:           a.Config.Window,
		RelativeDistance: a.Config.RelativeDistance,
		Source:           a.Source,
		Bars:             a.Bars,
		Support:          append([]float64{}, a.Levels.Support.Values...),
		Resistance:       append([]float64{}, a.Levels.Resistance.Values...),
		Trigger:          trigger,
	}
	if last, ok := a.Series.Last(); ok {
		snap.LastClose = last.Close
	}
	return snap
}

// Recorder persists level runs for later inspection.
type Recorder interface {
	// RecordRun stores snap, filling ID and CreatedAt when empty.
	RecordRun(snap *RunSnapshot) error
	// RecentRuns returns up to limit runs, newest first. An empty symbol
	// matches every instrument.
	RecentRuns(ctx context.Context, symbol string, limit int) ([]RunSnapshot, error)
	Close() error
}
