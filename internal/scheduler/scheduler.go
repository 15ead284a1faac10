package scheduler

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/desaga/py-support-resistance-finder/internal/chart"
	"github.com/desaga/py-support-resistance-finder/internal/collector"
	"github.com/desaga/py-support-resistance-finder/internal/model"
	"github.com/desaga/py-support-resistance-finder/internal/notifier"
	"github.com/desaga/py-support-resistance-finder/internal/recorder"
)

// Options configures what a refresh covers.
type Options struct {
	// Watchlist is refreshed on every tick.
	Watchlist []model.AnalysisConfig
	// Defaults supplies window and distance for ad-hoc /levels commands.
	Defaults model.AnalysisConfig
	// Concurrency bounds parallel fetches. Values below 1 mean 1.
	Concurrency int
	// Charts renders one page per analysis into ChartDir when non-nil.
	Charts   *chart.Renderer
	ChartDir string
}

// Scheduler manages the refresh cron task and bot commands.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	Ctx       context.Context

	opts Options
	now  func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, col *collector.Collector, n notifier.Notifier, rec recorder.Recorder, opts Options) *Scheduler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Collector: col,
		Notifier:  n,
		Recorder:  rec,
		Ctx:       ctx,
		opts:      opts,
		now:       time.Now,
	}
}

// RegisterAll registers the watchlist refresh task.
func (s *Scheduler) RegisterAll(refreshCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("watchlist", len(s.opts.Watchlist)).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RefreshResult is the outcome of one watchlist refresh. Analyses follow
// watchlist order; failed items are keyed by symbol.
type RefreshResult struct {
	Analyses []*model.Analysis
	Failed   map[string]error
}

// RunNow refreshes every watchlist item, records and charts each success, and
// sends one summary notification.
func (s *Scheduler) RunNow(ctx context.Context) RefreshResult {
	items := s.opts.Watchlist
	results := make([]*model.Analysis, len(items))

	var (
		mu     sync.Mutex
		failed = map[string]error{}
		g      errgroup.Group
	)
	g.SetLimit(s.opts.Concurrency)

	for i, item := range items {
		g.Go(func() error {
			a, err := s.analyze(ctx, item, "schedule")
			if err != nil {
				mu.Lock()
				failed[item.Symbol] = err
				mu.Unlock()
				return nil
			}
			results[i] = a
			return nil
		})
	}
	_ = g.Wait()

	res := RefreshResult{Failed: failed}
	for _, a := range results {
		if a != nil {
			res.Analyses = append(res.Analyses, a)
		}
	}
	s.trySend(ctx, notifier.FormatRefreshSummary(res.Analyses, failed, s.now()))
	return res
}

func (s *Scheduler) refreshTask() {
	log.Info().Msg("running levels refresh")
	res := s.RunNow(s.Ctx)
	log.Info().Int("ok", len(res.Analyses)).Int("failed", len(res.Failed)).Msg("levels refresh done")
}

// analyze runs one analysis and persists its outputs. Record and chart
// failures are logged, not returned.
func (s *Scheduler) analyze(ctx context.Context, cfg model.AnalysisConfig, trigger string) (*model.Analysis, error) {
	a, err := s.Collector.Analyze(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Str("symbol", cfg.Symbol).Msg("analysis failed")
		return nil, err
	}
	if err := s.Recorder.RecordRun(recorder.SnapshotFromAnalysis(a, trigger)); err != nil {
		log.Error().Err(err).Str("symbol", cfg.Symbol).Msg("record run")
	}
	if s.opts.Charts != nil {
		path, err := s.opts.Charts.RenderFile(s.opts.ChartDir, a)
		if err != nil {
			log.Error().Err(err).Str("symbol", cfg.Symbol).Msg("render chart")
		} else {
			log.Debug().Str("path", path).Msg("chart written")
		}
	}
	return a, nil
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, text string) string {
	cmd, ok := notifier.ParseCommand(text)
	if !ok {
		return notifier.FormatHelp()
	}
	switch cmd.Name {
	case "levels":
		return s.levelsCommand(ctx, cmd)
	case "watchlist":
		return notifier.FormatWatchlist(s.opts.Watchlist)
	case "refresh":
		s.RunNow(ctx)
		return ""
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) levelsCommand(ctx context.Context, cmd notifier.Command) string {
	if cmd.Arg(0) == "" {
		return "Usage: /levels SYMBOL [PERIOD]"
	}
	cfg := s.opts.Defaults
	cfg.Symbol = strings.ToUpper(cmd.Arg(0))
	if p := cmd.Arg(1); p != "" {
		period, err := model.ParsePeriod(p)
		if err != nil {
			return fmt.Sprintf("⚠️ %s", html.EscapeString(err.Error()))
		}
		cfg.Period = period
	}

	a, err := s.analyze(ctx, cfg, "telegram")
	if err != nil {
		return fmt.Sprintf("⚠️ %s: %s", html.EscapeString(cfg.Symbol), html.EscapeString(err.Error()))
	}
	return notifier.FormatHTML(a)
}

type retrySender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	var err error
	if r, ok := s.Notifier.(retrySender); ok {
		err = r.SendWithRetry(ctx, text, 3)
	} else {
		err = s.Notifier.Send(ctx, text)
	}
	if err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}
