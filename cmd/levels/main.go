package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/desaga/py-support-resistance-finder/internal/api"
	"github.com/desaga/py-support-resistance-finder/internal/cache"
	"github.com/desaga/py-support-resistance-finder/internal/calculator"
	"github.com/desaga/py-support-resistance-finder/internal/chart"
	"github.com/desaga/py-support-resistance-finder/internal/collector"
	"github.com/desaga/py-support-resistance-finder/internal/config"
	"github.com/desaga/py-support-resistance-finder/internal/logger"
	"github.com/desaga/py-support-resistance-finder/internal/metrics"
	"github.com/desaga/py-support-resistance-finder/internal/model"
	"github.com/desaga/py-support-resistance-finder/internal/notifier"
	"github.com/desaga/py-support-resistance-finder/internal/recorder"
	"github.com/desaga/py-support-resistance-finder/internal/scheduler"
)

type flags struct {
	config   string
	symbol   string
	period   string
	window   int
	distance float64
	out      string
	chart    bool
	watch    bool
	serve    bool
}

func parseFlags(args []string) (*flags, map[string]bool, error) {
	f := &flags{}
	fs := flag.NewFlagSet("levels", flag.ContinueOnError)
	fs.StringVar(&f.config, "config", "configs/config.yaml", "path to the YAML config (CONFIG_PATH overrides the default)")
	fs.StringVar(&f.symbol, "symbol", "", "ticker symbol, e.g. AAPL")
	fs.StringVar(&f.period, "period", "", "lookback: 1d 5d 1mo 3mo 6mo 1y 2y 5y ytd max")
	fs.IntVar(&f.window, "window", 0, "extremum half-window in bars")
	fs.Float64Var(&f.distance, "distance", 0, "relative merge distance in [0, 1]")
	fs.StringVar(&f.out, "out", "", "chart output directory")
	fs.BoolVar(&f.chart, "chart", true, "write an HTML chart in one-shot mode")
	fs.BoolVar(&f.watch, "watch", false, "refresh the watchlist on schedule and answer bot commands")
	fs.BoolVar(&f.serve, "serve", false, "serve the HTTP API")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	if !set["config"] {
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			f.config = v
		}
	}
	return f, set, nil
}

// applyFlags lets explicit command-line values win over file and environment.
func applyFlags(cfg *config.Config, f *flags, set map[string]bool) error {
	if set["symbol"] {
		cfg.Analysis.Symbol = f.symbol
	}
	if set["period"] {
		p, err := model.ParsePeriod(f.period)
		if err != nil {
			return err
		}
		cfg.Analysis.Period = string(p)
	}
	if set["window"] {
		cfg.Analysis.Window = f.window
	}
	if set["distance"] {
		cfg.Analysis.RelativeDistance = f.distance
	}
	if set["out"] {
		cfg.Chart.OutputDir = f.out
	}
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	f, set, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(f.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if err := applyFlags(cfg, f, set); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	if err := calculator.ParamsFrom(cfg.AnalysisConfig()).Validate(); err != nil {
		log.Error().Err(err).Msg("invalid analysis parameters")
		return 1
	}
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	fetcher, closeCache := buildFetcher(ctx, cfg)
	defer closeCache()
	log.Info().Str("source", fetcher.Name()).Msg("data source ready")

	col := collector.NewCollector(fetcher, m)
	rec := openRecorder(cfg)
	defer rec.Close()
	renderer := chart.NewRenderer(chart.Options{
		Width:      cfg.Chart.Width,
		Height:     cfg.Chart.Height,
		HideLabels: cfg.Chart.HideLabels,
	})

	if !f.watch && !f.serve {
		return oneShot(ctx, cfg, f, col, rec, renderer)
	}

	g, gctx := errgroup.WithContext(ctx)
	if f.watch {
		g.Go(func() error { return watch(gctx, cfg, col, rec, renderer) })
	}
	if f.serve {
		h := api.NewHandler(col, rec, renderer, cfg.AnalysisConfig())
		srv := api.NewServer(h, m, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
		g.Go(func() error { return srv.Run(gctx) })
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("stopped with error")
		return 1
	}
	log.Info().Msg("levels stopped")
	return 0
}

func oneShot(ctx context.Context, cfg *config.Config, f *flags, col *collector.Collector, rec recorder.Recorder, renderer *chart.Renderer) int {
	a, err := col.Analyze(ctx, cfg.AnalysisConfig())
	if err != nil {
		log.Error().Err(err).Str("symbol", cfg.Analysis.Symbol).Msg("analysis failed")
		return 1
	}
	fmt.Print(notifier.FormatText(a))

	if err := rec.RecordRun(recorder.SnapshotFromAnalysis(a, "cli")); err != nil {
		log.Warn().Err(err).Msg("record run")
	}
	if f.chart {
		path, err := renderer.RenderFile(cfg.Chart.OutputDir, a)
		if err != nil {
			log.Error().Err(err).Msg("render chart")
			return 1
		}
		fmt.Printf("Chart: %s\n", path)
	}
	return 0
}

func watch(ctx context.Context, cfg *config.Config, col *collector.Collector, rec recorder.Recorder, renderer *chart.Renderer) error {
	var n notifier.Notifier = notifier.NoopNotifier{}
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		var err error
		tn, err = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		if err != nil {
			log.Warn().Err(err).Msg("telegram unavailable, notifications disabled")
		} else {
			n = tn
		}
	}

	sched := scheduler.NewScheduler(ctx, col, n, rec, scheduler.Options{
		Watchlist:   cfg.WatchConfigs(),
		Defaults:    cfg.AnalysisConfig(),
		Concurrency: cfg.Schedule.Concurrency,
		Charts:      renderer,
		ChartDir:    cfg.Chart.OutputDir,
	})
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, refreshing watchlist now")
		go sched.RunNow(ctx)
	}

	log.Info().Str("cron", cfg.Schedule.RefreshCron).Msg("watching. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping...")
	return nil
}

// buildFetcher selects the data source and wraps it with a cache when a TTL
// is configured. The returned func releases cache connections.
func buildFetcher(ctx context.Context, cfg *config.Config) (collector.Fetcher, func()) {
	var fetcher collector.Fetcher
	switch cfg.DataSource.Provider {
	case "csv":
		fetcher = collector.NewCSVFetcher(cfg.DataSource.CSVPath)
	default:
		fetcher = collector.NewYahooFetcher(collector.YahooOptions{
			BaseURL:           cfg.DataSource.BaseURL,
			Interval:          cfg.DataSource.Interval,
			AdjustedClose:     cfg.DataSource.AdjustedClose,
			ProxyURL:          cfg.Proxy,
			Timeout:           cfg.DataSource.Timeout,
			RequestsPerSecond: cfg.DataSource.RequestsPerSecond,
			MaxRetryElapsed:   cfg.DataSource.MaxRetryElapsed,
		})
	}
	if cfg.Cache.TTL <= 0 {
		return fetcher, func() {}
	}

	if cfg.Cache.RedisAddr != "" {
		rc := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		err := rc.Ping(ctx)
		if err == nil {
			log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("redis history cache enabled")
			return collector.NewCachedFetcher(fetcher, rc, cfg.Cache.TTL), func() { rc.Close() }
		}
		log.Warn().Err(err).Msg("redis unreachable, falling back to in-memory cache")
		rc.Close()
	}
	return collector.NewCachedFetcher(fetcher, cache.NewTTLCache(), cfg.Cache.TTL), func() {}
}

func openRecorder(cfg *config.Config) recorder.Recorder {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
		log.Warn().Err(err).Msg("create database dir, using noop recorder")
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		return recorder.NewNoopRecorder()
	}
	return sr
}
