package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/desaga/py-support-resistance-finder/internal/model"
)

// WatchItem is one instrument refreshed by the scheduler.
type WatchItem struct {
	Symbol string `yaml:"symbol" validate:"required"`
	Period string `yaml:"period" validate:"omitempty,oneof=1d 5d 1mo 3mo 6mo 1y 2y 5y ytd max"`
}

// Config holds all application configuration.
type Config struct {
	Analysis struct {
		Symbol           string  `yaml:"symbol" default:"AAPL" validate:"required"`
		Period           string  `yaml:"period" default:"1y" validate:"oneof=1d 5d 1mo 3mo 6mo 1y 2y 5y ytd max"`
		Window           int     `yaml:"window" default:"10" validate:"gt=0"`
		RelativeDistance float64 `yaml:"relative_distance" default:"0.01" validate:"gte=0,lte=1"`
	} `yaml:"analysis"`
	DataSource struct {
		Provider          string        `yaml:"provider" default:"yahoo" validate:"oneof=yahoo csv"`
		BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
		Interval          string        `yaml:"interval" default:"1d" validate:"oneof=1d 1wk 1mo"`
		AdjustedClose     bool          `yaml:"adjusted_close"`
		CSVPath           string        `yaml:"csv_path" validate:"required_if=Provider csv"`
		RequestsPerSecond float64       `yaml:"requests_per_second" default:"2" validate:"gt=0"`
		Timeout           time.Duration `yaml:"timeout" default:"30s"`
		MaxRetryElapsed   time.Duration `yaml:"max_retry_elapsed" default:"30s"`
	} `yaml:"data_source"`
	Cache struct {
		TTL           time.Duration `yaml:"ttl" default:"15m"`
		RedisAddr     string        `yaml:"redis_addr"`
		RedisPassword string        `yaml:"redis_password"`
		RedisDB       int           `yaml:"redis_db"`
	} `yaml:"cache"`
	Chart struct {
		OutputDir  string `yaml:"output_dir" default:"charts"`
		HideLabels bool   `yaml:"hide_labels"`
		Width      string `yaml:"width" default:"1400px"`
		Height     string `yaml:"height" default:"700px"`
	} `yaml:"chart"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id" validate:"required_with=BotToken"`
	} `yaml:"telegram"`
	Schedule struct {
		RefreshCron string      `yaml:"refresh_cron" default:"0 30 22 * * 1-5"`
		Concurrency int         `yaml:"concurrency" default:"4" validate:"gt=0"`
		Watchlist   []WatchItem `yaml:"watchlist" validate:"dive"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/levels.db"`
	} `yaml:"database"`
	Server struct {
		Addr            string        `yaml:"addr" default:":8080"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	} `yaml:"logging"`
	Proxy string `yaml:"proxy" validate:"omitempty,url"`
}

// Load fills defaults, then reads config from a YAML file, then applies .env
// and environment variable overrides. Explicit zero values survive, so
// Validate sees them. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("read .env")
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("LEVELS_SYMBOL"); v != "" {
		cfg.Analysis.Symbol = v
	}
	if v := os.Getenv("LEVELS_PERIOD"); v != "" {
		cfg.Analysis.Period = v
	}
	if v := os.Getenv("LEVELS_WINDOW"); v != "" {
		w, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LEVELS_WINDOW: %w", err)
		}
		cfg.Analysis.Window = w
	}
	if v := os.Getenv("LEVELS_DISTANCE"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LEVELS_DISTANCE: %w", err)
		}
		cfg.Analysis.RelativeDistance = d
	}
	if v := os.Getenv("CSV_PATH"); v != "" {
		cfg.DataSource.Provider = "csv"
		cfg.DataSource.CSVPath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = id
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_REFRESH"); v != "" {
		cfg.Schedule.RefreshCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// AnalysisConfig returns the primary analysis parameters.
func (c *Config) AnalysisConfig() model.AnalysisConfig {
	return model.AnalysisConfig{
		Symbol:           c.Analysis.Symbol,
		Period:           model.Period(c.Analysis.Period),
		Window:           c.Analysis.Window,
		RelativeDistance: c.Analysis.RelativeDistance,
	}
}

// WatchConfigs returns one analysis config per watchlist entry, falling back
// to the primary analysis when the watchlist is empty. Entries without a
// period inherit the primary one.
func (c *Config) WatchConfigs() []model.AnalysisConfig {
	base := c.AnalysisConfig()
	if len(c.Schedule.Watchlist) == 0 {
		return []model.AnalysisConfig{base}
	}
	out := make([]model.AnalysisConfig, 0, len(c.Schedule.Watchlist))
	for _, item := range c.Schedule.Watchlist {
		ac := base
		ac.Symbol = item.Symbol
		if item.Period != "" {
			ac.Period = model.Period(item.Period)
		}
		out = append(out, ac)
	}
	return out
}
