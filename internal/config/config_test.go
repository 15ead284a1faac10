package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desaga/py-support-resistance-finder/internal/model"
)

var envVars = []string{
	"LEVELS_SYMBOL", "LEVELS_PERIOD", "LEVELS_WINDOW", "LEVELS_DISTANCE", "CSV_PATH",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "REDIS_ADDR", "HTTPS_PROXY",
	"CRON_REFRESH", "SQLITE_PATH", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", cfg.Analysis.Symbol)
	assert.Equal(t, "1y", cfg.Analysis.Period)
	assert.Equal(t, 10, cfg.Analysis.Window)
	assert.Equal(t, 0.01, cfg.Analysis.RelativeDistance)
	assert.Equal(t, "yahoo", cfg.DataSource.Provider)
	assert.Equal(t, "1d", cfg.DataSource.Interval)
	assert.Equal(t, 30*time.Second, cfg.DataSource.Timeout)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "charts", cfg.Chart.OutputDir)
	assert.Equal(t, "0 30 22 * * 1-5", cfg.Schedule.RefreshCron)
	assert.Equal(t, 4, cfg.Schedule.Concurrency)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
analysis:
  symbol: MSFT
  period: 6mo
  window: 5
  relative_distance: 0.02
data_source:
  timeout: 5s
schedule:
  watchlist:
    - symbol: NVDA
    - symbol: "^GSPC"
      period: 2y
telegram:
  bot_token: abc
  chat_id: 42
`)
	t.Setenv("LEVELS_SYMBOL", "TSLA")
	t.Setenv("LEVELS_WINDOW", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "TSLA", cfg.Analysis.Symbol)
	assert.Equal(t, 7, cfg.Analysis.Window)
	assert.Equal(t, 0.02, cfg.Analysis.RelativeDistance)
	assert.Equal(t, 5*time.Second, cfg.DataSource.Timeout)
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)

	assert.Equal(t, model.AnalysisConfig{
		Symbol: "TSLA", Period: model.Period6M, Window: 7, RelativeDistance: 0.02,
	}, cfg.AnalysisConfig())

	watch := cfg.WatchConfigs()
	require.Len(t, watch, 2)
	assert.Equal(t, "NVDA", watch[0].Symbol)
	assert.Equal(t, model.Period6M, watch[0].Period)
	assert.Equal(t, "^GSPC", watch[1].Symbol)
	assert.Equal(t, model.Period2Y, watch[1].Period)
}

func TestLoad_BadEnvNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEVELS_WINDOW", "ten")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "analysis: [unclosed"))
	assert.Error(t, err)
}

func TestWatchConfigs_FallsBackToPrimary(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []model.AnalysisConfig{cfg.AnalysisConfig()}, cfg.WatchConfigs())
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown period", func(c *Config) { c.Analysis.Period = "3y" }},
		{"non-positive window", func(c *Config) { c.Analysis.Window = -1 }},
		{"distance above one", func(c *Config) { c.Analysis.RelativeDistance = 1.2 }},
		{"csv without path", func(c *Config) { c.DataSource.Provider = "csv" }},
		{"token without chat", func(c *Config) { c.Telegram.BotToken = "abc" }},
		{"bad watch period", func(c *Config) { c.Schedule.Watchlist = []WatchItem{{Symbol: "X", Period: "week"}} }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_ZeroDistanceAllowed(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Analysis.RelativeDistance = 0
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ExplicitZerosOverrideDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEVELS_WINDOW", "0")
	t.Setenv("LEVELS_DISTANCE", "0")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Analysis.Window)
	assert.Equal(t, 0.0, cfg.Analysis.RelativeDistance)
	assert.Error(t, cfg.Validate(), "zero window must be rejected")
}

func TestLoad_ZeroDistanceFromEnvIsValid(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEVELS_DISTANCE", "0")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.0, cfg.AnalysisConfig().RelativeDistance)
	assert.Equal(t, 10, cfg.Analysis.Window)
}

func TestLoad_YAMLZerosSurvive(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
analysis:
  window: 0
  relative_distance: 0
cache:
  ttl: 0s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), cfg.Cache.TTL)
	assert.Equal(t, 0.0, cfg.Analysis.RelativeDistance)
	assert.Equal(t, 0, cfg.Analysis.Window)
	assert.Equal(t, "AAPL", cfg.Analysis.Symbol)
	assert.Error(t, cfg.Validate())
}
