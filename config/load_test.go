package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

// clearEnv 避免宿主环境变量干扰
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SCANNER_EXCHANGE", "SCANNER_API_KEY", "SCANNER_API_SECRET", "TELEGRAM_TOKEN", "CHAT_ID", "SCANNER_WEBHOOK_URL"} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
env: dev
exchange:
  name: bybit
scan:
  topN: 20
  exclude: [USDCUSDT]
  interval: 1800
notify:
  telegramToken: tok
  chatID: "-100"
log:
  level: debug
metrics:
  addr: ":9102"
  feed: true
  feedOrigins: ["https://dash.example"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "bybit", cfg.Exchange.Name)
	assert.Equal(t, 20, cfg.Scan.TopN)
	assert.Equal(t, []string{"USDCUSDT"}, cfg.Scan.Exclude)
	assert.Equal(t, 30*time.Minute, cfg.Scan.Interval())
	assert.Equal(t, "Top20", cfg.Scan.TagOrDefault())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"https://dash.example"}, cfg.Metrics.FeedOrigins)

	// 未出现的字段保留默认值
	assert.Equal(t, 200, cfg.Scan.TrendPeriod)
	assert.Equal(t, "30m", cfg.Scan.MomentumTimeframe)
	assert.Equal(t, 15*time.Second, cfg.Scan.RequestTimeout())
	assert.Equal(t, 2, cfg.Exchange.MaxRetries)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
env: prod
exchange:
  name: binance
`)
	t.Setenv("SCANNER_EXCHANGE", "Aster")
	t.Setenv("SCANNER_API_KEY", "env-key")
	t.Setenv("SCANNER_API_SECRET", "env-secret")
	t.Setenv("TELEGRAM_TOKEN", "tok")
	t.Setenv("CHAT_ID", "42")

	cfg, err := LoadWithEnvOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, "aster", cfg.Exchange.Name)
	assert.Equal(t, "env-key", cfg.Exchange.APIKey)
	assert.Equal(t, "env-secret", cfg.Exchange.APISecret)
	assert.True(t, cfg.Notify.HasTelegram())
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeTempConfig(t, "scan: [not a map"))
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	_, err := FromEnv()
	var cfgErr ErrInvalid
	require.True(t, errors.As(err, &cfgErr), "missing telegram env must be a configuration error")

	t.Setenv("TELEGRAM_TOKEN", "tok")
	t.Setenv("CHAT_ID", "1")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "binance", cfg.Exchange.Name)
	assert.Equal(t, "Top50", cfg.Scan.TagOrDefault())
}

func TestValidate(t *testing.T) {
	valid := func() AppConfig {
		cfg := Default()
		cfg.Notify.WebhookURL = "https://hooks.test/x"
		return cfg
	}
	require.NoError(t, Validate(valid()))

	withOrigins := valid()
	withOrigins.Metrics.FeedOrigins = []string{"*", "https://dash.example"}
	require.NoError(t, Validate(withOrigins))

	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"未知交易所", func(c *AppConfig) { c.Exchange.Name = "kraken" }},
		{"只有apiKey", func(c *AppConfig) { c.Exchange.APIKey = "k" }},
		{"负限频", func(c *AppConfig) { c.Exchange.RateLimit = -1 }},
		{"无投递目标", func(c *AppConfig) { c.Notify.WebhookURL = "" }},
		{"telegram缺chatID", func(c *AppConfig) { c.Notify.TelegramToken = "tok" }},
		{"topN为0", func(c *AppConfig) { c.Scan.TopN = 0 }},
		{"未知周期", func(c *AppConfig) { c.Scan.TrendTimeframe = "7h" }},
		{"fast>=slow", func(c *AppConfig) { c.Scan.Fast = 26 }},
		{"趋势K线不足", func(c *AppConfig) { c.Scan.TrendLimit = 150 }},
		{"动能K线不足", func(c *AppConfig) { c.Scan.MomentumLimit = 20 }},
		{"workers为0", func(c *AppConfig) { c.Scan.Workers = 0 }},
		{"超时为0", func(c *AppConfig) { c.Scan.RequestTimeoutMs = 0 }},
		{"负间隔", func(c *AppConfig) { c.Scan.IntervalSec = -1 }},
		{"feed来源非法", func(c *AppConfig) { c.Metrics.FeedOrigins = []string{"dash.example"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := Validate(cfg)
			var cfgErr ErrInvalid
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}
