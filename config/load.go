package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"signal-scanner-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env      string         `yaml:"env"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Scan     ScanConfig     `yaml:"scan"`
	Notify   NotifyConfig   `yaml:"notify"`
	Log      logger.Config  `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ExchangeConfig 行情源。API key 只用于提高限频额度，公开行情不需要。
type ExchangeConfig struct {
	Name         string  `yaml:"name"` // binance / aster / bybit
	BaseURL      string  `yaml:"baseURL"`
	APIKey       string  `yaml:"apiKey"`
	APISecret    string  `yaml:"apiSecret"`
	RateLimit    float64 `yaml:"rateLimit"` // 每秒请求数，0 表示不限
	RateBurst    int     `yaml:"rateBurst"`
	MaxRetries   int     `yaml:"maxRetries"`
	RetryDelayMs int     `yaml:"retryDelayMs"`
}

// ScanConfig 扫描范围与指标参数，默认值即 Top50 + EMA200(1h) + MACD(12,26,9)(30m)。
type ScanConfig struct {
	TopN              int      `yaml:"topN"`
	Quote             string   `yaml:"quote"`
	Exclude           []string `yaml:"exclude"`
	TrendTimeframe    string   `yaml:"trendTimeframe"`
	TrendLimit        int      `yaml:"trendLimit"`
	TrendPeriod       int      `yaml:"trendPeriod"`
	MomentumTimeframe string   `yaml:"momentumTimeframe"`
	MomentumLimit     int      `yaml:"momentumLimit"`
	Fast              int      `yaml:"fast"`
	Slow              int      `yaml:"slow"`
	SignalPeriod      int      `yaml:"signalPeriod"`
	Workers           int      `yaml:"workers"`
	RequestTimeoutMs  int      `yaml:"requestTimeoutMs"`
	Tag               string   `yaml:"tag"`      // 为空时为 "Top{topN}"
	IntervalSec       int      `yaml:"interval"` // 循环模式间隔（秒），0 为单次运行
}

// NotifyConfig 通知通道；至少需要一个可投递目标。
type NotifyConfig struct {
	TelegramToken   string `yaml:"telegramToken"`
	ChatID          string `yaml:"chatID"`
	TelegramAPI     string `yaml:"telegramAPI"`
	WebhookURL      string `yaml:"webhookURL"`
	Console         bool   `yaml:"console"`
	Log             bool   `yaml:"log"`             // 信号只写日志，适合试运行
	ThrottleSeconds int    `yaml:"throttleSeconds"` // 0 表示不去重
}

// MetricsConfig HTTP 服务（/metrics /healthz /feed），Addr 为空时不启动。
type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
	Feed      bool   `yaml:"feed"`
	// FeedOrigins /feed 允许的浏览器 Origin；为空只接受同源，"*" 放行全部
	FeedOrigins []string `yaml:"feedOrigins"`
}

// Default returns the configuration used when a field is absent.
func Default() AppConfig {
	return AppConfig{
		Env: "prod",
		Exchange: ExchangeConfig{
			Name:         "binance",
			RateLimit:    10,
			RateBurst:    10,
			MaxRetries:   2,
			RetryDelayMs: 500,
		},
		Scan: ScanConfig{
			TopN:              50,
			Quote:             "USDT",
			TrendTimeframe:    "1h",
			TrendLimit:        250,
			TrendPeriod:       200,
			MomentumTimeframe: "30m",
			MomentumLimit:     100,
			Fast:              12,
			Slow:              26,
			SignalPeriod:      9,
			Workers:           4,
			RequestTimeoutMs:  15000,
		},
		Log: logger.DefaultConfig(),
		Metrics: MetricsConfig{
			Namespace: "signal",
		},
	}
}

// Load reads YAML config from path over the defaults and validates it.
func Load(path string) (AppConfig, error) {
	cfg, err := load(path)
	if err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

func load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := load(path)
	if err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, Validate(cfg)
}

// FromEnv builds a config from defaults plus environment, for runs without a file.
func FromEnv() (AppConfig, error) {
	cfg := Default()
	ApplyEnv(&cfg)
	return cfg, Validate(cfg)
}

// ApplyEnv overrides fields from SCANNER_* / TELEGRAM_TOKEN / CHAT_ID.
func ApplyEnv(cfg *AppConfig) {
	if v := os.Getenv("SCANNER_EXCHANGE"); v != "" {
		cfg.Exchange.Name = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("SCANNER_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("SCANNER_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Notify.TelegramToken = v
	}
	if v := os.Getenv("CHAT_ID"); v != "" {
		cfg.Notify.ChatID = v
	}
	if v := os.Getenv("SCANNER_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
}

// RequestTimeout 单次 REST 请求超时。
func (s ScanConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutMs) * time.Millisecond
}

// Interval 循环模式间隔，0 表示只跑一轮。
func (s ScanConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSec) * time.Second
}

// TagOrDefault 通知中的范围标签。
func (s ScanConfig) TagOrDefault() string {
	if s.Tag != "" {
		return s.Tag
	}
	return fmt.Sprintf("Top%d", s.TopN)
}

// RetryDelay 重试间隔。
func (e ExchangeConfig) RetryDelay() time.Duration {
	return time.Duration(e.RetryDelayMs) * time.Millisecond
}

// HasTelegram 是否配置了完整的 Telegram 目标。
func (n NotifyConfig) HasTelegram() bool {
	return n.TelegramToken != "" && n.ChatID != ""
}
