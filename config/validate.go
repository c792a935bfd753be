package config

import (
	"fmt"
	"strings"

	"signal-scanner-go/gateway"
	"signal-scanner-go/market"
)

// ErrInvalid 配置错误，启动时即致命，不会进入扫描。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

func invalidf(format string, args ...interface{}) error {
	return ErrInvalid(fmt.Sprintf(format, args...))
}

// Validate ensures required fields are present and coherent.
func Validate(cfg AppConfig) error {
	if err := validateExchange(cfg.Exchange); err != nil {
		return err
	}
	if err := validateScan(cfg.Scan); err != nil {
		return err
	}
	if err := validateNotify(cfg.Notify); err != nil {
		return err
	}
	return validateMetrics(cfg.Metrics)
}

func validateExchange(e ExchangeConfig) error {
	known := false
	for _, name := range gateway.SupportedExchanges() {
		if e.Name == name {
			known = true
			break
		}
	}
	if !known {
		return invalidf("exchange.name %q is not supported (want one of %v)", e.Name, gateway.SupportedExchanges())
	}
	if (e.APIKey == "") != (e.APISecret == "") {
		return ErrInvalid("exchange.apiKey and exchange.apiSecret must be set together")
	}
	if e.RateLimit < 0 || e.RateBurst < 0 {
		return ErrInvalid("exchange.rateLimit/rateBurst must be >= 0")
	}
	if e.MaxRetries < 0 || e.RetryDelayMs < 0 {
		return ErrInvalid("exchange.maxRetries/retryDelayMs must be >= 0")
	}
	return nil
}

func validateScan(s ScanConfig) error {
	if s.TopN < 1 {
		return invalidf("scan.topN must be >= 1, got %d", s.TopN)
	}
	if s.Quote == "" {
		return ErrInvalid("scan.quote is required")
	}
	if _, err := market.ParseTimeframe(s.TrendTimeframe); err != nil {
		return invalidf("scan.trendTimeframe: %v", err)
	}
	if _, err := market.ParseTimeframe(s.MomentumTimeframe); err != nil {
		return invalidf("scan.momentumTimeframe: %v", err)
	}
	if s.TrendPeriod < 1 || s.Fast < 1 || s.Slow < 1 || s.SignalPeriod < 1 {
		return ErrInvalid("scan periods must be >= 1")
	}
	if s.Fast >= s.Slow {
		return invalidf("scan.fast %d must be < scan.slow %d", s.Fast, s.Slow)
	}
	if s.TrendLimit < s.TrendPeriod {
		return invalidf("scan.trendLimit %d must cover trendPeriod %d", s.TrendLimit, s.TrendPeriod)
	}
	if s.MomentumLimit < s.Slow {
		return invalidf("scan.momentumLimit %d must cover slow period %d", s.MomentumLimit, s.Slow)
	}
	if s.Workers < 1 {
		return invalidf("scan.workers must be >= 1, got %d", s.Workers)
	}
	if s.RequestTimeoutMs <= 0 {
		return ErrInvalid("scan.requestTimeoutMs must be > 0")
	}
	if s.IntervalSec < 0 {
		return ErrInvalid("scan.interval must be >= 0")
	}
	return nil
}

func validateNotify(n NotifyConfig) error {
	if (n.TelegramToken == "") != (n.ChatID == "") {
		return ErrInvalid("notify.telegramToken and notify.chatID must be set together (TELEGRAM_TOKEN / CHAT_ID)")
	}
	if !n.HasTelegram() && n.WebhookURL == "" && !n.Log {
		return ErrInvalid("no delivery target: set TELEGRAM_TOKEN and CHAT_ID, notify.webhookURL or notify.log")
	}
	if n.ThrottleSeconds < 0 {
		return ErrInvalid("notify.throttleSeconds must be >= 0")
	}
	return nil
}

func validateMetrics(m MetricsConfig) error {
	for _, o := range m.FeedOrigins {
		if o == "*" {
			continue
		}
		if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return invalidf("metrics.feedOrigins entry %q must be \"*\" or an http(s) origin", o)
		}
	}
	return nil
}
