package gateway

import (
	"context"
	"fmt"
	"strings"

	"signal-scanner-go/market"
)

// Exchange 扫描器依赖的最小行情能力，每个交易所一份实现。
type Exchange interface {
	Name() string
	LoadInstruments(ctx context.Context) ([]market.Instrument, error)
	FetchTickers(ctx context.Context) (map[string]market.Ticker, error)
	// FetchCandles 返回按时间升序的 K 线，最后一根可能尚未收盘。
	FetchCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) (market.Series, error)
}

// 支持的交易所。
const (
	ExchangeBinance = "binance"
	ExchangeAster   = "aster"
	ExchangeBybit   = "bybit"
)

// SupportedExchanges 返回可配置的交易所名称。
func SupportedExchanges() []string {
	return []string{ExchangeBinance, ExchangeAster, ExchangeBybit}
}

// New 按名称构建交易所适配器。
func New(name string, cfg ClientConfig) (Exchange, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ExchangeBinance:
		return NewBinanceClient(cfg), nil
	case ExchangeAster:
		return NewAsterClient(cfg), nil
	case ExchangeBybit:
		return NewBybitClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown exchange %q", name)
	}
}
