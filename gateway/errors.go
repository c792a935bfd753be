package gateway

import "fmt"

// MarketDataError 行情请求失败（网络、限流、未知交易对、解析失败等），扫描器按单个交易对跳过。
type MarketDataError struct {
	Exchange string
	Op       string // exchangeInfo / tickers / klines
	Symbol   string
	Status   int // HTTP 状态码，网络错误时为 0
	Err      error
}

func (e *MarketDataError) Error() string {
	msg := "market data " + e.Exchange + " " + e.Op
	if e.Symbol != "" {
		msg += " " + e.Symbol
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MarketDataError) Unwrap() error { return e.Err }

// Retryable 网络错误、429 与 5xx 可以重试；418（IP 封禁）与其余 4xx 不重试。
func (e *MarketDataError) Retryable() bool {
	if e.Status == 0 {
		return e.Err != nil
	}
	return e.Status == 429 || e.Status >= 500
}
