package market

import (
	"fmt"
	"strings"
	"time"
)

// Candle 单根 K 线（OHLCV），Ts 为开盘时间。
type Candle struct {
	Ts     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series 同一交易对、同一周期的 K 线序列，按时间升序，最后一根可能尚未收盘。
type Series []Candle

// Closes 返回收盘价序列，与 Series 下标对齐。
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Closed 去掉最后一根（进行中的）K 线。
func (s Series) Closed() Series {
	if len(s) == 0 {
		return s
	}
	return s[:len(s)-1]
}

// Timeframe K 线周期。
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

func (tf Timeframe) String() string { return string(tf) }

// Duration 返回周期长度；未知周期返回 0。
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF30m:
		return 30 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// ParseTimeframe 解析 "1h"/"h1"/"30m" 等写法。
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1m", "m1":
		return TF1m, nil
	case "5m", "m5":
		return TF5m, nil
	case "15m", "m15":
		return TF15m, nil
	case "30m", "m30":
		return TF30m, nil
	case "1h", "h1", "60m":
		return TF1h, nil
	case "4h", "h4":
		return TF4h, nil
	case "1d", "d1":
		return TF1d, nil
	default:
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
}
