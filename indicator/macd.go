package indicator

import "fmt"

// MACD 默认参数。
const (
	DefaultFast   = 12
	DefaultSlow   = 26
	DefaultSignal = 9
)

// MACDResult 三条与输入对齐的序列。
type MACDResult struct {
	MACD   []float64 // EMA(fast) - EMA(slow)
	Signal []float64 // EMA(MACD, signal)
	Hist   []float64 // MACD - Signal
}

// MACD 计算 MACD/信号线/柱状图，要求 fast < slow 且样本数不少于 slow。
func MACD(values []float64, fast, slow, signal int) (MACDResult, error) {
	if fast < 1 || slow < 1 || signal < 1 || fast >= slow {
		return MACDResult{}, fmt.Errorf("%w: macd(%d,%d,%d)", ErrInvalidPeriod, fast, slow, signal)
	}
	fastLine, err := EMA(values, fast)
	if err != nil {
		return MACDResult{}, err
	}
	slowLine, err := EMA(values, slow)
	if err != nil {
		return MACDResult{}, err
	}
	macd := make([]float64, len(values))
	for i := range values {
		macd[i] = fastLine[i] - slowLine[i]
	}
	sig, err := EWM(macd, signal)
	if err != nil {
		return MACDResult{}, err
	}
	hist := make([]float64, len(values))
	for i := range macd {
		hist[i] = macd[i] - sig[i]
	}
	return MACDResult{MACD: macd, Signal: sig, Hist: hist}, nil
}
