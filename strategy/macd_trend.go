package strategy

import (
	"errors"
	"fmt"

	"signal-scanner-go/indicator"
	"signal-scanner-go/market"
)

// ErrMisaligned 指标序列与其 K 线序列长度不一致。
var ErrMisaligned = errors.New("indicator series misaligned")

// 评估所需的最少已收盘 K 线数（最后一根视为未收盘，因此再 +1）。
const (
	minTrendCandles    = 2
	minMomentumCandles = 4
)

// MACDTrendConfig 双周期策略参数：大周期 EMA 过滤趋势，小周期 MACD 金叉/死叉择时。
type MACDTrendConfig struct {
	TrendPeriod  int    // 1h EMA 周期，默认 200
	Fast         int    // MACD 快线，默认 12
	Slow         int    // MACD 慢线，默认 26
	SignalPeriod int    // 信号线，默认 9
	Source       string // 写入 Signal.Source
}

// DefaultMACDTrendConfig 返回 EMA200 + MACD(12,26,9)。
func DefaultMACDTrendConfig() MACDTrendConfig {
	return MACDTrendConfig{
		TrendPeriod:  200,
		Fast:         indicator.DefaultFast,
		Slow:         indicator.DefaultSlow,
		SignalPeriod: indicator.DefaultSignal,
	}
}

// MACDTrend 无状态的信号评估器，同样输入永远得到同样输出。
type MACDTrend struct {
	cfg MACDTrendConfig
}

func NewMACDTrend(cfg MACDTrendConfig) (*MACDTrend, error) {
	if cfg.TrendPeriod < 1 || cfg.Fast < 1 || cfg.Slow < 1 || cfg.SignalPeriod < 1 {
		return nil, errors.New("invalid macd trend config: periods must be >= 1")
	}
	if cfg.Fast >= cfg.Slow {
		return nil, fmt.Errorf("invalid macd trend config: fast %d must be < slow %d", cfg.Fast, cfg.Slow)
	}
	return &MACDTrend{cfg: cfg}, nil
}

// Config 返回策略参数副本。
func (m *MACDTrend) Config() MACDTrendConfig { return m.cfg }

// Inputs 评估输入；TrendEMA 与 Trend 对齐，MACD 与 Signal 与 30m 序列对齐。
type Inputs struct {
	Trend    market.Series
	TrendEMA []float64
	MACD     []float64
	Signal   []float64
}

// Analyze 计算 1h EMA 与 30m MACD 后调用 Evaluate。
func (m *MACDTrend) Analyze(symbol string, trend, momentum market.Series) ([]Signal, error) {
	ema, err := indicator.EMA(trend.Closes(), m.cfg.TrendPeriod)
	if err != nil {
		return nil, fmt.Errorf("trend ema: %w", err)
	}
	macd, err := indicator.MACD(momentum.Closes(), m.cfg.Fast, m.cfg.Slow, m.cfg.SignalPeriod)
	if err != nil {
		return nil, fmt.Errorf("momentum macd: %w", err)
	}
	return m.Evaluate(symbol, Inputs{
		Trend:    trend,
		TrendEMA: ema,
		MACD:     macd.MACD,
		Signal:   macd.Signal,
	})
}

// Evaluate 只读取已收盘 K 线（下标 len-2 及更早），规则：
//   - 趋势：1h 收盘价在 EMA 之上为多头、之下为空头，相等两者皆否；
//   - 动能：最近两个窗口 (t2→t1)、(t3→t2) 内 MACD 上穿信号线且穿越后 MACD < 0 为金叉，
//     下穿且穿越后 MACD > 0 为死叉；
//   - 多头 + 金叉 => LONG，空头 + 死叉 => SHORT，两者独立判断。
func (m *MACDTrend) Evaluate(symbol string, in Inputs) ([]Signal, error) {
	if len(in.TrendEMA) != len(in.Trend) {
		return nil, fmt.Errorf("%w: trend %d candles, ema %d values", ErrMisaligned, len(in.Trend), len(in.TrendEMA))
	}
	if len(in.MACD) != len(in.Signal) {
		return nil, fmt.Errorf("%w: macd %d values, signal %d values", ErrMisaligned, len(in.MACD), len(in.Signal))
	}
	if len(in.Trend) < minTrendCandles {
		return nil, fmt.Errorf("%w: trend needs %d candles, got %d", indicator.ErrInsufficientHistory, minTrendCandles, len(in.Trend))
	}
	if len(in.MACD) < minMomentumCandles {
		return nil, fmt.Errorf("%w: momentum needs %d candles, got %d", indicator.ErrInsufficientHistory, minMomentumCandles, len(in.MACD))
	}

	last := len(in.Trend) - 2
	closePx, ema := in.Trend[last].Close, in.TrendEMA[last]
	trendUp := closePx > ema
	trendDown := closePx < ema

	n := len(in.MACD)
	m1, m2, m3 := in.MACD[n-2], in.MACD[n-3], in.MACD[n-4]
	s1, s2, s3 := in.Signal[n-2], in.Signal[n-3], in.Signal[n-4]

	bullRecent := m2 < s2 && m1 > s1 && m1 < 0
	bullPrior := m3 < s3 && m2 > s2 && m2 < 0
	bearRecent := m2 > s2 && m1 < s1 && m1 > 0
	bearPrior := m3 > s3 && m2 < s2 && m2 > 0

	var out []Signal
	if trendUp && (bullRecent || bullPrior) {
		out = append(out, m.signal(symbol, Long, crossReason("bullish", bullRecent), in.Trend[last]))
	}
	if trendDown && (bearRecent || bearPrior) {
		out = append(out, m.signal(symbol, Short, crossReason("bearish", bearRecent), in.Trend[last]))
	}
	return out, nil
}

func (m *MACDTrend) signal(symbol string, dir Direction, reason string, ref market.Candle) Signal {
	return Signal{
		Symbol:    symbol,
		Direction: dir,
		Source:    m.cfg.Source,
		Reason:    reason,
		At:        ref.Ts,
	}
}

func crossReason(kind string, recent bool) string {
	if recent {
		return kind + " macd cross on last closed candle"
	}
	return kind + " macd cross one candle earlier"
}
