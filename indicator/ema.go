// Package indicator 计算 EMA / MACD 等指标序列。
// 所有函数都是纯函数：输出与输入等长、按下标对齐，out[i] 只依赖 in[0..i]。
package indicator

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientHistory 输入序列长度不足以计算指标。
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrInvalidPeriod 周期参数非法。
	ErrInvalidPeriod = errors.New("invalid period")
)

// EWM 按 adjust=True 口径计算指数加权均值：
//
//	out[t] = Σ (1-α)^(t-i)·x[i] / Σ (1-α)^(t-i),  α = 2/(span+1)
//
// 首个值即 x[0]，早期值缓慢收敛（而不是以首值作为种子递推）。
// 空输入返回空切片。
func EWM(values []float64, span int) ([]float64, error) {
	if span < 1 {
		return nil, fmt.Errorf("%w: span %d", ErrInvalidPeriod, span)
	}
	alpha := 2.0 / float64(span+1)
	decay := 1 - alpha
	out := make([]float64, len(values))
	num, den := 0.0, 0.0
	for i, v := range values {
		num = v + decay*num
		den = 1 + decay*den
		out[i] = num / den
	}
	return out, nil
}

// EMA 在 EWM 基础上要求至少 period 个样本。
func EMA(values []float64, period int) ([]float64, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: period %d", ErrInvalidPeriod, period)
	}
	if len(values) < period {
		return nil, fmt.Errorf("%w: ema(%d) needs %d values, got %d", ErrInsufficientHistory, period, period, len(values))
	}
	return EWM(values, period)
}
