package scanner

import (
	"time"

	"signal-scanner-go/market"
	"signal-scanner-go/strategy"
)

// Outcome 单个品种的处理结果。
type Outcome string

const (
	OutcomeOK      Outcome = "ok"      // 评估完成，无信号
	OutcomeSignal  Outcome = "signal"  // 至少一个信号
	OutcomeSkipped Outcome = "skipped" // 历史 K 线不足
	OutcomeFailed  Outcome = "failed"  // 行情错误、超时等
)

// Result 单个品种的扫描结果。
type Result struct {
	Symbol      string
	QuoteVolume float64
	Outcome     Outcome
	Signals     []strategy.Signal
	Err         error
}

func (r Result) fail(err error) Result {
	r.Outcome = classify(err)
	r.Err = err
	return r
}

// Report 一轮扫描的汇总。
type Report struct {
	Exchange         string
	Started          time.Time
	Duration         time.Duration
	Universe         []market.Ranking
	Results          []Result // 与 Universe 顺序一致
	Signals          []strategy.Signal
	Delivered        int
	DeliveryFailures int
	Throttled        int // 仍在限流窗口内、未发送的信号
}

// Failed 返回因行情错误或超时失败的品种。
func (r Report) Failed() []Result {
	return r.filter(OutcomeFailed)
}

// Skipped 返回因历史不足而跳过的品种。
func (r Report) Skipped() []Result {
	return r.filter(OutcomeSkipped)
}

func (r Report) filter(o Outcome) []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == o {
			out = append(out, res)
		}
	}
	return out
}

func (r Report) summary() map[string]interface{} {
	return map[string]interface{}{
		"universe":          len(r.Universe),
		"signals":           len(r.Signals),
		"failed":            len(r.Failed()),
		"skipped":           len(r.Skipped()),
		"delivered":         r.Delivered,
		"delivery_failures": r.DeliveryFailures,
		"throttled":         r.Throttled,
		"duration_ms":       r.Duration.Milliseconds(),
	}
}
