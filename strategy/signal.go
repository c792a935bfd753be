package strategy

import "time"

// Direction 信号方向。
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Signal 单次检测到的开仓形态，不落库、不去重，下一轮满足条件会再次触发。
type Signal struct {
	Symbol    string
	Direction Direction
	Source    string    // 交易所/来源标识，如 binance
	Reason    string    // 触发窗口说明
	At        time.Time // 依据的已收盘 1h K 线开盘时间
}
