package market

// Instrument 交易所合约元数据，由各交易所适配器归一化。
type Instrument struct {
	Symbol    string
	Base      string
	Quote     string
	Perpetual bool // 永续/swap 合约
	Active    bool // 当前可交易
}

// Ticker 24h 行情摘要；HasVolume=false 表示交易所未返回成交额。
type Ticker struct {
	Symbol      string
	QuoteVolume float64
	HasVolume   bool
}

// Ranking 按 24h 成交额排名的交易对，每轮扫描重新计算。
type Ranking struct {
	Symbol      string
	QuoteVolume float64
}
