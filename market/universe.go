package market

import (
	"sort"
	"strings"
)

// DefaultTopN 默认扫描的交易对数量。
const DefaultTopN = 50

// Selector 从全部合约中挑选流动性最好的 USDT 永续合约。
type Selector struct {
	TopN    int
	Quote   string
	Exclude []string
}

// NewSelector 返回 TopN=50、Quote=USDT 的默认选择器。
func NewSelector() Selector {
	return Selector{TopN: DefaultTopN, Quote: "USDT"}
}

// Eligible 判断合约是否进入候选池：报价币匹配、永续、可交易、不在排除列表。
func (s Selector) Eligible(inst Instrument) bool {
	quote := s.Quote
	if quote == "" {
		quote = "USDT"
	}
	if !strings.EqualFold(inst.Quote, quote) || !inst.Perpetual || !inst.Active {
		return false
	}
	for _, ex := range s.Exclude {
		if strings.EqualFold(ex, inst.Symbol) {
			return false
		}
	}
	return true
}

// Select 过滤、去重并按 24h 成交额降序返回前 TopN 个交易对。
// 没有行情的合约按成交额 0 处理（仍保留）；无候选时返回空切片。
func (s Selector) Select(instruments []Instrument, tickers map[string]Ticker) []Ranking {
	topN := s.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	seen := make(map[string]struct{}, len(instruments))
	ranked := make([]Ranking, 0, len(instruments))
	for _, inst := range instruments {
		if inst.Symbol == "" || !s.Eligible(inst) {
			continue
		}
		if _, dup := seen[inst.Symbol]; dup {
			continue
		}
		seen[inst.Symbol] = struct{}{}
		vol := 0.0
		if tk, ok := tickers[inst.Symbol]; ok && tk.HasVolume {
			vol = tk.QuoteVolume
		}
		ranked = append(ranked, Ranking{Symbol: inst.Symbol, QuoteVolume: vol})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].QuoteVolume > ranked[j].QuoteVolume
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// Symbols 提取排名中的交易对。
func Symbols(rs []Ranking) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Symbol
	}
	return out
}
