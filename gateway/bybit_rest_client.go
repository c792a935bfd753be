package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"signal-scanner-go/market"
)

const (
	BybitRESTEndpoint = "https://api.bybit.com"

	bybitMaxKlines      = 1000
	bybitInstrumentPage = 1000
	bybitMaxPages       = 20
)

// BybitRESTClient Bybit v5 linear 合约公开行情客户端。
type BybitRESTClient struct {
	restCore
}

// NewBybitClient 构建 Bybit 客户端。
func NewBybitClient(cfg ClientConfig) *BybitRESTClient {
	return &BybitRESTClient{restCore: newRestCore(ExchangeBybit, BybitRESTEndpoint, "X-BAPI-API-KEY", cfg)}
}

func (c *BybitRESTClient) Name() string { return c.name }

// result 校验 v5 包络 {retCode, retMsg, result}，返回 result 节点。
func (c *BybitRESTClient) result(op, symbol string, body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, c.decodeErr(op, symbol, fmt.Errorf("invalid json"))
	}
	root := gjson.ParseBytes(body)
	if code := root.Get("retCode").Int(); code != 0 {
		return gjson.Result{}, c.wrap(op, symbol, 0, fmt.Errorf("retCode %d: %s", code, root.Get("retMsg").String()))
	}
	return root.Get("result"), nil
}

// LoadInstruments 分页调用 /v5/market/instruments-info?category=linear。
func (c *BybitRESTClient) LoadInstruments(ctx context.Context) ([]market.Instrument, error) {
	var out []market.Instrument
	cursor := ""
	for page := 0; page < bybitMaxPages; page++ {
		params := url.Values{}
		params.Set("category", "linear")
		params.Set("limit", strconv.Itoa(bybitInstrumentPage))
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		body, err := c.get(ctx, "exchangeInfo", "", "/v5/market/instruments-info", params)
		if err != nil {
			return nil, err
		}
		res, err := c.result("exchangeInfo", "", body)
		if err != nil {
			return nil, err
		}
		res.Get("list").ForEach(func(_, v gjson.Result) bool {
			out = append(out, market.Instrument{
				Symbol:    v.Get("symbol").String(),
				Base:      v.Get("baseCoin").String(),
				Quote:     v.Get("quoteCoin").String(),
				Perpetual: v.Get("contractType").String() == "LinearPerpetual",
				Active:    v.Get("status").String() == "Trading",
			})
			return true
		})
		cursor = res.Get("nextPageCursor").String()
		if cursor == "" {
			break
		}
	}
	return out, nil
}

// FetchTickers 调用 /v5/market/tickers；turnover24h 即报价币成交额。
func (c *BybitRESTClient) FetchTickers(ctx context.Context) (map[string]market.Ticker, error) {
	params := url.Values{}
	params.Set("category", "linear")
	body, err := c.get(ctx, "tickers", "", "/v5/market/tickers", params)
	if err != nil {
		return nil, err
	}
	res, err := c.result("tickers", "", body)
	if err != nil {
		return nil, err
	}
	out := make(map[string]market.Ticker)
	res.Get("list").ForEach(func(_, v gjson.Result) bool {
		sym := v.Get("symbol").String()
		tk := market.Ticker{Symbol: sym}
		if turnover := v.Get("turnover24h"); isNumeric(turnover) {
			tk.QuoteVolume = turnover.Float()
			tk.HasVolume = true
		}
		out[sym] = tk
		return true
	})
	return out, nil
}

// FetchCandles 调用 /v5/market/kline；Bybit 按时间倒序返回，这里翻转为升序。
func (c *BybitRESTClient) FetchCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) (market.Series, error) {
	if symbol == "" {
		return nil, c.wrap("klines", symbol, 0, errEmptySymbol)
	}
	interval, err := bybitInterval(tf)
	if err != nil {
		return nil, c.wrap("klines", symbol, 0, err)
	}
	if limit <= 0 || limit > bybitMaxKlines {
		limit = bybitMaxKlines
	}
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	body, err := c.get(ctx, "klines", symbol, "/v5/market/kline", params)
	if err != nil {
		return nil, err
	}
	res, err := c.result("klines", symbol, body)
	if err != nil {
		return nil, err
	}
	series, err := parseKlineRows(res.Get("list"))
	if err != nil {
		return nil, c.decodeErr("klines", symbol, err)
	}
	if len(series) > 1 && series[0].Ts.After(series[len(series)-1].Ts) {
		for i, j := 0, len(series)-1; i < j; i, j = i+1, j-1 {
			series[i], series[j] = series[j], series[i]
		}
	}
	return series, nil
}

func bybitInterval(tf market.Timeframe) (string, error) {
	switch tf {
	case market.TF1m:
		return "1", nil
	case market.TF5m:
		return "5", nil
	case market.TF15m:
		return "15", nil
	case market.TF30m:
		return "30", nil
	case market.TF1h:
		return "60", nil
	case market.TF4h:
		return "240", nil
	case market.TF1d:
		return "D", nil
	default:
		return "", fmt.Errorf("unsupported timeframe %q", tf)
	}
}
