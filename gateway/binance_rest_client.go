package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"signal-scanner-go/market"
)

const (
	BinanceFuturesRESTEndpoint = "https://fapi.binance.com"
	AsterFuturesRESTEndpoint   = "https://fapi.asterdex.com"

	binanceMaxKlines = 1500
)

// BinanceRESTClient USDⓈ-M 合约公开行情客户端；Aster 使用相同的 /fapi/v1 接口。
type BinanceRESTClient struct {
	restCore
}

// NewBinanceClient 构建 Binance USDⓈ-M 客户端。
func NewBinanceClient(cfg ClientConfig) *BinanceRESTClient {
	return &BinanceRESTClient{restCore: newRestCore(ExchangeBinance, BinanceFuturesRESTEndpoint, "X-MBX-APIKEY", cfg)}
}

// NewAsterClient 构建 Aster 合约客户端（Binance 兼容接口）。
func NewAsterClient(cfg ClientConfig) *BinanceRESTClient {
	return &BinanceRESTClient{restCore: newRestCore(ExchangeAster, AsterFuturesRESTEndpoint, "X-MBX-APIKEY", cfg)}
}

func (c *BinanceRESTClient) Name() string { return c.name }

type exchangeInfoResp struct {
	Symbols []struct {
		Symbol       string `json:"symbol"`
		Status       string `json:"status"`
		ContractType string `json:"contractType"`
		BaseAsset    string `json:"baseAsset"`
		QuoteAsset   string `json:"quoteAsset"`
	} `json:"symbols"`
}

// LoadInstruments 调用 /fapi/v1/exchangeInfo。
func (c *BinanceRESTClient) LoadInstruments(ctx context.Context) ([]market.Instrument, error) {
	body, err := c.get(ctx, "exchangeInfo", "", "/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}
	var info exchangeInfoResp
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, c.decodeErr("exchangeInfo", "", err)
	}
	out := make([]market.Instrument, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		out = append(out, market.Instrument{
			Symbol:    s.Symbol,
			Base:      s.BaseAsset,
			Quote:     s.QuoteAsset,
			Perpetual: s.ContractType == "PERPETUAL",
			Active:    s.Status == "TRADING",
		})
	}
	return out, nil
}

type ticker24hResp struct {
	Symbol      string      `json:"symbol"`
	QuoteVolume json.Number `json:"quoteVolume"`
}

// FetchTickers 调用 /fapi/v1/ticker/24hr（全市场）。
func (c *BinanceRESTClient) FetchTickers(ctx context.Context) (map[string]market.Ticker, error) {
	body, err := c.get(ctx, "tickers", "", "/fapi/v1/ticker/24hr", nil)
	if err != nil {
		return nil, err
	}
	var rows []ticker24hResp
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, c.decodeErr("tickers", "", err)
	}
	out := make(map[string]market.Ticker, len(rows))
	for _, r := range rows {
		tk := market.Ticker{Symbol: r.Symbol}
		if r.QuoteVolume != "" {
			if v, err := strconv.ParseFloat(r.QuoteVolume.String(), 64); err == nil {
				tk.QuoteVolume = v
				tk.HasVolume = true
			}
		}
		out[r.Symbol] = tk
	}
	return out, nil
}

// FetchCandles 调用 /fapi/v1/klines。
func (c *BinanceRESTClient) FetchCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) (market.Series, error) {
	if symbol == "" {
		return nil, c.wrap("klines", symbol, 0, errEmptySymbol)
	}
	if tf.Duration() == 0 {
		return nil, c.wrap("klines", symbol, 0, fmt.Errorf("unsupported timeframe %q", tf))
	}
	if limit <= 0 || limit > binanceMaxKlines {
		limit = binanceMaxKlines
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", tf.String())
	params.Set("limit", strconv.Itoa(limit))
	body, err := c.get(ctx, "klines", symbol, "/fapi/v1/klines", params)
	if err != nil {
		return nil, err
	}
	series, err := parseKlineRows(gjson.ParseBytes(body))
	if err != nil {
		return nil, c.decodeErr("klines", symbol, err)
	}
	return series, nil
}

// parseKlineRows 解析 [[openTime,"o","h","l","c","v",...],...]，跳过残缺行。
func parseKlineRows(res gjson.Result) (market.Series, error) {
	if !res.IsArray() {
		return nil, fmt.Errorf("expected array, got %s", res.Type)
	}
	rows := res.Array()
	out := make(market.Series, 0, len(rows))
	for _, row := range rows {
		cols := row.Array()
		if len(cols) < 6 || !isNumeric(cols[4]) {
			continue
		}
		out = append(out, market.Candle{
			Ts:     time.UnixMilli(cols[0].Int()).UTC(),
			Open:   cols[1].Float(),
			High:   cols[2].Float(),
			Low:    cols[3].Float(),
			Close:  cols[4].Float(),
			Volume: cols[5].Float(),
		})
	}
	return out, nil
}

func isNumeric(r gjson.Result) bool {
	switch r.Type {
	case gjson.Number:
		return true
	case gjson.String:
		_, err := strconv.ParseFloat(r.Str, 64)
		return err == nil
	default:
		return false
	}
}
