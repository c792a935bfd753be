package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Observer 接收每次 REST 请求的耗时与结果（Prometheus 监控实现）。
type Observer interface {
	ObserveREST(exchange, endpoint string, d time.Duration, err error)
}

// ClientConfig 交易所 REST 客户端的公共参数。
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	HTTPClient *http.Client
	Limiter    RateLimiter
	MaxRetries int
	RetryDelay time.Duration
	Observer   Observer
}

// restCore 负责限流、重试、观测；各交易所客户端只关心路径与解析。
type restCore struct {
	name       string
	baseURL    string
	apiKey     string
	keyHeader  string
	httpClient *http.Client
	limiter    RateLimiter
	maxRetries int
	retryDelay time.Duration
	observer   Observer
}

func newRestCore(name, defaultBase, keyHeader string, cfg ClientConfig) restCore {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBase
	}
	httpCli := cfg.HTTPClient
	if httpCli == nil {
		httpCli = NewDefaultHTTPClient()
	}
	var limiter RateLimiter = noopLimiter{}
	if cfg.Limiter != nil {
		limiter = cfg.Limiter
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 200 * time.Millisecond
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return restCore{
		name:       name,
		baseURL:    base,
		apiKey:     cfg.APIKey,
		keyHeader:  keyHeader,
		httpClient: httpCli,
		limiter:    limiter,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		observer:   cfg.Observer,
	}
}

// get 发起公开行情 GET 请求，429/5xx/网络错误按 retryDelay 线性退避重试。
func (c *restCore) get(ctx context.Context, op, symbol, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var lastErr *MarketDataError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt) * c.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, c.wrap(op, symbol, 0, ctx.Err())
			case <-timer.C:
			}
		}
		body, err := c.do(ctx, op, symbol, path, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil || !err.Retryable() {
			break
		}
	}
	return nil, lastErr
}

func (c *restCore) do(ctx context.Context, op, symbol, path, endpoint string) ([]byte, *MarketDataError) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.wrap(op, symbol, 0, fmt.Errorf("rate limiter: %w", err))
	}
	start := time.Now()
	body, status, err := c.send(ctx, endpoint)
	if c.observer != nil {
		c.observer.ObserveREST(c.name, path, time.Since(start), err)
	}
	if err != nil {
		return nil, c.wrap(op, symbol, status, err)
	}
	return body, nil
}

func (c *restCore) send(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" && c.keyHeader != "" {
		req.Header.Set(c.keyHeader, c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Errorf("%s", truncate(body, 256))
	}
	return body, resp.StatusCode, nil
}

func (c *restCore) wrap(op, symbol string, status int, err error) *MarketDataError {
	return &MarketDataError{Exchange: c.name, Op: op, Symbol: symbol, Status: status, Err: err}
}

func (c *restCore) decodeErr(op, symbol string, err error) error {
	return &MarketDataError{Exchange: c.name, Op: op, Symbol: symbol, Err: fmt.Errorf("decode: %w", err)}
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

var errEmptySymbol = errors.New("symbol required")
