// Package scanner 编排单轮扫描：选出成交额前 N 的永续合约，逐个拉取 K 线、
// 评估信号并推送通知。单个品种失败只记录，不中断整轮。
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"signal-scanner-go/gateway"
	"signal-scanner-go/indicator"
	"signal-scanner-go/infrastructure/alert"
	"signal-scanner-go/infrastructure/logger"
	"signal-scanner-go/market"
	"signal-scanner-go/strategy"
)

// Analyzer 由 strategy.MACDTrend 实现。
type Analyzer interface {
	Analyze(symbol string, trend, momentum market.Series) ([]strategy.Signal, error)
}

// Notifier 由 alert.Manager 实现；全部通道失败时返回 *alert.DeliveryError，
// 限流时返回 alert.ErrThrottled。
type Notifier interface {
	SendAlert(ctx context.Context, a alert.Alert) error
}

// Recorder 扫描指标，由 monitor.Monitor 实现。
type Recorder interface {
	ObservePass(d time.Duration, universe int)
	ObservePassFailure()
	ObserveSymbol(outcome string)
	ObserveSignal(direction string)
	ObserveDeliveryFailure()
	ObserveThrottled()
}

// Config 单轮扫描参数。
type Config struct {
	TrendTimeframe    market.Timeframe
	TrendLimit        int
	MomentumTimeframe market.Timeframe
	MomentumLimit     int
	Workers           int
	RequestTimeout    time.Duration
	Tag               string // 出现在通知消息里，如 "Top50"
}

// DefaultConfig 1h×250 趋势、30m×100 动能、4 个并发。
func DefaultConfig() Config {
	return Config{
		TrendTimeframe:    market.TF1h,
		TrendLimit:        250,
		MomentumTimeframe: market.TF30m,
		MomentumLimit:     100,
		Workers:           4,
		RequestTimeout:    15 * time.Second,
		Tag:               "Top50",
	}
}

func (c Config) validate() error {
	if c.TrendTimeframe.Duration() == 0 {
		return fmt.Errorf("scanner: unknown trend timeframe %q", c.TrendTimeframe)
	}
	if c.MomentumTimeframe.Duration() == 0 {
		return fmt.Errorf("scanner: unknown momentum timeframe %q", c.MomentumTimeframe)
	}
	if c.TrendLimit < 2 || c.MomentumLimit < 4 {
		return fmt.Errorf("scanner: candle limits too small (trend %d, momentum %d)", c.TrendLimit, c.MomentumLimit)
	}
	if c.Workers < 1 {
		return fmt.Errorf("scanner: workers must be >= 1, got %d", c.Workers)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("scanner: request timeout must be > 0")
	}
	return nil
}

// Option 可选依赖。
type Option func(*Scanner)

func WithLogger(l *logger.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.log = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Scanner) {
		if r != nil {
			s.rec = r
		}
	}
}

func WithSelector(sel market.Selector) Option {
	return func(s *Scanner) { s.selector = sel }
}

// WithClock 测试中固定时间
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

// Scanner 不持有跨轮状态，Run 可重复调用。
type Scanner struct {
	cfg      Config
	ex       gateway.Exchange
	analyzer Analyzer
	notifier Notifier
	selector market.Selector
	log      *logger.Logger
	rec      Recorder
	now      func() time.Time
}

// New 构建扫描器。
func New(cfg Config, ex gateway.Exchange, analyzer Analyzer, notifier Notifier, opts ...Option) (*Scanner, error) {
	if ex == nil || analyzer == nil || notifier == nil {
		return nil, errors.New("scanner: exchange, analyzer and notifier are required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &Scanner{
		cfg:      cfg,
		ex:       ex,
		analyzer: analyzer,
		notifier: notifier,
		selector: market.NewSelector(),
		log:      logger.NewNop(),
		rec:      nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config 返回扫描参数。
func (s *Scanner) Config() Config { return s.cfg }

// Run 执行一轮扫描。只有合约列表或行情快照加载失败才返回错误，
// 其余失败都落在 Report 里。
func (s *Scanner) Run(ctx context.Context) (Report, error) {
	started := s.now()
	rep := Report{Exchange: s.ex.Name(), Started: started}

	universe, err := s.loadUniverse(ctx)
	if err != nil {
		s.rec.ObservePassFailure()
		s.log.LogError(err, map[string]interface{}{"exchange": rep.Exchange, "stage": "universe"})
		return rep, err
	}
	rep.Universe = universe

	rep.Results = s.scanAll(ctx, universe)
	for i := range rep.Results {
		r := &rep.Results[i]
		s.rec.ObserveSymbol(string(r.Outcome))
		if r.Err != nil {
			s.log.LogSymbolFailure(rep.Exchange, r.Symbol, r.Err)
			continue
		}
		for _, sig := range r.Signals {
			rep.Signals = append(rep.Signals, sig)
			s.rec.ObserveSignal(string(sig.Direction))
			s.log.LogSignal(rep.Exchange, sig.Symbol, string(sig.Direction), map[string]interface{}{
				"reason": sig.Reason,
				"candle": sig.At.UTC().Format(time.RFC3339),
			})
			s.deliver(ctx, &rep, r.QuoteVolume, sig)
		}
	}

	rep.Duration = s.now().Sub(started)
	s.rec.ObservePass(rep.Duration, len(universe))
	s.log.LogScan(rep.Exchange, rep.summary())
	return rep, nil
}

func (s *Scanner) loadUniverse(ctx context.Context) ([]market.Ranking, error) {
	var instruments []market.Instrument
	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		instruments, err = s.ex.LoadInstruments(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load instruments: %w", err)
	}

	var tickers map[string]market.Ticker
	err = s.withTimeout(ctx, func(ctx context.Context) (err error) {
		tickers, err = s.ex.FetchTickers(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load tickers: %w", err)
	}
	return s.selector.Select(instruments, tickers), nil
}

// scanAll 固定数量的 worker 共享同一个适配器（也就共享其限流器），
// 结果按 universe 顺序返回。
func (s *Scanner) scanAll(ctx context.Context, universe []market.Ranking) []Result {
	results := make([]Result, len(universe))
	if len(universe) == 0 {
		return results
	}

	workers := s.cfg.Workers
	if workers > len(universe) {
		workers = len(universe)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.scanSymbol(ctx, universe[i])
			}
		}()
	}
	for i := range universe {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func (s *Scanner) scanSymbol(ctx context.Context, rk market.Ranking) Result {
	res := Result{Symbol: rk.Symbol, QuoteVolume: rk.QuoteVolume}
	if err := ctx.Err(); err != nil {
		return res.fail(err)
	}

	trend, err := s.fetch(ctx, rk.Symbol, s.cfg.TrendTimeframe, s.cfg.TrendLimit)
	if err != nil {
		return res.fail(err)
	}
	momentum, err := s.fetch(ctx, rk.Symbol, s.cfg.MomentumTimeframe, s.cfg.MomentumLimit)
	if err != nil {
		return res.fail(err)
	}

	signals, err := s.analyzer.Analyze(rk.Symbol, trend, momentum)
	if err != nil {
		return res.fail(err)
	}
	res.Signals = signals
	res.Outcome = OutcomeOK
	if len(signals) > 0 {
		res.Outcome = OutcomeSignal
	}
	return res
}

func (s *Scanner) fetch(ctx context.Context, symbol string, tf market.Timeframe, limit int) (market.Series, error) {
	var series market.Series
	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		series, err = s.ex.FetchCandles(ctx, symbol, tf, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s candles: %w", tf, err)
	}
	return series, nil
}

func (s *Scanner) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	return fn(cctx)
}

func (s *Scanner) deliver(ctx context.Context, rep *Report, quoteVolume float64, sig strategy.Signal) {
	err := s.notifier.SendAlert(ctx, alert.Alert{
		Level:   "INFO",
		Message: FormatMessage(sig, s.cfg.Tag, rep.Exchange),
		Fields: map[string]interface{}{
			"exchange":     rep.Exchange,
			"symbol":       sig.Symbol,
			"direction":    string(sig.Direction),
			"reason":       sig.Reason,
			"quote_volume": quoteVolume,
			"candle":       sig.At.UTC().Format(time.RFC3339),
		},
	})
	if errors.Is(err, alert.ErrThrottled) {
		rep.Throttled++
		s.rec.ObserveThrottled()
		s.log.Debug("signal throttled",
			zap.String("exchange", rep.Exchange),
			zap.String("symbol", sig.Symbol),
		)
		return
	}
	if err != nil {
		rep.DeliveryFailures++
		s.rec.ObserveDeliveryFailure()
		s.log.Warn("signal delivery failed",
			zap.String("exchange", rep.Exchange),
			zap.String("symbol", sig.Symbol),
			zap.Error(err),
		)
		return
	}
	rep.Delivered++
}

// FormatMessage 生成通知正文，例如 "🚀 LONG (Top50) [binance] BTCUSDT"。
func FormatMessage(sig strategy.Signal, tag, exchange string) string {
	icon := "🚀"
	if sig.Direction == strategy.Short {
		icon = "🔻"
	}
	return fmt.Sprintf("%s %s (%s) [%s] %s", icon, sig.Direction, tag, exchange, sig.Symbol)
}

// classify 把单个品种的错误归类到 skipped（历史不足）或 failed。
func classify(err error) Outcome {
	if errors.Is(err, indicator.ErrInsufficientHistory) {
		return OutcomeSkipped
	}
	return OutcomeFailed
}

type nopRecorder struct{}

func (nopRecorder) ObservePass(time.Duration, int) {}
func (nopRecorder) ObservePassFailure()            {}
func (nopRecorder) ObserveSymbol(string)           {}
func (nopRecorder) ObserveSignal(string)           {}
func (nopRecorder) ObserveDeliveryFailure()        {}
func (nopRecorder) ObserveThrottled()              {}
