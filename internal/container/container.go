package container

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"signal-scanner-go/config"
	"signal-scanner-go/gateway"
	"signal-scanner-go/infrastructure/alert"
	"signal-scanner-go/infrastructure/logger"
	"signal-scanner-go/infrastructure/monitor"
	"signal-scanner-go/market"
	"signal-scanner-go/scanner"
	"signal-scanner-go/strategy"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg config.AppConfig

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor
	feed    *alert.FeedChannel

	// 扫描链路，Reload 时整体替换
	notifier *alert.Manager
	scanner  *scanner.Scanner

	// 托管部件，见 lifecycle.go
	lifecycle *Lifecycle
	passes    *passTracker
	http      *httpComponent

	mu sync.RWMutex
}

// New 创建新的Container实例；cfg 需已通过 config.Validate
func New(cfg config.AppConfig) *Container {
	return &Container{
		cfg:       cfg,
		lifecycle: NewLifecycle(),
		passes:    &passTracker{},
	}
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}

	pipeline, err := c.buildPipeline(c.cfg)
	if err != nil {
		return fmt.Errorf("build scan pipeline failed: %w", err)
	}
	c.install(c.cfg, pipeline)

	c.registerLifecycleComponents()
	c.logger.Info("container built",
		zap.String("exchange", c.cfg.Exchange.Name),
		zap.Strings("channels", c.notifier.GetChannels()),
	)
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	monitorCfg := monitor.DefaultConfig()
	if c.cfg.Metrics.Namespace != "" {
		monitorCfg.Namespace = c.cfg.Metrics.Namespace
	}
	c.monitor = monitor.New(monitorCfg)

	if c.cfg.Metrics.Feed {
		c.feed = alert.NewFeedChannel(c.cfg.Metrics.FeedOrigins)
	}
	return nil
}

// pipeline 一次配置对应的扫描链路
type pipeline struct {
	notifier *alert.Manager
	scanner  *scanner.Scanner
}

func (c *Container) buildPipeline(cfg config.AppConfig) (pipeline, error) {
	ex, err := c.buildGateway(cfg.Exchange)
	if err != nil {
		return pipeline{}, err
	}
	notifier := c.buildNotifier(cfg.Notify)

	stratCfg := strategy.MACDTrendConfig{
		TrendPeriod:  cfg.Scan.TrendPeriod,
		Fast:         cfg.Scan.Fast,
		Slow:         cfg.Scan.Slow,
		SignalPeriod: cfg.Scan.SignalPeriod,
		Source:       ex.Name(),
	}
	strat, err := strategy.NewMACDTrend(stratCfg)
	if err != nil {
		return pipeline{}, err
	}

	trendTF, err := market.ParseTimeframe(cfg.Scan.TrendTimeframe)
	if err != nil {
		return pipeline{}, err
	}
	momentumTF, err := market.ParseTimeframe(cfg.Scan.MomentumTimeframe)
	if err != nil {
		return pipeline{}, err
	}
	scanCfg := scanner.Config{
		TrendTimeframe:    trendTF,
		TrendLimit:        cfg.Scan.TrendLimit,
		MomentumTimeframe: momentumTF,
		MomentumLimit:     cfg.Scan.MomentumLimit,
		Workers:           cfg.Scan.Workers,
		RequestTimeout:    cfg.Scan.RequestTimeout(),
		Tag:               cfg.Scan.TagOrDefault(),
	}
	sel := market.Selector{TopN: cfg.Scan.TopN, Quote: cfg.Scan.Quote, Exclude: cfg.Scan.Exclude}

	sc, err := scanner.New(scanCfg, ex, strat, notifier,
		scanner.WithLogger(c.logger),
		scanner.WithRecorder(c.monitor),
		scanner.WithSelector(sel),
	)
	if err != nil {
		return pipeline{}, err
	}
	return pipeline{notifier: notifier, scanner: sc}, nil
}

func (c *Container) buildGateway(ec config.ExchangeConfig) (gateway.Exchange, error) {
	var limiter gateway.RateLimiter
	if ec.RateLimit > 0 {
		limiter = gateway.NewTokenBucketLimiter(ec.RateLimit, ec.RateBurst)
	}
	return gateway.New(ec.Name, gateway.ClientConfig{
		BaseURL:    ec.BaseURL,
		APIKey:     ec.APIKey,
		APISecret:  ec.APISecret,
		HTTPClient: gateway.NewDefaultHTTPClient(),
		Limiter:    limiter,
		MaxRetries: ec.MaxRetries,
		RetryDelay: ec.RetryDelay(),
		Observer:   c.monitor,
	})
}

// buildNotifier 配置的通道决定投递成败，feed 只做镜像
func (c *Container) buildNotifier(nc config.NotifyConfig) *alert.Manager {
	mgr := alert.NewManager(nil, time.Duration(nc.ThrottleSeconds)*time.Second)
	if nc.HasTelegram() {
		mgr.AddChannel(alert.NewTelegramChannel(nc.TelegramToken, nc.ChatID, nc.TelegramAPI))
	}
	if nc.WebhookURL != "" {
		mgr.AddChannel(alert.NewWebhookChannel(nc.WebhookURL))
	}
	if nc.Console {
		mgr.AddChannel(alert.NewConsoleChannel("console"))
	}
	if nc.Log {
		mgr.AddChannel(alert.NewLogChannel("log", c.logger.Logger))
	}
	if c.feed != nil {
		mgr.AddMirror(c.feed)
	}
	return mgr
}

func (c *Container) install(cfg config.AppConfig, p pipeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.notifier = p.notifier
	c.scanner = p.scanner
}

func (c *Container) registerLifecycleComponents() {
	c.lifecycle.Register(c.passes)
	if c.feed != nil {
		c.lifecycle.Register(&feedComponent{feed: c.feed})
	}
	if c.cfg.Metrics.Addr == "" {
		return
	}
	c.http = &httpComponent{
		handler: c.Handler(),
		addr:    c.cfg.Metrics.Addr,
		logger:  c.logger.WithFields(map[string]interface{}{"component": "http"}),
	}
	c.lifecycle.Register(c.http)
}

// Handler 暴露 /metrics、/healthz，以及启用时的 /feed
func (c *Container) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.monitor.Handler())
	mux.HandleFunc("/healthz", c.serveHealth)
	if c.feed != nil {
		mux.Handle("/feed", c.feed)
	}
	return mux
}

// serveHealth 任一部件不健康（含最近一轮整轮失败）即返回 503
func (c *Container) serveHealth(w http.ResponseWriter, r *http.Request) {
	components := c.lifecycle.Health()
	last, universe, signals := c.passes.snapshot()

	body := map[string]interface{}{
		"status":     "ok",
		"exchange":   c.Config().Exchange.Name,
		"components": components,
	}
	if !last.IsZero() {
		body["last_pass"] = last.UTC().Format(time.RFC3339)
		body["universe"] = universe
		body["signals"] = signals
	}
	status := http.StatusOK
	for _, st := range components {
		if !st.OK {
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
			break
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Scan 用当前配置执行一轮扫描；进行中的扫描不受并发 Reload 影响。
func (c *Container) Scan(ctx context.Context) (scanner.Report, error) {
	sc := c.Scanner()
	rep, err := sc.Run(ctx)
	c.passes.record(time.Now(), rep, err)
	return rep, err
}

// Reload 按新配置重建扫描链路，下一轮生效。日志与指标沿用启动时的实例。
func (c *Container) Reload(cfg config.AppConfig) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	p, err := c.buildPipeline(cfg)
	if err != nil {
		return fmt.Errorf("rebuild scan pipeline failed: %w", err)
	}
	c.install(cfg, p)
	c.logger.Info("config reloaded",
		zap.String("exchange", cfg.Exchange.Name),
		zap.Int("top_n", cfg.Scan.TopN),
		zap.Strings("channels", p.notifier.GetChannels()),
	)
	return nil
}

// ReportReloadFailure 配置重载失败时记日志并推送运维告警。新配置不合法时旧配置
// 继续运行，发 WARNING；读取、解析或监听失败发 ERROR。
func (c *Container) ReportReloadFailure(ctx context.Context, path string, err error) {
	c.logger.LogError(err, map[string]interface{}{"action": "reload", "path": path})

	notifier := c.Notifier()
	fields := map[string]interface{}{"path": path, "exchange": c.Config().Exchange.Name}
	var invalid config.ErrInvalid
	var sendErr error
	if errors.As(err, &invalid) {
		sendErr = notifier.SendWarning(ctx, fmt.Sprintf("⚠️ config reload rejected, keeping current config: %v", err), fields)
	} else {
		sendErr = notifier.SendError(ctx, fmt.Sprintf("❗ config reload failed: %v", err), fields)
	}
	if sendErr != nil && !errors.Is(sendErr, alert.ErrThrottled) {
		c.logger.Warn("reload alert not delivered", zap.Error(sendErr))
	}
}

// Notifier 返回当前的通知管理器
func (c *Container) Notifier() *alert.Manager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notifier
}

// Scanner 返回当前扫描器
func (c *Container) Scanner() *scanner.Scanner {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scanner
}

// Config 返回当前生效的配置
func (c *Container) Config() config.AppConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

func (c *Container) Logger() *logger.Logger { return c.logger }

func (c *Container) Monitor() *monitor.Monitor { return c.monitor }

func (c *Container) Start(ctx context.Context) error {
	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	c.logger.Info("container started")
	return nil
}

func (c *Container) Stop() error {
	c.logger.Info("stopping container...")

	err := c.lifecycle.StopAll()
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	c.logger.Close()
	return err
}
