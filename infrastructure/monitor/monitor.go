package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 扫描指标
	passes           prometheus.Counter
	passFailures     prometheus.Counter
	passDuration     prometheus.Histogram
	universeSize     prometheus.Gauge
	symbols          *prometheus.CounterVec
	signals          *prometheus.CounterVec
	deliveryFailures prometheus.Counter
	throttled        prometheus.Counter
	lastPass         prometheus.Gauge

	// 系统指标
	restRequests *prometheus.CounterVec
	restErrors   *prometheus.CounterVec
	restLatency  *prometheus.HistogramVec
}

// Config 监控配置
type Config struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "signal",
		Subsystem: "scanner",
	}
}

// New 创建新的Monitor实例，指标注册在私有 registry 上
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		passes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "scan_passes_total",
			Help:      "完成的扫描轮数",
		}),
		passFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "scan_pass_failures_total",
			Help:      "因行情加载失败而中止的扫描轮数",
		}),
		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "scan_pass_duration_seconds",
			Help:      "单轮扫描耗时（秒）",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}),
		universeSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "scan_universe_size",
			Help:      "最近一轮的候选品种数量",
		}),
		symbols: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "scan_symbols_total",
				Help:      "按结果统计的品种处理次数",
			},
			[]string{"outcome"},
		),
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "scan_signals_total",
				Help:      "检测到的信号数量",
			},
			[]string{"direction"},
		),
		deliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "scan_delivery_failures_total",
			Help:      "通知投递失败次数",
		}),
		throttled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "scan_throttled_total",
			Help:      "因限流未发送的信号数量",
		}),
		lastPass: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "scan_last_pass_timestamp_seconds",
			Help:      "最近一轮扫描完成时间（unix 秒）",
		}),

		restRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rest_requests_total",
				Help:      "REST请求总数",
			},
			[]string{"endpoint"},
		),
		restErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rest_errors_total",
				Help:      "REST错误总数",
			},
			[]string{"endpoint"},
		),
		restLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rest_latency_seconds",
				Help:      "REST请求延迟（秒）",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
	}

	return m
}

// ObservePass 记录一轮扫描完成
func (m *Monitor) ObservePass(d time.Duration, universe int) {
	m.passes.Inc()
	m.passDuration.Observe(d.Seconds())
	m.universeSize.Set(float64(universe))
	m.lastPass.SetToCurrentTime()
}

// ObservePassFailure 记录整轮失败
func (m *Monitor) ObservePassFailure() {
	m.passFailures.Inc()
}

// ObserveSymbol outcome 取值 ok / signal / skipped / failed
func (m *Monitor) ObserveSymbol(outcome string) {
	m.symbols.WithLabelValues(outcome).Inc()
}

func (m *Monitor) ObserveSignal(direction string) {
	m.signals.WithLabelValues(direction).Inc()
}

func (m *Monitor) ObserveDeliveryFailure() {
	m.deliveryFailures.Inc()
}

func (m *Monitor) ObserveThrottled() {
	m.throttled.Inc()
}

// ObserveREST 实现 gateway.Observer
func (m *Monitor) ObserveREST(exchange, endpoint string, d time.Duration, err error) {
	m.restRequests.WithLabelValues(endpoint).Inc()
	m.restLatency.WithLabelValues(endpoint).Observe(d.Seconds())
	if err != nil {
		m.restErrors.WithLabelValues(endpoint).Inc()
	}
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
